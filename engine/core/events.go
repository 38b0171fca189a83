package core

// System internal event codes. Application should use codes beyond 255.
type EventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01

	// Mouse button pressed.
	/* Context usage:
	 * data := context.Data.(*MouseEvent); data.Button, data.PosX, data.PosY
	 */
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04

	// Mouse button released.
	/* Context usage:
	 * data := context.Data.(*MouseEvent); data.Button, data.PosX, data.PosY
	 */
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05

	// Mouse moved.
	/* Context usage:
	 * data := context.Data.(*MouseEvent); data.PosX, data.PosY
	 */
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06

	// Mouse left the window.
	EVENT_CODE_MOUSE_LEFT EventCode = 0x07

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * data := context.Data.(*SystemEvent); data.WindowWidth, data.WindowHeight
	 */
	EVENT_CODE_RESIZED EventCode = 0x08

	// Two clicks of the primary button in quick succession.
	/* Context usage:
	 * data := context.Data.(*MouseEvent); data.PosX, data.PosY
	 */
	EVENT_CODE_DOUBLE_CLICK EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

// Application level codes.
const (
	// The model reached the end of its loading pipeline.
	EVENT_CODE_MODEL_READY EventCode = 0x100 + iota
	// The loading pipeline halted on a fatal condition.
	/* Context usage:
	 * err := context.Data.(error)
	 */
	EVENT_CODE_MODEL_LOAD_FAILED
	// A tap was routed to a named hit area.
	/* Context usage:
	 * data := context.Data.(*HitEvent)
	 */
	EVENT_CODE_HIT_AREA
	// A motion clip started playing.
	/* Context usage:
	 * data := context.Data.(*MotionEvent)
	 */
	EVENT_CODE_MOTION_STARTED
	// A file of the loaded model changed on disk.
	/* Context usage:
	 * path := context.Data.(string)
	 */
	EVENT_CODE_ASSET_CHANGED
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type MouseEvent struct {
	Button Button
	PosX   float64
	PosY   float64
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type HitEvent struct {
	Area    string
	DeviceX float32
	DeviceY float32
}

type MotionEvent struct {
	Group string
	Index int
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously on the caller's goroutine.
// It is owned by the engine and must only be used from the frame goroutine.
type EventBus struct {
	registered map[EventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]*registeredEvent),
	}
}

func (eb *EventBus) Shutdown() error {
	// Free the events arrays. And objects pointed to should be destroyed on their own.
	eb.registered = make(map[EventCode][]*registeredEvent)
	return nil
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return FALSE.
 * @param code The event code to listen for.
 * @param listener A pointer to a listener instance.
 * @param onEvent The callback function to be invoked when the event code is fired.
 * @returns TRUE if the event is successfully registered; otherwise false.
 */
func (eb *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	for _, e := range eb.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	eb.registered[code] = append(eb.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns FALSE.
 */
func (eb *EventBus) Unregister(code EventCode, listener interface{}) bool {
	events := eb.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eb.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * TRUE, the event is considered handled and is not passed on to any more listeners.
 * @returns TRUE if handled, otherwise FALSE.
 */
func (eb *EventBus) Fire(context EventContext) bool {
	for _, e := range eb.registered[context.Type] {
		if e.callback(context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
