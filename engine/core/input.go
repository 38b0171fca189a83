package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Two primary presses closer than this (seconds) form a double click.
const DoubleClickInterval = 0.3

// Mouse state structure
type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool // button states (pressed/released)
}

// Input holds current and previous states for the mouse and forwards changes to the event bus.
type Input struct {
	events          *EventBus
	MouseCurrent    MouseState
	MousePrevious   MouseState
	lastPrimaryDown float64
}

func NewInput(events *EventBus) *Input {
	LogInfo("Input subsystem initialized.")
	return &Input{
		events:          events,
		lastPrimaryDown: -1,
	}
}

func (in *Input) Update(deltaTime float64) {
	// Copy current states to previous states.
	in.MousePrevious = in.MouseCurrent
}

func (in *Input) IsButtonDown(button Button) bool {
	return in.MouseCurrent.Buttons[button]
}

func (in *Input) IsButtonUp(button Button) bool {
	return !in.MouseCurrent.Buttons[button]
}

func (in *Input) WasButtonDown(button Button) bool {
	return in.MousePrevious.Buttons[button]
}

// AnyButtonDown reports whether at least one mouse button is held.
func (in *Input) AnyButtonDown() bool {
	for _, b := range in.MouseCurrent.Buttons {
		if b {
			return true
		}
	}
	return false
}

func (in *Input) MousePosition() (float64, float64) {
	return in.MouseCurrent.X, in.MouseCurrent.Y
}

// ProcessButton records a button transition at time `now` (seconds).
func (in *Input) ProcessButton(button Button, pressed bool, now float64) {
	// If the state changed, fire an event.
	if in.MouseCurrent.Buttons[button] == pressed {
		return
	}
	in.MouseCurrent.Buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	in.events.Fire(EventContext{
		Type: code,
		Data: &MouseEvent{
			Button: button,
			PosX:   in.MouseCurrent.X,
			PosY:   in.MouseCurrent.Y,
		},
	})

	if button == BUTTON_LEFT && pressed {
		if in.lastPrimaryDown >= 0 && now-in.lastPrimaryDown <= DoubleClickInterval {
			in.events.Fire(EventContext{
				Type: EVENT_CODE_DOUBLE_CLICK,
				Data: &MouseEvent{
					Button: button,
					PosX:   in.MouseCurrent.X,
					PosY:   in.MouseCurrent.Y,
				},
			})
			in.lastPrimaryDown = -1
			return
		}
		in.lastPrimaryDown = now
	}
}

func (in *Input) ProcessMouseMove(x, y float64) {
	// Only process if actually different
	if in.MouseCurrent.X == x && in.MouseCurrent.Y == y {
		return
	}
	in.MouseCurrent.X = x
	in.MouseCurrent.Y = y

	in.events.Fire(EventContext{
		Type: EVENT_CODE_MOUSE_MOVED,
		Data: &MouseEvent{
			PosX: x,
			PosY: y,
		},
	})
}

// ProcessMouseLeave releases all buttons and notifies listeners the cursor left the window.
func (in *Input) ProcessMouseLeave() {
	for i := range in.MouseCurrent.Buttons {
		in.MouseCurrent.Buttons[i] = false
	}
	in.events.Fire(EventContext{Type: EVENT_CODE_MOUSE_LEFT})
}
