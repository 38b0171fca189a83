package motion

// Priority orders competing motion requests. A request may only pre-empt
// motions of strictly lower priority, except Force which always wins.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityIdle
	PriorityNormal
	PriorityForce
)

func (p Priority) String() string {
	switch p {
	case PriorityNone:
		return "none"
	case PriorityIdle:
		return "idle"
	case PriorityNormal:
		return "normal"
	case PriorityForce:
		return "force"
	}
	return "unknown"
}

// Handle identifies one started motion in a queue.
type Handle int

// InvalidHandle is returned when a motion could not be started.
const InvalidHandle Handle = -1

// Well known motion groups.
const (
	GroupIdle    = "Idle"
	GroupTapBody = "TapBody"
)
