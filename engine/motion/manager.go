package motion

import (
	"github.com/spaghettifunk/companion/engine/rig"
)

// Manager adds priority arbitration on top of a QueueManager.
type Manager struct {
	*QueueManager

	currentPriority Priority
	reservePriority Priority
}

func NewManager() *Manager {
	return &Manager{QueueManager: NewQueueManager()}
}

func (m *Manager) CurrentPriority() Priority { return m.currentPriority }
func (m *Manager) ReservePriority() Priority { return m.reservePriority }

// SetReservePriority overrides the reservation without any check.
func (m *Manager) SetReservePriority(p Priority) { m.reservePriority = p }

// ReserveMotion claims the next start for p. It fails when a motion of
// equal or higher priority is reserved or playing.
func (m *Manager) ReserveMotion(p Priority) bool {
	if p <= m.reservePriority || p <= m.currentPriority {
		return false
	}
	m.reservePriority = p
	return true
}

func (m *Manager) StartMotionPriority(clip Clip, p Priority, onBegan, onFinished Callback) Handle {
	h := m.ReserveHandle()
	m.StartReservedPriority(h, clip, p, onBegan, onFinished)
	return h
}

// StartReservedPriority starts clip under a handle returned by ReserveHandle.
func (m *Manager) StartReservedPriority(h Handle, clip Clip, p Priority, onBegan, onFinished Callback) {
	if p == m.reservePriority {
		m.reservePriority = PriorityNone
	}
	m.currentPriority = p
	m.StartWithHandle(h, clip, onBegan, onFinished)
}

// UpdateMotion advances the queue and resets the current priority once it drained.
func (m *Manager) UpdateMotion(params *rig.ParameterBuffer, parts *rig.PartBuffer, dt float32) bool {
	updated := m.Update(params, parts, dt)
	if m.IsFinished() {
		m.currentPriority = PriorityNone
	}
	return updated
}

func (m *Manager) StopAll() {
	m.QueueManager.StopAll()
	m.currentPriority = PriorityNone
	m.reservePriority = PriorityNone
}
