package motion

import (
	"math"

	"github.com/spaghettifunk/companion/engine/rig"
)

// Callback is invoked with the handle of the motion that began or finished.
type Callback func(h Handle)

type queueEntry struct {
	handle     Handle
	clip       Clip
	onBegan    Callback
	onFinished Callback

	started          bool
	finished         bool
	triggeredFadeOut bool
	startTime        float32
	fadeInStartTime  float32
	endTime          float32
}

func (e *queueEntry) startFadeOut(fadeOut, now float32) {
	end := now + fadeOut
	e.triggeredFadeOut = true
	if e.endTime < 0 || end < e.endTime {
		e.endTime = end
	}
}

// QueueManager plays clips, cross-fading a newly started clip over the ones
// already running. It is not safe for concurrent use.
type QueueManager struct {
	userTime   float32
	entries    []*queueEntry
	nextHandle Handle
	reserved   map[Handle]struct{}
}

func NewQueueManager() *QueueManager {
	return &QueueManager{
		entries:  []*queueEntry{},
		reserved: map[Handle]struct{}{},
	}
}

// ReserveHandle allocates a handle for a clip that will be started later
// with StartWithHandle. The handle counts as playing until then.
func (qm *QueueManager) ReserveHandle() Handle {
	h := qm.nextHandle
	qm.nextHandle++
	qm.reserved[h] = struct{}{}
	return h
}

// CancelHandle drops a reserved handle that will never be started.
func (qm *QueueManager) CancelHandle(h Handle) {
	delete(qm.reserved, h)
}

func (qm *QueueManager) Start(clip Clip, onBegan, onFinished Callback) Handle {
	h := qm.nextHandle
	qm.nextHandle++
	qm.StartWithHandle(h, clip, onBegan, onFinished)
	return h
}

// StartWithHandle queues clip under h and fades out everything already queued.
func (qm *QueueManager) StartWithHandle(h Handle, clip Clip, onBegan, onFinished Callback) {
	delete(qm.reserved, h)
	for _, e := range qm.entries {
		e.startFadeOut(e.clip.FadeOutTime(), qm.userTime)
	}
	qm.entries = append(qm.entries, &queueEntry{
		handle:     h,
		clip:       clip,
		onBegan:    onBegan,
		onFinished: onFinished,
		endTime:    -1,
	})
}

// Update advances every queued clip by dt and applies them in start order.
// Returns true when at least one clip wrote to the buffers.
func (qm *QueueManager) Update(params *rig.ParameterBuffer, parts *rig.PartBuffer, dt float32) bool {
	qm.userTime += dt
	updated := false

	for _, e := range qm.entries {
		if !e.started {
			e.started = true
			e.startTime = qm.userTime
			e.fadeInStartTime = qm.userTime
			if d := e.clip.Duration(); d >= 0 && !e.triggeredFadeOut {
				e.endTime = e.startTime + d
			}
			if e.onBegan != nil {
				e.onBegan(e.handle)
			}
		}

		e.clip.Apply(params, parts, qm.userTime-e.startTime, qm.weight(e))
		updated = true

		if e.endTime >= 0 && qm.userTime >= e.endTime {
			e.finished = true
		}
	}

	kept := qm.entries[:0]
	done := []*queueEntry{}
	for _, e := range qm.entries {
		if e.finished {
			done = append(done, e)
			continue
		}
		kept = append(kept, e)
	}
	qm.entries = kept
	for _, e := range done {
		if e.onFinished != nil {
			e.onFinished(e.handle)
		}
	}
	return updated
}

func (qm *QueueManager) weight(e *queueEntry) float32 {
	fadeIn := float32(1)
	if t := e.clip.FadeInTime(); t > 0 {
		fadeIn = easeSine((qm.userTime - e.fadeInStartTime) / t)
	}
	fadeOut := float32(1)
	if t := e.clip.FadeOutTime(); t > 0 && e.endTime >= 0 {
		fadeOut = easeSine((e.endTime - qm.userTime) / t)
	}
	return fadeIn * fadeOut
}

// IsFinished reports whether nothing is queued or waiting to be started.
func (qm *QueueManager) IsFinished() bool {
	return len(qm.entries) == 0 && len(qm.reserved) == 0
}

func (qm *QueueManager) IsHandleFinished(h Handle) bool {
	if _, ok := qm.reserved[h]; ok {
		return false
	}
	for _, e := range qm.entries {
		if e.handle == h {
			return false
		}
	}
	return true
}

// StopAll drops every queued clip and reservation without invoking callbacks.
func (qm *QueueManager) StopAll() {
	qm.entries = qm.entries[:0]
	qm.reserved = map[Handle]struct{}{}
}

func easeSine(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(0.5 - 0.5*math.Cos(float64(v)*math.Pi))
}
