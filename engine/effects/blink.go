package effects

import (
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/rig"
)

type blinkState int

const (
	blinkFirst blinkState = iota
	blinkInterval
	blinkClosing
	blinkClosed
	blinkOpening
)

// EyeBlinkConfig holds the timing of one blink cycle, in seconds.
type EyeBlinkConfig struct {
	Interval float32
	Closing  float32
	Closed   float32
	Opening  float32
}

func DefaultEyeBlinkConfig() EyeBlinkConfig {
	return EyeBlinkConfig{
		Interval: 4.0,
		Closing:  0.1,
		Closed:   0.05,
		Opening:  0.15,
	}
}

// EyeBlink closes and reopens the eye parameters at random intervals.
type EyeBlink struct {
	cfg   EyeBlinkConfig
	ids   []string
	rand  *rand.Rand
	state blinkState

	userTime   float32
	stateStart float32
	nextBlink  float32
}

func NewEyeBlink(cfg EyeBlinkConfig, ids []string, r *rand.Rand) *EyeBlink {
	return &EyeBlink{
		cfg:  cfg,
		ids:  ids,
		rand: r,
	}
}

func (eb *EyeBlink) IDs() []string { return eb.ids }

func (eb *EyeBlink) SetIDs(ids []string) { eb.ids = ids }

func (eb *EyeBlink) nextTiming() float32 {
	r := eb.rand.Float32()
	return eb.userTime + r*(2*eb.cfg.Interval-1)
}

func (eb *EyeBlink) Update(params *rig.ParameterBuffer, dt float32) {
	eb.userTime += dt
	var value float32

	switch eb.state {
	case blinkClosing:
		t := (eb.userTime - eb.stateStart) / eb.cfg.Closing
		if t >= 1 {
			t = 1
			eb.state = blinkClosed
			eb.stateStart = eb.userTime
		}
		value = 1 - t
	case blinkClosed:
		t := (eb.userTime - eb.stateStart) / eb.cfg.Closed
		if t >= 1 {
			eb.state = blinkOpening
			eb.stateStart = eb.userTime
		}
		value = 0
	case blinkOpening:
		t := (eb.userTime - eb.stateStart) / eb.cfg.Opening
		if t >= 1 {
			t = 1
			eb.state = blinkInterval
			eb.nextBlink = eb.nextTiming()
		}
		value = t
	case blinkInterval:
		if eb.nextBlink < eb.userTime {
			eb.state = blinkClosing
			eb.stateStart = eb.userTime
		}
		value = 1
	default:
		eb.state = blinkInterval
		eb.nextBlink = eb.nextTiming()
		value = 1
	}

	for _, id := range eb.ids {
		params.SetValue(id, value, 1)
	}
}
