package motion

import (
	"math"

	"github.com/spaghettifunk/companion/engine/rig"
)

const (
	defaultFadeTime = float32(1.0)

	targetModel     = "Model"
	targetParameter = "Parameter"
	targetPartOpac  = "PartOpacity"

	curveEyeBlink = "EyeBlink"
	curveLipSync  = "LipSync"
)

// Clip is anything the queue manager can play.
type Clip interface {
	FadeInTime() float32
	FadeOutTime() float32
	// Duration is the playback length in seconds, negative when the clip never ends.
	Duration() float32
	// Apply writes the clip pose at localTime, blended by weight.
	Apply(params *rig.ParameterBuffer, parts *rig.PartBuffer, localTime, weight float32)
}

// Motion is a keyframed clip decoded from a motion3.json file.
type Motion struct {
	duration    float32
	loop        bool
	fadeIn      float32
	fadeOut     float32
	curves      []*curve
	eyeBlinkIDs []string
	lipSyncIDs  []string
}

var _ Clip = &Motion{}

// ParseMotion decodes a motion3.json document.
func ParseMotion(data []byte) (*Motion, error) {
	f, err := decodeMotionFile(data)
	if err != nil {
		return nil, err
	}
	m := &Motion{
		duration: f.Meta.Duration,
		loop:     f.Meta.Loop,
		fadeIn:   defaultFadeTime,
		fadeOut:  defaultFadeTime,
		curves:   make([]*curve, 0, len(f.Curves)),
	}
	if f.Meta.FadeInTime != nil && *f.Meta.FadeInTime >= 0 {
		m.fadeIn = *f.Meta.FadeInTime
	}
	if f.Meta.FadeOutTime != nil && *f.Meta.FadeOutTime >= 0 {
		m.fadeOut = *f.Meta.FadeOutTime
	}
	for _, c := range f.Curves {
		first, segments, err := decodeSegments(c.Segments)
		if err != nil {
			return nil, err
		}
		m.curves = append(m.curves, &curve{
			target:   c.Target,
			id:       c.ID,
			first:    first,
			segments: segments,
		})
	}
	return m, nil
}

func (m *Motion) FadeInTime() float32  { return m.fadeIn }
func (m *Motion) FadeOutTime() float32 { return m.fadeOut }
func (m *Motion) IsLoop() bool         { return m.loop }

func (m *Motion) Duration() float32 {
	if m.loop {
		return -1
	}
	return m.duration
}

// SetFadeInTime overrides the fade-in. Negative values are ignored.
func (m *Motion) SetFadeInTime(t float32) {
	if t >= 0 {
		m.fadeIn = t
	}
}

// SetFadeOutTime overrides the fade-out. Negative values are ignored.
func (m *Motion) SetFadeOutTime(t float32) {
	if t >= 0 {
		m.fadeOut = t
	}
}

func (m *Motion) SetLoop(loop bool) { m.loop = loop }

// SetEffectIDs binds the parameters driven by the EyeBlink and LipSync model curves.
func (m *Motion) SetEffectIDs(eyeBlink, lipSync []string) {
	m.eyeBlinkIDs = eyeBlink
	m.lipSyncIDs = lipSync
}

func (m *Motion) Apply(params *rig.ParameterBuffer, parts *rig.PartBuffer, localTime, weight float32) {
	if m.loop && m.duration > 0 {
		localTime = float32(math.Mod(float64(localTime), float64(m.duration)))
	}

	eyeBlink, lipSync := float32(math.NaN()), float32(math.NaN())
	driven := map[string]bool{}

	for _, c := range m.curves {
		switch c.target {
		case targetModel:
			switch c.id {
			case curveEyeBlink:
				eyeBlink = c.valueAt(localTime)
			case curveLipSync:
				lipSync = c.valueAt(localTime)
			}
		case targetParameter:
			if params.SetValue(c.id, c.valueAt(localTime), weight) {
				driven[c.id] = true
			}
		case targetPartOpac:
			if parts != nil {
				parts.SetOpacity(c.id, c.valueAt(localTime))
			}
		}
	}

	if !isNaN(eyeBlink) {
		for _, id := range m.eyeBlinkIDs {
			if !driven[id] {
				params.MultiplyValue(id, eyeBlink, weight)
			}
		}
	}
	if !isNaN(lipSync) {
		for _, id := range m.lipSyncIDs {
			if !driven[id] {
				params.AddValue(id, lipSync, weight)
			}
		}
	}
}

func isNaN(f float32) bool { return f != f }
