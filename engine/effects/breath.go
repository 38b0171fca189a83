package effects

import (
	"math"

	"github.com/spaghettifunk/companion/engine/rig"
)

// BreathParameter oscillates one channel around Offset.
type BreathParameter struct {
	ID     string
	Offset float32
	Peak   float32
	Cycle  float32
	Weight float32
}

const (
	ParamAngleX     = "ParamAngleX"
	ParamAngleY     = "ParamAngleY"
	ParamAngleZ     = "ParamAngleZ"
	ParamBodyAngleX = "ParamBodyAngleX"
	ParamEyeBallX   = "ParamEyeBallX"
	ParamEyeBallY   = "ParamEyeBallY"
	ParamBreath     = "ParamBreath"
)

func DefaultBreathParameters() []BreathParameter {
	return []BreathParameter{
		{ID: ParamAngleX, Offset: 0, Peak: 15, Cycle: 6.5345, Weight: 0.5},
		{ID: ParamAngleY, Offset: 0, Peak: 8, Cycle: 3.5345, Weight: 0.5},
		{ID: ParamAngleZ, Offset: 0, Peak: 10, Cycle: 5.5345, Weight: 0.5},
		{ID: ParamBodyAngleX, Offset: 0, Peak: 4, Cycle: 15.5345, Weight: 0.5},
	}
}

type Breath struct {
	parameters  []BreathParameter
	currentTime float32
}

func NewBreath(parameters []BreathParameter) *Breath {
	return &Breath{parameters: parameters}
}

func (b *Breath) Parameters() []BreathParameter { return b.parameters }

func (b *Breath) Update(params *rig.ParameterBuffer, dt float32) {
	b.currentTime += dt
	t := float64(b.currentTime) * 2 * math.Pi
	for _, p := range b.parameters {
		v := p.Offset + p.Peak*float32(math.Sin(t/float64(p.Cycle)))
		params.AddValue(p.ID, v, p.Weight)
	}
}
