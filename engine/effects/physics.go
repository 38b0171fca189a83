package effects

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/companion/engine/rig"
)

const (
	physicsTypeX     = "X"
	physicsTypeY     = "Y"
	physicsTypeAngle = "Angle"

	maximumWeight     = 100
	airResistance     = 5
	movementThreshold = 0.001
)

type physicsVector struct {
	X float32 `json:"X"`
	Y float32 `json:"Y"`
}

func (v physicsVector) vec() mgl32.Vec2 { return mgl32.Vec2{v.X, v.Y} }

type physicsRange struct {
	Minimum float32 `json:"Minimum"`
	Default float32 `json:"Default"`
	Maximum float32 `json:"Maximum"`
}

type physicsInput struct {
	Source struct {
		Target string `json:"Target"`
		ID     string `json:"Id"`
	} `json:"Source"`
	Weight  float32 `json:"Weight"`
	Type    string  `json:"Type"`
	Reflect bool    `json:"Reflect"`
}

type physicsOutput struct {
	Destination struct {
		Target string `json:"Target"`
		ID     string `json:"Id"`
	} `json:"Destination"`
	VertexIndex int     `json:"VertexIndex"`
	Scale       float32 `json:"Scale"`
	Weight      float32 `json:"Weight"`
	Type        string  `json:"Type"`
	Reflect     bool    `json:"Reflect"`
}

type physicsVertex struct {
	Position     physicsVector `json:"Position"`
	Mobility     float32       `json:"Mobility"`
	Delay        float32       `json:"Delay"`
	Acceleration float32       `json:"Acceleration"`
	Radius       float32       `json:"Radius"`
}

type physicsSetting struct {
	ID            string          `json:"Id"`
	Input         []physicsInput  `json:"Input"`
	Output        []physicsOutput `json:"Output"`
	Vertices      []physicsVertex `json:"Vertices"`
	Normalization struct {
		Position physicsRange `json:"Position"`
		Angle    physicsRange `json:"Angle"`
	} `json:"Normalization"`
}

type physicsFile struct {
	Version int `json:"Version"`
	Meta    struct {
		EffectiveForces struct {
			Gravity physicsVector `json:"Gravity"`
			Wind    physicsVector `json:"Wind"`
		} `json:"EffectiveForces"`
	} `json:"Meta"`
	PhysicsSettings []physicsSetting `json:"PhysicsSettings"`
}

type particle struct {
	initial      mgl32.Vec2
	position     mgl32.Vec2
	lastPosition mgl32.Vec2
	lastGravity  mgl32.Vec2
	velocity     mgl32.Vec2
	force        mgl32.Vec2
	mobility     float32
	delay        float32
	acceleration float32
	radius       float32
}

type pendulum struct {
	setting   physicsSetting
	particles []particle
}

// Physics swings pendulum chains driven by input parameters and writes
// their angles back to output parameters (hair, accessories).
type Physics struct {
	gravity   mgl32.Vec2
	wind      mgl32.Vec2
	pendulums []*pendulum
}

var ErrEmptyPhysics = errors.New("physics data is empty")

func ParsePhysics(data []byte) (*Physics, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPhysics
	}
	var f physicsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode physics: %w", err)
	}
	p := &Physics{
		gravity:   f.Meta.EffectiveForces.Gravity.vec(),
		wind:      f.Meta.EffectiveForces.Wind.vec(),
		pendulums: make([]*pendulum, 0, len(f.PhysicsSettings)),
	}
	if p.gravity.Len() == 0 {
		p.gravity = mgl32.Vec2{0, -1}
	}
	for _, s := range f.PhysicsSettings {
		if len(s.Vertices) < 2 {
			return nil, fmt.Errorf("physics setting %s needs at least two vertices", s.ID)
		}
		for _, o := range s.Output {
			if o.VertexIndex < 1 || o.VertexIndex >= len(s.Vertices) {
				return nil, fmt.Errorf("physics setting %s: output vertex %d out of range", s.ID, o.VertexIndex)
			}
		}
		pd := &pendulum{setting: s, particles: make([]particle, len(s.Vertices))}
		for i, v := range s.Vertices {
			pd.particles[i] = particle{
				mobility:     v.Mobility,
				delay:        v.Delay,
				acceleration: v.Acceleration,
				radius:       v.Radius,
			}
		}
		pd.reset()
		p.pendulums = append(p.pendulums, pd)
	}
	return p, nil
}

func (pd *pendulum) reset() {
	var pos mgl32.Vec2
	for i := range pd.particles {
		pt := &pd.particles[i]
		if i > 0 {
			pos = pos.Add(mgl32.Vec2{0, pt.radius})
		}
		pt.initial = pos
		pt.position = pos
		pt.lastPosition = pos
		pt.lastGravity = mgl32.Vec2{0, 1}
		pt.velocity = mgl32.Vec2{}
		pt.force = mgl32.Vec2{}
	}
}

// Reset puts every chain back to its rest position.
func (p *Physics) Reset() {
	for _, pd := range p.pendulums {
		pd.reset()
	}
}

func (p *Physics) Update(params *rig.ParameterBuffer, dt float32) {
	if dt <= 0 {
		return
	}
	for _, pd := range p.pendulums {
		pd.update(params, p.gravity, p.wind, dt)
	}
}

func (pd *pendulum) update(params *rig.ParameterBuffer, gravity, wind mgl32.Vec2, dt float32) {
	norm := pd.setting.Normalization
	var translation mgl32.Vec2
	var angle float32

	for _, in := range pd.setting.Input {
		if !params.Has(in.Source.ID) {
			continue
		}
		pmin, pmax := params.Range(in.Source.ID)
		value := params.Value(in.Source.ID)
		def := params.Default(in.Source.ID)
		w := in.Weight / maximumWeight
		switch in.Type {
		case physicsTypeX:
			translation[0] += normalize(value, pmin, pmax, def, norm.Position, in.Reflect) * w
		case physicsTypeY:
			translation[1] += normalize(value, pmin, pmax, def, norm.Position, in.Reflect) * w
		case physicsTypeAngle:
			angle += normalize(value, pmin, pmax, def, norm.Angle, in.Reflect) * w
		}
	}

	rad := mgl32.DegToRad(-angle)
	translation = mgl32.Rotate2D(rad).Mul2x1(translation)

	pd.updateParticles(translation, angle, gravity.Normalize(), wind, dt)

	for _, out := range pd.setting.Output {
		if !params.Has(out.Destination.ID) {
			continue
		}
		i := out.VertexIndex
		delta := pd.particles[i].position.Sub(pd.particles[i-1].position)
		var value float32
		switch out.Type {
		case physicsTypeX:
			value = delta[0]
		case physicsTypeY:
			value = delta[1]
		case physicsTypeAngle:
			parent := gravity.Mul(-1)
			if i >= 2 {
				parent = pd.particles[i-1].position.Sub(pd.particles[i-2].position)
			}
			value = directionToRadian(parent, delta)
		}
		if out.Reflect {
			value = -value
		}
		w := out.Weight / maximumWeight
		if w > 1 {
			w = 1
		}
		params.SetValue(out.Destination.ID, value*out.Scale, w)
	}
}

func (pd *pendulum) updateParticles(root mgl32.Vec2, angle float32, gravity, wind mgl32.Vec2, dt float32) {
	pd.particles[0].position = root

	rad := mgl32.DegToRad(angle)
	currentGravity := mgl32.Rotate2D(rad).Mul2x1(mgl32.Vec2{0, 1}).Normalize()

	for i := 1; i < len(pd.particles); i++ {
		pt := &pd.particles[i]
		prev := pd.particles[i-1].position

		pt.force = currentGravity.Mul(pt.acceleration).Add(wind)
		pt.lastPosition = pt.position

		delay := pt.delay * dt * 30

		direction := pt.position.Sub(prev)
		radian := directionToRadian(pt.lastGravity, currentGravity) / airResistance
		direction = mgl32.Rotate2D(radian).Mul2x1(direction)

		pt.position = prev.Add(direction)
		pt.position = pt.position.Add(pt.velocity.Mul(delay)).Add(pt.force.Mul(delay * delay))

		dir := pt.position.Sub(prev)
		if dir.Len() > 0 {
			dir = dir.Normalize()
		} else {
			dir = gravity.Mul(-1)
		}
		pt.position = prev.Add(dir.Mul(pt.radius))

		if abs32(pt.position[0]) < movementThreshold {
			pt.position[0] = 0
		}
		if delay != 0 {
			pt.velocity = pt.position.Sub(pt.lastPosition).Mul(pt.mobility / delay)
		}
		pt.force = mgl32.Vec2{}
		pt.lastGravity = currentGravity
	}
}

// normalize maps a parameter value into the normalized range, keeping the defaults aligned.
func normalize(value, pmin, pmax, pdef float32, r physicsRange, reflect bool) float32 {
	if value > pmax {
		value = pmax
	}
	if value < pmin {
		value = pmin
	}
	var result float32
	switch {
	case value > pdef && pmax != pdef:
		result = r.Default + (value-pdef)/(pmax-pdef)*(r.Maximum-r.Default)
	case value < pdef && pmin != pdef:
		result = r.Default + (value-pdef)/(pdef-pmin)*(r.Default-r.Minimum)
	default:
		result = r.Default
	}
	if reflect {
		return -result
	}
	return result
}

func directionToRadian(from, to mgl32.Vec2) float32 {
	q1 := math.Atan2(float64(to[1]), float64(to[0]))
	q2 := math.Atan2(float64(from[1]), float64(from[0]))
	ret := q1 - q2
	for ret < -math.Pi {
		ret += 2 * math.Pi
	}
	for ret > math.Pi {
		ret -= 2 * math.Pi
	}
	return float32(ret)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
