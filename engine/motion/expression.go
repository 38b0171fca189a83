package motion

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spaghettifunk/companion/engine/rig"
)

type BlendMode int

const (
	BlendAdd BlendMode = iota
	BlendMultiply
	BlendOverwrite
)

const expressionFadeTime = float32(1.0)

type expressionParameter struct {
	id    string
	value float32
	blend BlendMode
}

// Expression is a static facial overlay decoded from an exp3.json file.
// It plays until replaced, relative to whatever the motions produced.
type Expression struct {
	fadeIn     float32
	fadeOut    float32
	parameters []expressionParameter
}

var _ Clip = &Expression{}

type expressionFile struct {
	Type        string   `json:"Type"`
	FadeInTime  *float32 `json:"FadeInTime"`
	FadeOutTime *float32 `json:"FadeOutTime"`
	Parameters  []struct {
		ID    string  `json:"Id"`
		Value float32 `json:"Value"`
		Blend string  `json:"Blend"`
	} `json:"Parameters"`
}

var ErrEmptyExpression = errors.New("expression data is empty")

func ParseExpression(data []byte) (*Expression, error) {
	if len(data) == 0 {
		return nil, ErrEmptyExpression
	}
	var f expressionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode expression: %w", err)
	}
	e := &Expression{
		fadeIn:     expressionFadeTime,
		fadeOut:    expressionFadeTime,
		parameters: make([]expressionParameter, 0, len(f.Parameters)),
	}
	if f.FadeInTime != nil && *f.FadeInTime >= 0 {
		e.fadeIn = *f.FadeInTime
	}
	if f.FadeOutTime != nil && *f.FadeOutTime >= 0 {
		e.fadeOut = *f.FadeOutTime
	}
	for _, p := range f.Parameters {
		var mode BlendMode
		switch p.Blend {
		case "", "Add":
			mode = BlendAdd
		case "Multiply":
			mode = BlendMultiply
		case "Overwrite":
			mode = BlendOverwrite
		default:
			return nil, fmt.Errorf("unknown blend mode %q for %s", p.Blend, p.ID)
		}
		e.parameters = append(e.parameters, expressionParameter{id: p.ID, value: p.Value, blend: mode})
	}
	return e, nil
}

func (e *Expression) FadeInTime() float32  { return e.fadeIn }
func (e *Expression) FadeOutTime() float32 { return e.fadeOut }
func (e *Expression) Duration() float32    { return -1 }

func (e *Expression) Apply(params *rig.ParameterBuffer, _ *rig.PartBuffer, _, weight float32) {
	for _, p := range e.parameters {
		switch p.blend {
		case BlendAdd:
			params.AddValue(p.id, p.value, weight)
		case BlendMultiply:
			params.MultiplyValue(p.id, p.value, weight)
		case BlendOverwrite:
			params.SetValue(p.id, p.value, weight)
		}
	}
}
