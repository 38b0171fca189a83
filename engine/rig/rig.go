package rig

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Rig is the evaluated character geometry. Implementations own their
// parameter and part buffers; Update re-evaluates drawables from them.
type Rig interface {
	Parameters() *ParameterBuffer
	Parts() *PartBuffer
	// CanvasSize is the rig canvas in model units.
	CanvasSize() (float32, float32)
	DrawableCount() int
	DrawableID(i int) string
	// IsHit reports whether the model-space point lies on the drawable.
	IsHit(id string, x, y float32) bool
	// Drawables returns the evaluated drawables sorted by draw order.
	Drawables() []Drawable
	Update()
}

// Parser builds a Rig from the bytes of a rig file.
type Parser interface {
	Parse(data []byte) (Rig, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(data []byte) (Rig, error)

func (f ParserFunc) Parse(data []byte) (Rig, error) {
	return f(data)
}

// Drawable is the evaluated state of one drawable: bounds are
// min x, min y, max x, max y in model units.
type Drawable struct {
	ID           string
	TextureIndex int
	Order        int
	Bounds       [4]float32
	Opacity      float32
}

var ErrEmptyRig = errors.New("rig data is empty")

// Binding moves a drawable proportionally to a parameter value.
type Binding struct {
	Parameter string  `json:"Parameter"`
	X         float32 `json:"X"`
	Y         float32 `json:"Y"`
}

type drawableDefinition struct {
	ID       string     `json:"Id"`
	Texture  int        `json:"Texture"`
	Part     string     `json:"Part"`
	Order    int        `json:"Order"`
	Bounds   [4]float32 `json:"Bounds"`
	Opacity  *float32   `json:"Opacity"`
	Bindings []Binding  `json:"Bindings"`
}

type rigFile struct {
	Version int `json:"Version"`
	Canvas  struct {
		Width  float32 `json:"Width"`
		Height float32 `json:"Height"`
	} `json:"Canvas"`
	Parameters []ParameterDefinition `json:"Parameters"`
	Parts      []PartDefinition      `json:"Parts"`
	Drawables  []drawableDefinition  `json:"Drawables"`
}

type basicRig struct {
	width      float32
	height     float32
	parameters *ParameterBuffer
	parts      *PartBuffer
	defs       []drawableDefinition
	byID       map[string]int
	evaluated  []Drawable
	sorted     []Drawable
}

// JSONParser parses the reference `*.rig.json` format: a canvas, parameters,
// parts and rectangular drawables translated by parameter bindings.
var JSONParser Parser = ParserFunc(ParseJSON)

func ParseJSON(data []byte) (Rig, error) {
	if len(data) == 0 {
		return nil, ErrEmptyRig
	}
	var f rigFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode rig: %w", err)
	}
	if f.Canvas.Width <= 0 || f.Canvas.Height <= 0 {
		return nil, fmt.Errorf("invalid rig canvas %vx%v", f.Canvas.Width, f.Canvas.Height)
	}

	r := &basicRig{
		width:      f.Canvas.Width,
		height:     f.Canvas.Height,
		parameters: NewParameterBuffer(f.Parameters),
		parts:      NewPartBuffer(f.Parts),
		defs:       f.Drawables,
		byID:       make(map[string]int, len(f.Drawables)),
		evaluated:  make([]Drawable, len(f.Drawables)),
	}
	for i, d := range f.Drawables {
		if _, ok := r.byID[d.ID]; ok {
			return nil, fmt.Errorf("duplicate drawable id %q", d.ID)
		}
		r.byID[d.ID] = i
	}
	r.Update()
	return r, nil
}

func (r *basicRig) Parameters() *ParameterBuffer { return r.parameters }

func (r *basicRig) Parts() *PartBuffer { return r.parts }

func (r *basicRig) CanvasSize() (float32, float32) { return r.width, r.height }

func (r *basicRig) DrawableCount() int { return len(r.defs) }

func (r *basicRig) DrawableID(i int) string { return r.defs[i].ID }

func (r *basicRig) IsHit(id string, x, y float32) bool {
	i, ok := r.byID[id]
	if !ok {
		return false
	}
	d := r.evaluated[i]
	if d.Opacity <= 0 {
		return false
	}
	b := d.Bounds
	return x >= b[0] && x <= b[2] && y >= b[1] && y <= b[3]
}

func (r *basicRig) Drawables() []Drawable {
	return r.sorted
}

func (r *basicRig) Update() {
	for i, def := range r.defs {
		var dx, dy float32
		for _, b := range def.Bindings {
			v := r.parameters.Value(b.Parameter)
			dx += v * b.X
			dy += v * b.Y
		}
		opacity := float32(1)
		if def.Opacity != nil {
			opacity = *def.Opacity
		}
		if def.Part != "" {
			opacity *= r.parts.Opacity(def.Part)
		}
		r.evaluated[i] = Drawable{
			ID:           def.ID,
			TextureIndex: def.Texture,
			Order:        def.Order,
			Bounds:       [4]float32{def.Bounds[0] + dx, def.Bounds[1] + dy, def.Bounds[2] + dx, def.Bounds[3] + dy},
			Opacity:      opacity,
		}
	}
	r.sorted = append(r.sorted[:0], r.evaluated...)
	sort.SliceStable(r.sorted, func(a, b int) bool {
		return r.sorted[a].Order < r.sorted[b].Order
	})
}
