package math

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ModelMatrix places a model canvas (in model units) into device space.
// Scale is always uniform on both axes.
type ModelMatrix struct {
	m      mgl32.Mat4
	width  float32
	height float32
}

// NewModelMatrix creates a matrix for a canvas of the given size. By default
// the canvas is scaled to a height of 2 device units.
func NewModelMatrix(width, height float32) *ModelMatrix {
	mm := &ModelMatrix{
		m:      mgl32.Ident4(),
		width:  width,
		height: height,
	}
	mm.SetHeight(2.0)
	return mm
}

func (mm *ModelMatrix) Mat4() mgl32.Mat4 {
	return mm.m
}

func (mm *ModelMatrix) ScaleX() float32 { return mm.m[0] }
func (mm *ModelMatrix) ScaleY() float32 { return mm.m[5] }

func (mm *ModelMatrix) TranslateX() float32 { return mm.m[12] }
func (mm *ModelMatrix) TranslateY() float32 { return mm.m[13] }

func (mm *ModelMatrix) scale(x, y float32) {
	mm.m[0] = x
	mm.m[5] = y
}

func (mm *ModelMatrix) SetWidth(w float32) {
	if mm.width == 0 {
		return
	}
	s := w / mm.width
	mm.scale(s, s)
}

func (mm *ModelMatrix) SetHeight(h float32) {
	if mm.height == 0 {
		return
	}
	s := h / mm.height
	mm.scale(s, s)
}

func (mm *ModelMatrix) SetX(x float32) { mm.m[12] = x }
func (mm *ModelMatrix) SetY(y float32) { mm.m[13] = y }

func (mm *ModelMatrix) SetPosition(x, y float32) {
	mm.SetX(x)
	mm.SetY(y)
}

func (mm *ModelMatrix) CenterX(x float32) {
	w := mm.width * mm.ScaleX()
	mm.SetX(x - w/2.0)
}

func (mm *ModelMatrix) CenterY(y float32) {
	h := mm.height * mm.ScaleY()
	mm.SetY(y - h/2.0)
}

func (mm *ModelMatrix) Top(y float32) {
	h := mm.height * mm.ScaleY()
	mm.SetY(y - h)
}

func (mm *ModelMatrix) Bottom(y float32) {
	mm.SetY(y)
}

func (mm *ModelMatrix) Left(x float32) {
	mm.SetX(x)
}

func (mm *ModelMatrix) Right(x float32) {
	w := mm.width * mm.ScaleX()
	mm.SetX(x - w)
}

// layoutOrder applies size keys before position keys, since positions depend on scale.
var layoutOrder = []string{"width", "height", "x", "y", "center_x", "center_y", "top", "bottom", "left", "right"}

// SetupFromLayout applies a manifest layout map. Unknown keys are ignored.
// When no horizontal or vertical position is given the canvas is centered on that axis.
func (mm *ModelMatrix) SetupFromLayout(layout map[string]float32) {
	hasX, hasY := false, false
	for _, key := range layoutOrder {
		v, ok := layout[key]
		if !ok {
			continue
		}
		switch key {
		case "width":
			mm.SetWidth(v)
		case "height":
			mm.SetHeight(v)
		case "x":
			mm.SetX(v)
			hasX = true
		case "y":
			mm.SetY(v)
			hasY = true
		case "center_x":
			mm.CenterX(v)
			hasX = true
		case "center_y":
			mm.CenterY(v)
			hasY = true
		case "top":
			mm.Top(v)
			hasY = true
		case "bottom":
			mm.Bottom(v)
			hasY = true
		case "left":
			mm.Left(v)
			hasX = true
		case "right":
			mm.Right(v)
			hasX = true
		}
	}
	if !hasX {
		mm.CenterX(0)
	}
	if !hasY {
		mm.CenterY(0)
	}
}

// InvertTransformX maps a device X coordinate back into model units.
func (mm *ModelMatrix) InvertTransformX(x float32) float32 {
	return (x - mm.m[12]) / mm.m[0]
}

// InvertTransformY maps a device Y coordinate back into model units.
func (mm *ModelMatrix) InvertTransformY(y float32) float32 {
	return (y - mm.m[13]) / mm.m[5]
}

// Projection returns the view projection for a surface of the given size.
func Projection(width, height int) mgl32.Mat4 {
	if width <= 0 || height <= 0 {
		return mgl32.Ident4()
	}
	return mgl32.Scale3D(1.0, float32(width)/float32(height), 1.0)
}
