package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/companion/engine/assets/loaders"
	"github.com/spaghettifunk/companion/engine/rig"
)

// ContextAttributes are requested when the drawing surface is acquired.
type ContextAttributes struct {
	Alpha                 bool
	PremultipliedAlpha    bool
	Antialias             bool
	Depth                 bool
	Stencil               bool
	PreserveDrawingBuffer bool
}

// OverlayAttributes is what a transparent desktop overlay needs.
func OverlayAttributes() ContextAttributes {
	return ContextAttributes{
		Alpha:                 true,
		PremultipliedAlpha:    true,
		Antialias:             true,
		Depth:                 true,
		Stencil:               false,
		PreserveDrawingBuffer: false,
	}
}

type BlendFactor uint8

const (
	BLEND_ZERO BlendFactor = iota
	BLEND_ONE
	BLEND_SRC_ALPHA
	BLEND_ONE_MINUS_SRC_ALPHA
)

// ModelRenderData is everything a backend needs to draw one model.
type ModelRenderData struct {
	Drawables  []rig.Drawable
	Model      mgl32.Mat4
	Projection mgl32.Mat4
}

type RendererBackend interface {
	Initialize(attributes ContextAttributes) error
	Shutdown() error
	Resized(width, height uint32) error
	// IsContextLost reports whether the surface can't be drawn to right now.
	IsContextLost() bool
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	Clear(r, g, b, a float32)
	Viewport(x, y int32, width, height uint32)
	SetDepthTest(enabled bool)
	SetBlend(enabled bool)
	SetBlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha BlendFactor)
	SetCullFace(enabled bool)
	SetColorMask(r, g, b, a bool)
	TextureCreate(index int, texture *loaders.TextureData) error
	TextureDestroy(index int)
	DrawModel(data *ModelRenderData) error
}
