package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v2.1/gl"

	"github.com/spaghettifunk/companion/engine/assets/loaders"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/renderer"
)

// Surface is the window whose GL context the backend draws into.
type Surface interface {
	MakeContextCurrent()
	SwapBuffers()
	FramebufferSize() (int, int)
}

// Backend draws models as textured quads with the fixed-function pipeline.
type Backend struct {
	surface    Surface
	attributes renderer.ContextAttributes
	textures   map[int]uint32
}

var _ renderer.RendererBackend = &Backend{}

func New(surface Surface) *Backend {
	return &Backend{
		surface:  surface,
		textures: map[int]uint32{},
	}
}

func (b *Backend) Initialize(attributes renderer.ContextAttributes) error {
	b.surface.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	b.attributes = attributes

	core.LogInfo("OpenGL version: %s", gl.GoStr(gl.GetString(gl.VERSION)))
	core.LogDebug("OpenGL renderer: %s", gl.GoStr(gl.GetString(gl.RENDERER)))

	if attributes.Antialias {
		gl.Enable(gl.MULTISAMPLE)
	}
	if !attributes.Stencil {
		gl.Disable(gl.STENCIL_TEST)
	}
	gl.Enable(gl.TEXTURE_2D)
	return nil
}

func (b *Backend) Shutdown() error {
	for index := range b.textures {
		b.TextureDestroy(index)
	}
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.Viewport(0, 0, width, height)
	return nil
}

// IsContextLost is true while the window has no drawable framebuffer, e.g. minimized.
func (b *Backend) IsContextLost() bool {
	w, h := b.surface.FramebufferSize()
	return w == 0 || h == 0
}

func (b *Backend) BeginFrame(deltaTime float64) error {
	b.surface.MakeContextCurrent()
	if b.attributes.Depth {
		gl.Clear(gl.DEPTH_BUFFER_BIT)
	}
	// the back buffer is undefined after a swap unless it is preserved
	if !b.attributes.PreserveDrawingBuffer {
		gl.ClearColor(0, 0, 0, 0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
	}
	return nil
}

func (b *Backend) EndFrame(deltaTime float64) error {
	b.surface.SwapBuffers()
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("OpenGL error 0x%x", code)
	}
	return nil
}

func (b *Backend) Clear(r, g, bl, a float32) {
	gl.ClearColor(r, g, bl, a)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (b *Backend) Viewport(x, y int32, width, height uint32) {
	gl.Viewport(x, y, int32(width), int32(height))
}

func toggle(capability uint32, enabled bool) {
	if enabled {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

func (b *Backend) SetDepthTest(enabled bool) { toggle(gl.DEPTH_TEST, enabled) }
func (b *Backend) SetBlend(enabled bool)     { toggle(gl.BLEND, enabled) }
func (b *Backend) SetCullFace(enabled bool)  { toggle(gl.CULL_FACE, enabled) }

func (b *Backend) SetColorMask(r, g, bl, a bool) {
	gl.ColorMask(r, g, bl, a)
}

func blendFactor(f renderer.BlendFactor) uint32 {
	switch f {
	case renderer.BLEND_ONE:
		return gl.ONE
	case renderer.BLEND_SRC_ALPHA:
		return gl.SRC_ALPHA
	case renderer.BLEND_ONE_MINUS_SRC_ALPHA:
		return gl.ONE_MINUS_SRC_ALPHA
	}
	return gl.ZERO
}

func (b *Backend) SetBlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha renderer.BlendFactor) {
	gl.BlendFuncSeparate(blendFactor(srcRGB), blendFactor(dstRGB), blendFactor(srcAlpha), blendFactor(dstAlpha))
}

func (b *Backend) TextureCreate(index int, texture *loaders.TextureData) error {
	if texture.Width <= 0 || texture.Height <= 0 || len(texture.Pixels) < texture.Width*texture.Height*4 {
		return fmt.Errorf("texture %s has no pixel data", texture.Name)
	}
	b.TextureDestroy(index)

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(texture.Width), int32(texture.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(texture.Pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return fmt.Errorf("texture %s upload failed with 0x%x", texture.Name, code)
	}
	b.textures[index] = id
	core.LogDebug("texture %s bound to slot %d", texture.Name, index)
	return nil
}

func (b *Backend) TextureDestroy(index int) {
	id, ok := b.textures[index]
	if !ok {
		return
	}
	gl.DeleteTextures(1, &id)
	delete(b.textures, index)
}

func (b *Backend) DrawModel(data *renderer.ModelRenderData) error {
	gl.MatrixMode(gl.PROJECTION)
	gl.LoadMatrixf(&data.Projection[0])
	gl.MatrixMode(gl.MODELVIEW)
	gl.LoadMatrixf(&data.Model[0])

	for _, d := range data.Drawables {
		if d.Opacity <= 0 {
			continue
		}
		id, ok := b.textures[d.TextureIndex]
		if !ok {
			// unbound slot, nothing to draw
			continue
		}
		gl.BindTexture(gl.TEXTURE_2D, id)
		if b.attributes.PremultipliedAlpha {
			gl.Color4f(d.Opacity, d.Opacity, d.Opacity, d.Opacity)
		} else {
			gl.Color4f(1, 1, 1, d.Opacity)
		}
		x0, y0, x1, y1 := d.Bounds[0], d.Bounds[1], d.Bounds[2], d.Bounds[3]
		gl.Begin(gl.QUADS)
		gl.TexCoord2f(0, 1)
		gl.Vertex2f(x0, y0)
		gl.TexCoord2f(1, 1)
		gl.Vertex2f(x1, y0)
		gl.TexCoord2f(1, 0)
		gl.Vertex2f(x1, y1)
		gl.TexCoord2f(0, 0)
		gl.Vertex2f(x0, y1)
		gl.End()
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}
