package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/companion/engine/assets/loaders"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/math"
	"github.com/spaghettifunk/companion/engine/rig"
)

type RendererConfig struct {
	Backend    RendererBackend
	Attributes ContextAttributes
	Width      uint32
	Height     uint32
}

// RenderPacket carries the state of one frame.
type RenderPacket struct {
	DeltaTime float64
	Rig       rig.Rig
	Model     *math.ModelMatrix
}

var ErrNoBackend = errors.New("renderer requires a backend")

// Coordinator owns the drawing surface and applies the per-frame state
// every model draw relies on.
type Coordinator struct {
	backend    RendererBackend
	attributes ContextAttributes

	width  uint32
	height uint32

	initialized bool
	firstFrame  bool
	modelReady  bool
	// slots bound since the last model release
	textures map[int]struct{}
}

func NewCoordinator(config RendererConfig) (*Coordinator, error) {
	if config.Backend == nil {
		return nil, ErrNoBackend
	}
	return &Coordinator{
		backend:    config.Backend,
		attributes: config.Attributes,
		width:      config.Width,
		height:     config.Height,
		firstFrame: true,
		textures:   map[int]struct{}{},
	}, nil
}

/**
 * @brief Acquires the drawing surface. Calling it again after success is a no-op.
 * @returns True if the surface is ready.
 */
func (c *Coordinator) Initialize() bool {
	if c.initialized {
		return true
	}
	if err := c.backend.Initialize(c.attributes); err != nil {
		core.LogError("failed to initialize the drawing surface: %s", err)
		return false
	}
	c.initialized = true
	c.firstFrame = true
	core.LogInfo("Renderer initialized.")
	return true
}

func (c *Coordinator) IsInitialized() bool { return c.initialized }

func (c *Coordinator) Shutdown() error {
	if !c.initialized {
		return nil
	}
	c.initialized = false
	c.modelReady = false
	c.textures = map[int]struct{}{}
	return c.backend.Shutdown()
}

func (c *Coordinator) OnResize(width, height uint32) error {
	c.width = width
	c.height = height
	if !c.initialized {
		return nil
	}
	return c.backend.Resized(width, height)
}

func (c *Coordinator) Size() (uint32, uint32) { return c.width, c.height }

// BindTexture uploads a decoded texture into slot index.
func (c *Coordinator) BindTexture(index int, texture *loaders.TextureData) error {
	if !c.initialized {
		return fmt.Errorf("%w: %s: %w", core.ErrTextureBind, texture.Name, core.ErrNotInitialized)
	}
	if err := c.backend.TextureCreate(index, texture); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrTextureBind, texture.Name, err)
	}
	c.textures[index] = struct{}{}
	return nil
}

func (c *Coordinator) TextureCount() int { return len(c.textures) }

// SetupModel marks the loaded model as drawable.
func (c *Coordinator) SetupModel(r rig.Rig) error {
	if r == nil {
		return core.ErrNotInitialized
	}
	w, h := r.CanvasSize()
	core.LogDebug("renderer set up for a %vx%v canvas with %d drawables", w, h, r.DrawableCount())
	c.modelReady = true
	return nil
}

// ReleaseModel destroys every texture slot bound for the current model and
// stops drawing it until the next SetupModel.
func (c *Coordinator) ReleaseModel() {
	for index := range c.textures {
		c.backend.TextureDestroy(index)
	}
	c.textures = map[int]struct{}{}
	c.modelReady = false
}

/**
 * @brief Draws one frame. A lost surface skips the frame without touching any state.
 * @returns True if the frame was drawn.
 */
func (c *Coordinator) DrawFrame(packet *RenderPacket) (bool, error) {
	if !c.initialized {
		return false, core.ErrNotInitialized
	}
	if c.backend.IsContextLost() {
		return false, nil
	}

	if err := c.backend.BeginFrame(packet.DeltaTime); err != nil {
		return false, err
	}

	if c.firstFrame {
		c.backend.Clear(0, 0, 0, 0)
		c.firstFrame = false
	}

	c.backend.SetDepthTest(false)
	c.backend.SetBlend(true)
	c.backend.SetBlendFuncSeparate(BLEND_SRC_ALPHA, BLEND_ONE_MINUS_SRC_ALPHA, BLEND_ONE, BLEND_ONE_MINUS_SRC_ALPHA)
	c.backend.SetCullFace(false)
	c.backend.SetColorMask(true, true, true, true)
	c.backend.Viewport(0, 0, c.width, c.height)

	if c.modelReady && packet.Rig != nil && packet.Model != nil {
		data := &ModelRenderData{
			Drawables:  packet.Rig.Drawables(),
			Model:      packet.Model.Mat4(),
			Projection: math.Projection(int(c.width), int(c.height)),
		}
		if err := c.backend.DrawModel(data); err != nil {
			core.LogError("failed to draw model: %s", err)
		}
	}

	if err := c.backend.EndFrame(packet.DeltaTime); err != nil {
		return false, err
	}
	return true, nil
}
