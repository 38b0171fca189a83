package interaction

import (
	"errors"
	"time"

	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/motion"
)

// HeadThreshold splits a hit into "Head" (device Y below it) and "Body".
const HeadThreshold = 0.3

const (
	AreaHead = "Head"
	AreaBody = "Body"
)

// Model region, as fractions of the surface size.
const (
	regionCenterX    = 0.5
	regionCenterY    = 0.55
	regionHalfWidth  = 0.175
	regionHalfHeight = 0.25
)

// Target is the model taps and drags are routed to.
type Target interface {
	HitDrawable(x, y float32) (string, bool)
	StartRandomMotion(group string, p motion.Priority, onFinished motion.Callback) motion.Handle
	SetDragging(x, y float32)
}

// WindowDragger moves the overlay window with the cursor while a drag is active.
type WindowDragger interface {
	BeginWindowDrag()
	EndWindowDrag()
}

type RouterConfig struct {
	Width  float64
	Height float64
	// Presses this close to the top of the model region, in pixels, move the window.
	DragStripHeight float64
	// Share of the raw pointer fed to the drag state while no button is held.
	FollowDamping float64
	// Probability that a tap missing every drawable plays TapBody instead of Idle.
	TapBodyChance float64
	// Optional. Receives EVENT_CODE_HIT_AREA.
	Events *core.EventBus
	// Optional.
	Window WindowDragger
	// Optional. Seeded from the clock when nil.
	Rand *rand.Rand
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Width:           400,
		Height:          500,
		DragStripHeight: 100,
		FollowDamping:   0.3,
		TapBodyChance:   0.7,
	}
}

var ErrInvalidSurface = errors.New("router surface size must be positive")

// Router turns pointer input in surface pixels into motions and drag state.
type Router struct {
	cfg    RouterConfig
	rand   *rand.Rand
	target Target

	mouseDown bool
	dragging  bool
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrInvalidSurface
	}
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &Router{cfg: cfg, rand: r}, nil
}

// SetTarget swaps the routed model; nil drops every interaction.
func (r *Router) SetTarget(t Target) {
	r.target = t
	r.mouseDown = false
	r.dragging = false
}

func (r *Router) SetWindow(w WindowDragger) {
	r.cfg.Window = w
}

func (r *Router) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	r.cfg.Width = width
	r.cfg.Height = height
}

func (r *Router) IsDragging() bool { return r.dragging }

// ToDevice maps surface pixels to device coordinates, Y up.
func (r *Router) ToDevice(x, y float64) (float32, float32) {
	dx := (x/r.cfg.Width)*2 - 1
	dy := -((y/r.cfg.Height)*2 - 1)
	return float32(dx), float32(dy)
}

// InDragStrip reports whether the pixel lies in the window-drag band at the top of the model region.
func (r *Router) InDragStrip(x, y float64) bool {
	top := r.cfg.Height * (regionCenterY - regionHalfHeight)
	return r.InModelRegion(x, y) && y-top < r.cfg.DragStripHeight
}

// InModelRegion reports whether the pixel lies in the ellipse around the model, boundary included.
func (r *Router) InModelRegion(x, y float64) bool {
	cx := r.cfg.Width * regionCenterX
	cy := r.cfg.Height * regionCenterY
	rx := r.cfg.Width * regionHalfWidth
	ry := r.cfg.Height * regionHalfHeight
	nx := (x - cx) / rx
	ny := (y - cy) / ry
	return nx*nx+ny*ny <= 1
}

// HitArea names the region under a device point, or "" when no drawable is hit.
func (r *Router) HitArea(deviceX, deviceY float32) string {
	if r.target == nil {
		return ""
	}
	if _, ok := r.target.HitDrawable(deviceX, deviceY); !ok {
		return ""
	}
	if deviceY < HeadThreshold {
		return AreaHead
	}
	return AreaBody
}

/**
 * @brief Routes a tap at surface pixel (x, y) to a motion. Taps outside the
 * model region are not routed.
 * @returns The hit area ("" when no drawable was hit) and the started motion handle.
 */
func (r *Router) Tap(x, y float64) (string, motion.Handle) {
	if r.target == nil || !r.InModelRegion(x, y) {
		return "", motion.InvalidHandle
	}
	dx, dy := r.ToDevice(x, y)
	area := r.HitArea(dx, dy)
	core.LogDebug("tap at (%.1f, %.1f) -> device (%.3f, %.3f) area %q", x, y, dx, dy, area)

	if area != "" {
		if r.cfg.Events != nil {
			r.cfg.Events.Fire(core.EventContext{
				Type: core.EVENT_CODE_HIT_AREA,
				Data: &core.HitEvent{Area: area, DeviceX: dx, DeviceY: dy},
			})
		}
		return area, r.target.StartRandomMotion(motion.GroupTapBody, motion.PriorityNormal, nil)
	}

	group := motion.GroupIdle
	if r.rand.Float64() < r.cfg.TapBodyChance {
		group = motion.GroupTapBody
	}
	return "", r.target.StartRandomMotion(group, motion.PriorityNormal, nil)
}

// Drag feeds the pointer at surface pixel (x, y) to the drag state.
func (r *Router) Drag(x, y float64) {
	if r.target == nil {
		return
	}
	dx, dy := r.ToDevice(x, y)
	r.target.SetDragging(dx, dy)
}

func (r *Router) OnButtonPressed(button core.Button, x, y float64) bool {
	if r.target == nil || !r.InModelRegion(x, y) {
		return false
	}
	r.mouseDown = true
	if button == core.BUTTON_LEFT && r.InDragStrip(x, y) {
		r.dragging = true
		if r.cfg.Window != nil {
			r.cfg.Window.BeginWindowDrag()
		}
	}
	return true
}

func (r *Router) OnButtonReleased(button core.Button, x, y float64) bool {
	wasDown := r.mouseDown
	r.mouseDown = false
	if r.dragging {
		r.dragging = false
		if r.cfg.Window != nil {
			r.cfg.Window.EndWindowDrag()
		}
		return true
	}
	if !wasDown || button != core.BUTTON_LEFT || !r.InModelRegion(x, y) {
		return false
	}
	r.Tap(x, y)
	return true
}

func (r *Router) OnMouseMoved(x, y float64) bool {
	if r.target == nil || r.dragging || !r.InModelRegion(x, y) {
		return false
	}
	if r.mouseDown {
		r.Drag(x, y)
	} else {
		r.Drag(x*r.cfg.FollowDamping, y*r.cfg.FollowDamping)
	}
	return true
}

// OnMouseLeft recenters the gaze once the cursor leaves the window.
func (r *Router) OnMouseLeft() bool {
	r.mouseDown = false
	if r.dragging {
		r.dragging = false
		if r.cfg.Window != nil {
			r.cfg.Window.EndWindowDrag()
		}
	}
	if r.target != nil {
		r.target.SetDragging(0, 0)
	}
	return false
}

func (r *Router) OnDoubleClick(x, y float64) bool {
	if r.target == nil || !r.InModelRegion(x, y) {
		return false
	}
	r.target.StartRandomMotion(motion.GroupIdle, motion.PriorityNormal, nil)
	return true
}

// Register subscribes the router to pointer events on the bus.
func (r *Router) Register(events *core.EventBus) {
	events.Register(core.EVENT_CODE_BUTTON_PRESSED, r, func(ctx core.EventContext) bool {
		e := ctx.Data.(*core.MouseEvent)
		return r.OnButtonPressed(e.Button, e.PosX, e.PosY)
	})
	events.Register(core.EVENT_CODE_BUTTON_RELEASED, r, func(ctx core.EventContext) bool {
		e := ctx.Data.(*core.MouseEvent)
		return r.OnButtonReleased(e.Button, e.PosX, e.PosY)
	})
	events.Register(core.EVENT_CODE_MOUSE_MOVED, r, func(ctx core.EventContext) bool {
		e := ctx.Data.(*core.MouseEvent)
		return r.OnMouseMoved(e.PosX, e.PosY)
	})
	events.Register(core.EVENT_CODE_MOUSE_LEFT, r, func(core.EventContext) bool {
		return r.OnMouseLeft()
	})
	events.Register(core.EVENT_CODE_DOUBLE_CLICK, r, func(ctx core.EventContext) bool {
		e := ctx.Data.(*core.MouseEvent)
		return r.OnDoubleClick(e.PosX, e.PosY)
	})
	events.Register(core.EVENT_CODE_RESIZED, r, func(ctx core.EventContext) bool {
		e := ctx.Data.(*core.SystemEvent)
		r.Resize(float64(e.WindowWidth), float64(e.WindowHeight))
		return false
	})
}

func (r *Router) Unregister(events *core.EventBus) {
	for _, code := range []core.EventCode{
		core.EVENT_CODE_BUTTON_PRESSED,
		core.EVENT_CODE_BUTTON_RELEASED,
		core.EVENT_CODE_MOUSE_MOVED,
		core.EVENT_CODE_MOUSE_LEFT,
		core.EVENT_CODE_DOUBLE_CLICK,
		core.EVENT_CODE_RESIZED,
	} {
		events.Unregister(code, r)
	}
}
