package platform

import (
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/companion/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type PlatformConfig struct {
	ApplicationName string
	X               uint32
	Y               uint32
	Width           uint32
	Height          uint32
	AlwaysOnTop     bool
	// Multisample count, 0 disables antialiasing.
	Samples int
}

// Platform owns the overlay window and turns its callbacks into input events.
type Platform struct {
	Window *glfw.Window

	events *core.EventBus
	input  *core.Input

	windowDrag bool
	grabX      float64
	grabY      float64
}

func New(events *core.EventBus, input *core.Input) *Platform {
	return &Platform{
		events: events,
		input:  input,
	}
}

/**
 * @brief Creates a transparent, undecorated window with an OpenGL 2.1 context.
 */
func (p *Platform) Startup(cfg PlatformConfig) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Decorated, glfw.False)
	glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.AlphaBits, 8)
	glfw.WindowHint(glfw.DepthBits, 24)
	glfw.WindowHint(glfw.StencilBits, 0)
	glfw.WindowHint(glfw.Samples, cfg.Samples)
	if cfg.AlwaysOnTop {
		glfw.WindowHint(glfw.Floating, glfw.True)
	}

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.ApplicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window
	p.Window.MakeContextCurrent()
	glfw.SwapInterval(1)

	p.Window.SetMouseButtonCallback(p.mouseButtonCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetCursorEnterCallback(p.cursorEnterCallback)
	p.Window.SetSizeCallback(p.sizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(cfg.X), int(cfg.Y))
	p.Window.Show()

	core.LogInfo("Platform window %dx%d created.", cfg.Width, cfg.Height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. It returns false once the window should close.
func (p *Platform) PumpMessages() bool {
	if p.Window == nil {
		return false
	}
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) MakeContextCurrent() { p.Window.MakeContextCurrent() }
func (p *Platform) SwapBuffers()        { p.Window.SwapBuffers() }

func (p *Platform) FramebufferSize() (int, int) {
	if p.Window == nil {
		return 0, 0
	}
	return p.Window.GetFramebufferSize()
}

func (p *Platform) WindowSize() (int, int) {
	if p.Window == nil {
		return 0, 0
	}
	return p.Window.GetSize()
}

// BeginWindowDrag makes the window follow the cursor until EndWindowDrag.
func (p *Platform) BeginWindowDrag() {
	if p.Window == nil {
		return
	}
	p.windowDrag = true
	p.grabX, p.grabY = p.Window.GetCursorPos()
}

func (p *Platform) EndWindowDrag() {
	p.windowDrag = false
}

func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) Sleep(ms float64) {
	time.Sleep(time.Duration(ms * float64(time.Millisecond)))
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	if action == glfw.Repeat {
		return
	}
	p.input.ProcessButton(b, action == glfw.Press, glfw.GetTime())
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	if p.windowDrag {
		// cursor coordinates are window relative, so moving by the delta keeps the grab point under it
		x, y := w.GetPos()
		w.SetPos(x+int(xpos-p.grabX), y+int(ypos-p.grabY))
		return
	}
	p.input.ProcessMouseMove(xpos, ypos)
}

func (p *Platform) cursorEnterCallback(w *glfw.Window, entered bool) {
	if !entered && !p.windowDrag {
		p.input.ProcessMouseLeave()
	}
}

func (p *Platform) sizeCallback(w *glfw.Window, width, height int) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{
			WindowWidth:  uint32(width),
			WindowHeight: uint32(height),
		},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}
