package engine

import (
	"errors"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/assets"
	"github.com/spaghettifunk/companion/engine/config"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/interaction"
	"github.com/spaghettifunk/companion/engine/model"
	"github.com/spaghettifunk/companion/engine/motion"
	"github.com/spaghettifunk/companion/engine/renderer"
	"github.com/spaghettifunk/companion/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running the render loop
	EngineStageRunning
	// Engine released everything it owned and can't be used anymore
	EngineStageReleased
)

// Surface is the window the engine draws into and reads input from.
type Surface interface {
	// PumpMessages processes pending window events, false once the window closed.
	PumpMessages() bool
	FramebufferSize() (int, int)
	Shutdown() error
}

type EngineConfig struct {
	// Optional. Defaults to config.DefaultApplicationConfig.
	Application *config.ApplicationConfig
	Backend     renderer.RendererBackend
	// Optional. Files are read through the framework's job system when nil.
	Fetcher assets.Fetcher
	// Optional. A private framework is created when nil.
	Framework *Framework
	// Optional. Shared with the platform layer when it feeds input.
	Events *core.EventBus
	Input  *core.Input
	// Optional. Seeded from the clock when nil.
	Rand *rand.Rand
}

var ErrEngineReleased = errors.New("engine already released")

// Engine wires the model, the renderer and the interaction router to one surface
// and drives them from the frame loop.
type Engine struct {
	ID           uuid.UUID
	currentStage Stage
	config       *config.ApplicationConfig

	surface     Surface
	events      *core.EventBus
	input       *core.Input
	framework   *Framework
	jobs        *systems.JobSystem
	watcher     *assets.Watcher
	coordinator *renderer.Coordinator
	router      *interaction.Router
	model       *model.Model
	clock       *core.Clock
	metrics     *core.Metrics

	running  atomic.Bool
	lastTime float64
}

func New(cfg EngineConfig) (*Engine, error) {
	app := cfg.Application
	if app == nil {
		app = config.DefaultApplicationConfig()
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	events := cfg.Events
	if events == nil {
		events = core.NewEventBus()
	}
	input := cfg.Input
	if input == nil {
		input = core.NewInput(events)
	}
	framework := cfg.Framework
	if framework == nil {
		framework = NewFramework(systems.JobSystemConfig{NumWorkers: app.Workers, QueueSize: 64})
	}

	coordinator, err := renderer.NewCoordinator(renderer.RendererConfig{
		Backend:    cfg.Backend,
		Attributes: renderer.OverlayAttributes(),
		Width:      app.StartWidth,
		Height:     app.StartHeight,
	})
	if err != nil {
		return nil, err
	}

	router, err := interaction.NewRouter(interaction.RouterConfig{
		Width:           float64(app.StartWidth),
		Height:          float64(app.StartHeight),
		DragStripHeight: app.Interaction.DragStripHeight,
		FollowDamping:   app.Interaction.FollowDamping,
		TapBodyChance:   app.Interaction.TapBodyChance,
		Events:          events,
		Rand:            cfg.Rand,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	jobs, err := framework.Acquire(id)
	if err != nil {
		return nil, err
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = assets.NewFileFetcher(jobs)
	}

	m, err := model.NewModel(model.ModelConfig{
		ID:       id,
		Fetcher:  fetcher,
		Renderer: coordinator,
		Events:   events,
		Rand:     cfg.Rand,
	})
	if err != nil {
		_, _ = framework.Release(id)
		return nil, err
	}

	return &Engine{
		ID:           id,
		currentStage: EngineStageUninitialized,
		config:       app,
		events:       events,
		input:        input,
		framework:    framework,
		jobs:         jobs,
		coordinator:  coordinator,
		router:       router,
		model:        m,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

/**
 * @brief Acquires the surface and starts loading the configured model.
 * Calling it again after success is a no-op.
 * @returns True if the engine is ready to run the render loop.
 */
func (e *Engine) Initialize(surface Surface) bool {
	switch e.currentStage {
	case EngineStageInitialized, EngineStageRunning:
		return true
	case EngineStageReleased:
		core.LogError("failed to initialize: %s", ErrEngineReleased)
		return false
	}
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.config.Level())

	e.surface = surface
	if !e.coordinator.Initialize() {
		e.currentStage = EngineStageUninitialized
		return false
	}
	if w, h := surface.FramebufferSize(); w > 0 && h > 0 {
		_ = e.coordinator.OnResize(uint32(w), uint32(h))
	}

	if w, ok := surface.(interaction.WindowDragger); ok {
		e.router.SetWindow(w)
	}
	e.router.SetTarget(e.model)
	e.router.Register(e.events)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)
	e.events.Register(core.EVENT_CODE_MODEL_READY, e, e.onModelReady)

	if e.config.HotReload {
		e.startWatcher()
	}

	e.model.LoadAssets(e.config.ModelDir(), e.config.ManifestFileName())

	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized.")
	return true
}

func (e *Engine) startWatcher() {
	w, err := assets.NewWatcher(e.jobs, e.config.HotReloadDebounce(), func(path string) {
		e.events.Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: path})
	})
	if err != nil {
		core.LogWarn("hot reload disabled: %s", err)
		return
	}
	if err := w.Watch(e.config.ModelDir()); err != nil {
		core.LogWarn("hot reload disabled: %s", err)
		_ = w.Close()
		return
	}
	e.watcher = w
}

/**
 * @brief Runs frames until StopRenderLoop is called or the surface closes.
 */
func (e *Engine) StartRenderLoop() error {
	switch e.currentStage {
	case EngineStageReleased:
		return ErrEngineReleased
	case EngineStageRunning:
		return nil
	case EngineStageInitialized:
	default:
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.running.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.running.Load() {
		if !e.surface.PumpMessages() {
			break
		}
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.Frame(delta); err != nil {
			core.LogError("frame failed: %s", err)
		}
		e.lastTime = currentTime
	}

	e.running.Store(false)
	e.clock.Stop()
	if e.currentStage == EngineStageRunning {
		e.currentStage = EngineStageInitialized
	}
	return nil
}

// StopRenderLoop makes the loop return after the current frame. Safe from any goroutine.
func (e *Engine) StopRenderLoop() {
	e.running.Store(false)
}

func (e *Engine) IsRunning() bool { return e.running.Load() }

/**
 * @brief Advances one frame: fetch completions, the model pose, then the draw.
 */
func (e *Engine) Frame(deltaTime float64) error {
	e.jobs.Update()
	e.model.Update(float32(deltaTime))

	packet := &renderer.RenderPacket{DeltaTime: deltaTime}
	if e.model.IsInitialized() {
		packet.Rig = e.model.Rig()
		packet.Model = e.model.Matrix()
	}
	_, err := e.coordinator.DrawFrame(packet)

	if e.metrics.Update(deltaTime) {
		fps, ms := e.metrics.Frame()
		core.LogDebug("%.0f fps, %.2f ms per frame", fps, ms)
	}

	// NOTE: input state is copied last, after everything consumed this frame's events.
	e.input.Update(deltaTime)
	return err
}

// OnTap routes a tap at window pixel (x, y).
func (e *Engine) OnTap(x, y float64) motion.Handle {
	area, h := e.router.Tap(x, y)
	if e.config.Interaction.DebugTouch {
		core.LogDebug("tap (%.0f, %.0f) area %q handle %d", x, y, area, h)
	}
	return h
}

// OnDrag points the model at window pixel (x, y).
func (e *Engine) OnDrag(x, y float64) {
	e.router.Drag(x, y)
}

func (e *Engine) StartRandomMotion(group string, p motion.Priority) motion.Handle {
	return e.model.StartRandomMotion(group, p, nil)
}

func (e *Engine) Model() *model.Model                { return e.model }
func (e *Engine) Router() *interaction.Router        { return e.router }
func (e *Engine) Coordinator() *renderer.Coordinator { return e.coordinator }
func (e *Engine) Events() *core.EventBus             { return e.events }
func (e *Engine) Input() *core.Input                 { return e.input }
func (e *Engine) Stage() Stage                       { return e.currentStage }

/**
 * @brief Stops the loop and releases the model, the surface and, when no other
 * model holds it, the framework. The engine can't be reused afterwards.
 */
func (e *Engine) Release() error {
	if e.currentStage == EngineStageReleased {
		return nil
	}
	e.StopRenderLoop()

	e.router.Unregister(e.events)
	e.router.SetTarget(nil)
	for _, code := range []core.EventCode{
		core.EVENT_CODE_APPLICATION_QUIT,
		core.EVENT_CODE_RESIZED,
		core.EVENT_CODE_ASSET_CHANGED,
		core.EVENT_CODE_MODEL_READY,
	} {
		e.events.Unregister(code, e)
	}

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
	}
	e.model.Release()
	errs = append(errs, e.coordinator.Shutdown())
	if e.surface != nil {
		errs = append(errs, e.surface.Shutdown())
		e.surface = nil
	}
	disposed, err := e.framework.Release(e.ID)
	errs = append(errs, err)
	if disposed {
		core.LogDebug("last model released, framework shut down")
	}

	e.currentStage = EngineStageReleased
	core.LogInfo("Engine released.")
	return errors.Join(errs...)
}

func (e *Engine) onQuit(context core.EventContext) bool {
	e.StopRenderLoop()
	return true
}

func (e *Engine) onResized(context core.EventContext) bool {
	if e.surface == nil {
		return false
	}
	w, h := e.surface.FramebufferSize()
	if w > 0 && h > 0 {
		if err := e.coordinator.OnResize(uint32(w), uint32(h)); err != nil {
			core.LogError("failed to resize: %s", err)
		}
	}
	return false
}

func (e *Engine) onModelReady(context core.EventContext) bool {
	core.LogInfo("model %s ready with %d textures", e.config.ModelName, e.model.TextureCount())
	return false
}

// onAssetChanged reloads the model when one of its files changed on disk.
func (e *Engine) onAssetChanged(context core.EventContext) bool {
	path, ok := context.Data.(string)
	if !ok || !e.isModelFile(path) {
		return false
	}
	core.LogInfo("%s changed, reloading model %s", path, e.config.ModelName)
	e.model.LoadAssets(e.config.ModelDir(), e.config.ManifestFileName())
	return true
}

func (e *Engine) isModelFile(path string) bool {
	rel, err := filepath.Rel(e.config.ModelDir(), path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == e.config.ManifestFileName() {
		return true
	}
	m := e.model.Manifest()
	if m == nil {
		// still loading or failed, any file of the directory may fix it
		return true
	}
	for _, f := range m.Files() {
		if filepath.ToSlash(filepath.Clean(f)) == rel {
			return true
		}
	}
	return false
}
