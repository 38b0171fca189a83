package engine

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/assets/loaders"
	"github.com/spaghettifunk/companion/engine/config"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/motion"
	"github.com/spaghettifunk/companion/engine/renderer"
	"github.com/spaghettifunk/companion/engine/systems"
)

const testRig = `{
  "Version": 1,
  "Canvas": {"Width": 4, "Height": 4},
  "Parameters": [
    {"Id": "ParamAngleX", "Min": -30, "Max": 30, "Default": 0},
    {"Id": "ParamMouthOpenY", "Min": 0, "Max": 1, "Default": 0}
  ],
  "Parts": [{"Id": "PartBody", "Opacity": 1}],
  "Drawables": [
    {"Id": "Body", "Texture": 0, "Part": "PartBody", "Order": 1, "Bounds": [0, 0, 4, 4]}
  ]
}`

const testClip = `{
  "Version": 3,
  "Meta": {"Duration": 1, "Fps": 30, "Loop": false},
  "Curves": [{"Target": "Parameter", "Id": "ParamMouthOpenY", "Segments": [0, 0, 0, 1, 1]}]
}`

const testManifest = `{
  "Version": 3,
  "FileReferences": {
    "Moc": "Test.rig.json",
    "Textures": ["Test.png"],
    "Motions": {
      "Idle": [{"File": "idle_0.motion3.json"}],
      "TapBody": [{"File": "tap_0.motion3.json"}]
    }
  }
}`

type fakeBackend struct {
	initRuns  int
	frames    int
	draws     int
	shutdowns int
	textures  map[int]*loaders.TextureData
}

func (fb *fakeBackend) Initialize(renderer.ContextAttributes) error { fb.initRuns++; return nil }
func (fb *fakeBackend) Shutdown() error                             { fb.shutdowns++; return nil }
func (fb *fakeBackend) Resized(width, height uint32) error          { return nil }
func (fb *fakeBackend) IsContextLost() bool                         { return false }
func (fb *fakeBackend) BeginFrame(float64) error                    { fb.frames++; return nil }
func (fb *fakeBackend) EndFrame(float64) error                      { return nil }
func (fb *fakeBackend) Clear(r, g, b, a float32)                    {}
func (fb *fakeBackend) Viewport(x, y int32, width, height uint32)   {}
func (fb *fakeBackend) SetDepthTest(bool)                           {}
func (fb *fakeBackend) SetBlend(bool)                               {}
func (fb *fakeBackend) SetCullFace(bool)                            {}
func (fb *fakeBackend) SetColorMask(r, g, b, a bool)                {}
func (fb *fakeBackend) TextureDestroy(index int)                    { delete(fb.textures, index) }
func (fb *fakeBackend) DrawModel(*renderer.ModelRenderData) error   { fb.draws++; return nil }

func (fb *fakeBackend) SetBlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha renderer.BlendFactor) {
}

func (fb *fakeBackend) TextureCreate(index int, texture *loaders.TextureData) error {
	if fb.textures == nil {
		fb.textures = map[int]*loaders.TextureData{}
	}
	fb.textures[index] = texture
	return nil
}

type fakeSurface struct {
	pumps     int
	open      int
	onPump    func(n int)
	shutdowns int
}

func (fs *fakeSurface) PumpMessages() bool {
	fs.pumps++
	if fs.onPump != nil {
		fs.onPump(fs.pumps)
	}
	return fs.pumps <= fs.open
}

func (fs *fakeSurface) FramebufferSize() (int, int) { return 400, 500 }
func (fs *fakeSurface) Shutdown() error             { fs.shutdowns++; return nil }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// writeModel lays out a complete model named Test below a fresh resources directory.
func writeModel(t *testing.T) *config.ApplicationConfig {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Test")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string][]byte{
		"Test.model3.json":    []byte(testManifest),
		"Test.rig.json":       []byte(testRig),
		"idle_0.motion3.json": []byte(testClip),
		"tap_0.motion3.json":  []byte(testClip),
		"Test.png":            pngBytes(t),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cfg := config.DefaultApplicationConfig()
	cfg.ResourcesPath = root
	cfg.ModelName = "Test"
	cfg.Workers = 1
	cfg.HotReload = false
	cfg.LogLevel = "error"
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.ApplicationConfig, fw *Framework) (*Engine, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	e, err := New(EngineConfig{
		Application: cfg,
		Backend:     fb,
		Framework:   fw,
		Rand:        rand.New(rand.NewSource(3)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, fb
}

// pumpUntil runs frames until cond holds or the deadline passes.
func pumpUntil(t *testing.T, e *Engine, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, model stage %s, load error %v", e.Model().Stage(), e.Model().LoadError())
		}
		if err := e.Frame(0.016); err != nil {
			t.Fatalf("Frame: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(EngineConfig{}); !errors.Is(err, renderer.ErrNoBackend) {
		t.Fatalf("err = %v, want ErrNoBackend", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultApplicationConfig()
	cfg.Workers = 0
	if _, err := New(EngineConfig{Application: cfg, Backend: &fakeBackend{}}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestEngineLoadsAndDraws(t *testing.T) {
	e, fb := newTestEngine(t, writeModel(t), nil)
	surface := &fakeSurface{}

	ready := 0
	e.Events().Register(core.EVENT_CODE_MODEL_READY, t, func(core.EventContext) bool {
		ready++
		return false
	})

	if !e.Initialize(surface) {
		t.Fatal("Initialize failed")
	}
	if !e.Initialize(surface) || fb.initRuns != 1 {
		t.Fatalf("second Initialize ran the backend again (%d runs)", fb.initRuns)
	}

	pumpUntil(t, e, e.Model().IsInitialized)
	if ready != 1 {
		t.Fatalf("ready events = %d, want 1", ready)
	}
	if len(fb.textures) != 1 {
		t.Fatalf("bound textures = %d, want 1", len(fb.textures))
	}

	draws := fb.draws
	if err := e.Frame(0.016); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if fb.draws != draws+1 {
		t.Fatalf("draws = %d, want %d", fb.draws, draws+1)
	}
	if p := e.Model().Arbiter().Manager().CurrentPriority(); p != motion.PriorityIdle {
		t.Fatalf("priority after idle frame = %v, want Idle", p)
	}

	if h := e.OnTap(5, 5); h != motion.InvalidHandle {
		t.Fatal("a tap outside the model region must not start a motion")
	}
	if h := e.OnTap(200, 275); h == motion.InvalidHandle {
		t.Fatal("tap on a ready model should start a motion")
	}
	if h := e.StartRandomMotion(motion.GroupIdle, motion.PriorityNormal); h != motion.InvalidHandle {
		t.Fatal("a Normal clip is already playing, an equal priority must be refused")
	}

	if err := e.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if surface.shutdowns != 1 || fb.shutdowns != 1 {
		t.Fatalf("surface shutdowns %d, backend shutdowns %d", surface.shutdowns, fb.shutdowns)
	}
	if e.Model().IsInitialized() || e.Stage() != EngineStageReleased {
		t.Fatal("Release left the model loaded")
	}
	if err := e.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if e.Initialize(surface) {
		t.Fatal("a released engine can't be initialized again")
	}
}

func TestOnDragMovesModel(t *testing.T) {
	e, _ := newTestEngine(t, writeModel(t), nil)
	if !e.Initialize(&fakeSurface{}) {
		t.Fatal("Initialize failed")
	}
	defer e.Release()

	e.OnDrag(400, 0)
	if x, y := e.Model().Drag(); x != 1 || y != 1 {
		t.Fatalf("drag = (%v, %v), want (1, 1)", x, y)
	}
}

func TestStartRenderLoop(t *testing.T) {
	e, fb := newTestEngine(t, writeModel(t), nil)
	if err := e.StartRenderLoop(); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("StartRenderLoop before Initialize = %v", err)
	}

	surface := &fakeSurface{open: 3}
	if !e.Initialize(surface) {
		t.Fatal("Initialize failed")
	}
	defer e.Release()

	if err := e.StartRenderLoop(); err != nil {
		t.Fatalf("StartRenderLoop: %v", err)
	}
	if fb.frames != 3 {
		t.Fatalf("frames = %d, want 3", fb.frames)
	}
	if e.IsRunning() || e.Stage() != EngineStageInitialized {
		t.Fatalf("loop still marked running, stage %d", e.Stage())
	}
}

func TestQuitEventStopsLoop(t *testing.T) {
	e, fb := newTestEngine(t, writeModel(t), nil)
	surface := &fakeSurface{open: 100}
	surface.onPump = func(n int) {
		if n == 2 {
			e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		}
	}
	if !e.Initialize(surface) {
		t.Fatal("Initialize failed")
	}
	defer e.Release()

	if err := e.StartRenderLoop(); err != nil {
		t.Fatalf("StartRenderLoop: %v", err)
	}
	// the frame of the pump that fired the quit still runs
	if fb.frames != 2 {
		t.Fatalf("frames = %d, want 2", fb.frames)
	}
}

func TestFrameworkSharedByEngines(t *testing.T) {
	fw := NewFramework(systems.JobSystemConfig{NumWorkers: 1})
	cfg := writeModel(t)
	first, _ := newTestEngine(t, cfg, fw)
	second, _ := newTestEngine(t, cfg, fw)

	if fw.Holders() != 2 || !fw.IsRunning() {
		t.Fatalf("holders = %d, running = %v", fw.Holders(), fw.IsRunning())
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !fw.IsRunning() {
		t.Fatal("framework shut down while another model still holds it")
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if fw.IsRunning() || fw.Holders() != 0 {
		t.Fatal("last release must shut the framework down")
	}
}

func TestFrameworkAcquireIsIdempotent(t *testing.T) {
	fw := NewFramework(systems.JobSystemConfig{NumWorkers: 1})
	e, _ := newTestEngine(t, writeModel(t), fw)
	if _, err := fw.Acquire(e.ID); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if fw.Holders() != 1 {
		t.Fatalf("holders = %d, want 1", fw.Holders())
	}
	if disposed, _ := fw.Release(e.ID); !disposed {
		t.Fatal("expected the only holder to shut the framework down")
	}
	if disposed, _ := fw.Release(e.ID); disposed {
		t.Fatal("releasing an unknown holder must be a no-op")
	}
}

func TestFrameworkRejectsBadJobConfig(t *testing.T) {
	fw := NewFramework(systems.JobSystemConfig{NumWorkers: 0})
	if _, err := New(EngineConfig{Backend: &fakeBackend{}, Framework: fw}); !errors.Is(err, systems.ErrNoWorkers) {
		t.Fatalf("err = %v, want ErrNoWorkers", err)
	}
}

func TestIsModelFile(t *testing.T) {
	cfg := writeModel(t)
	e, _ := newTestEngine(t, cfg, nil)
	if !e.Initialize(&fakeSurface{}) {
		t.Fatal("Initialize failed")
	}
	defer e.Release()
	pumpUntil(t, e, e.Model().IsInitialized)

	dir := cfg.ModelDir()
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "Test.model3.json"), true},
		{filepath.Join(dir, "idle_0.motion3.json"), true},
		{filepath.Join(dir, "Test.png"), true},
		{filepath.Join(dir, "notes.txt"), false},
		{filepath.Join(dir, "..", "Other", "Test.png"), false},
	}
	for _, tt := range tests {
		if got := e.isModelFile(tt.path); got != tt.want {
			t.Errorf("isModelFile(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestHotReload(t *testing.T) {
	cfg := writeModel(t)
	cfg.HotReload = true
	cfg.HotReloadDebounceMS = 10
	e, _ := newTestEngine(t, cfg, nil)

	ready := 0
	e.Events().Register(core.EVENT_CODE_MODEL_READY, t, func(core.EventContext) bool {
		ready++
		return false
	})
	if !e.Initialize(&fakeSurface{}) {
		t.Fatal("Initialize failed")
	}
	defer e.Release()
	pumpUntil(t, e, func() bool { return ready == 1 })

	clip := filepath.Join(cfg.ModelDir(), "tap_0.motion3.json")
	if err := os.WriteFile(clip, []byte(testClip), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pumpUntil(t, e, func() bool { return ready >= 2 })
}
