package model

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/assets"
	"github.com/spaghettifunk/companion/engine/assets/loaders"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/effects"
	"github.com/spaghettifunk/companion/engine/motion"
	"github.com/spaghettifunk/companion/engine/rig"
)

const modelDir = "models/Test"

const testRig = `{
  "Version": 1,
  "Canvas": {"Width": 4, "Height": 4},
  "Parameters": [
    {"Id": "ParamAngleX", "Min": -30, "Max": 30, "Default": 0},
    {"Id": "ParamAngleY", "Min": -30, "Max": 30, "Default": 0},
    {"Id": "ParamAngleZ", "Min": -30, "Max": 30, "Default": 0},
    {"Id": "ParamBodyAngleX", "Min": -10, "Max": 10, "Default": 0},
    {"Id": "ParamEyeBallX", "Min": -1, "Max": 1, "Default": 0},
    {"Id": "ParamEyeBallY", "Min": -1, "Max": 1, "Default": 0},
    {"Id": "ParamEyeLOpen", "Min": 0, "Max": 1, "Default": 1},
    {"Id": "ParamMouthOpenY", "Min": 0, "Max": 1, "Default": 0}
  ],
  "Parts": [{"Id": "PartBody", "Opacity": 1}],
  "Drawables": [
    {"Id": "Head", "Texture": 0, "Order": 2, "Bounds": [1, 2.5, 3, 4]},
    {"Id": "Body", "Texture": 0, "Part": "PartBody", "Order": 1, "Bounds": [0, 0, 4, 2.5]}
  ]
}`

const testClip = `{
  "Version": 3,
  "Meta": {"Duration": 1, "Fps": 30, "Loop": false, "FadeInTime": 0, "FadeOutTime": 0},
  "Curves": [{"Target": "Parameter", "Id": "ParamMouthOpenY", "Segments": [0, 0, 0, 1, 1]}]
}`

const fullManifest = `{
  "Version": 3,
  "FileReferences": {
    "Moc": "Test.rig.json",
    "Textures": ["Test.png", ""],
    "Expressions": [{"Name": "smile", "File": "smile.exp3.json"}],
    "UserData": "Test.userdata3.json",
    "Motions": {
      "Idle": [{"File": "idle_0.motion3.json"}, {"File": "idle_1.motion3.json"}],
      "TapBody": [{"File": "tap_0.motion3.json"}]
    }
  },
  "Groups": [{"Target": "Parameter", "Name": "EyeBlink", "Ids": ["ParamEyeLOpen"]}]
}`

const idleOnlyManifest = `{
  "Version": 3,
  "FileReferences": {
    "Moc": "Test.rig.json",
    "Motions": {"Idle": [{"File": "idle_0.motion3.json"}, {"File": "idle_1.motion3.json"}]}
  }
}`

type pendingFetch struct {
	path   string
	onDone assets.FetchCallback
}

type fakeFetcher struct {
	files    map[string][]byte
	pending  []pendingFetch
	requests []string
}

func (f *fakeFetcher) Fetch(path string, onDone assets.FetchCallback) {
	f.requests = append(f.requests, path)
	f.pending = append(f.pending, pendingFetch{path: path, onDone: onDone})
}

// run resolves fetches until none are left, each batch in the order chosen by perm.
func (f *fakeFetcher) run(perm func(n int) []int) int {
	turns := 0
	for len(f.pending) > 0 {
		turns++
		batch := f.pending
		f.pending = nil
		order := make([]int, len(batch))
		for i := range order {
			order[i] = i
		}
		if perm != nil {
			order = perm(len(batch))
		}
		for _, i := range order {
			r := batch[i]
			data, ok := f.files[r.path]
			if !ok {
				r.onDone(nil, errors.New("file not found"))
				continue
			}
			r.onDone(data, nil)
		}
	}
	return turns
}

type fakeRenderer struct {
	setups   int
	releases int
	bound    []int
}

func (fr *fakeRenderer) BindTexture(index int, _ *loaders.TextureData) error {
	fr.bound = append(fr.bound, index)
	return nil
}

func (fr *fakeRenderer) SetupModel(rig.Rig) error {
	fr.setups++
	return nil
}

func (fr *fakeRenderer) ReleaseModel() {
	fr.releases++
	fr.bound = nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 128})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func fixture(t *testing.T, manifest string) map[string][]byte {
	t.Helper()
	p := func(name string) string { return filepath.Join(modelDir, name) }
	return map[string][]byte{
		p("Test.model3.json"):    []byte(manifest),
		p("Test.rig.json"):       []byte(testRig),
		p("Test.png"):            pngBytes(t),
		p("smile.exp3.json"):     []byte(`{"Type":"Live2D Expression","Parameters":[{"Id":"ParamMouthOpenY","Value":0.5,"Blend":"Add"}]}`),
		p("Test.userdata3.json"): []byte(`{"Version":3,"UserData":[{"Target":"ArtMesh","Id":"Head","Value":"hat"}]}`),
		p("idle_0.motion3.json"): []byte(testClip),
		p("idle_1.motion3.json"): []byte(testClip),
		p("tap_0.motion3.json"):  []byte(testClip),
	}
}

type harness struct {
	model    *Model
	fetcher  *fakeFetcher
	renderer *fakeRenderer
	events   *core.EventBus
	ready    int
	failed   []error
}

func newHarness(t *testing.T, files map[string][]byte, seed uint64) *harness {
	t.Helper()
	h := &harness{
		fetcher:  &fakeFetcher{files: files},
		renderer: &fakeRenderer{},
		events:   core.NewEventBus(),
	}
	h.events.Register(core.EVENT_CODE_MODEL_READY, h, func(core.EventContext) bool {
		h.ready++
		return true
	})
	h.events.Register(core.EVENT_CODE_MODEL_LOAD_FAILED, h, func(ctx core.EventContext) bool {
		h.failed = append(h.failed, ctx.Data.(error))
		return true
	})
	m, err := NewModel(ModelConfig{
		Fetcher:  h.fetcher,
		Renderer: h.renderer,
		Events:   h.events,
		Rand:     rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	h.model = m
	return h
}

func (h *harness) load(perm func(n int) []int) int {
	h.model.LoadAssets(modelDir, "Test.model3.json")
	return h.fetcher.run(perm)
}

func TestNewModelRequiresFetcher(t *testing.T) {
	if _, err := NewModel(ModelConfig{}); !errors.Is(err, ErrNoFetcher) {
		t.Errorf("err = %v, want ErrNoFetcher", err)
	}
}

func TestLoadAssetsReachesComplete(t *testing.T) {
	h := newHarness(t, fixture(t, fullManifest), 1)
	h.load(nil)
	m := h.model

	if m.Stage() != StageComplete || !m.IsInitialized() || m.IsUpdating() {
		t.Fatalf("stage %s initialized %v updating %v", m.Stage(), m.IsInitialized(), m.IsUpdating())
	}
	if h.ready != 1 || len(h.failed) != 0 {
		t.Errorf("ready events %d, failures %v", h.ready, h.failed)
	}
	if h.renderer.setups != 1 {
		t.Errorf("renderer setup ran %d times, want 1", h.renderer.setups)
	}
	if len(h.renderer.bound) != 1 || h.renderer.bound[0] != 0 || m.TextureCount() != 1 {
		t.Errorf("bound textures = %v", h.renderer.bound)
	}
	if m.Arbiter().CacheSize() != 3 {
		t.Errorf("cached clips = %d, want 3", m.Arbiter().CacheSize())
	}
	if !m.Arbiter().IsFinished() {
		t.Error("no motion may play right after loading")
	}
	if v, ok := m.UserData().Value("ArtMesh", "Head"); !ok || v != "hat" {
		t.Errorf("user data = %q %v", v, ok)
	}
	if m.SetExpression("smile") == motion.InvalidHandle {
		t.Error("loaded expression should be playable")
	}
	if m.Matrix() == nil || m.Matrix().ScaleX() != 0.5 {
		t.Error("layout should scale the canvas to a height of 2")
	}
}

func TestLoadAssetsPermutedCompletionOrder(t *testing.T) {
	reference := newHarness(t, fixture(t, fullManifest), 1)
	reference.load(nil)
	want := len(reference.fetcher.requests)

	for seed := uint64(1); seed <= 10; seed++ {
		r := rand.New(rand.NewSource(seed))
		h := newHarness(t, fixture(t, fullManifest), 1)
		h.load(r.Perm)

		if h.model.Stage() != StageComplete {
			t.Fatalf("seed %d: stage %s, want complete", seed, h.model.Stage())
		}
		if got := len(h.fetcher.requests); got != want {
			t.Errorf("seed %d: %d fetches, want %d", seed, got, want)
		}
		if h.model.Arbiter().CacheSize() != 3 || h.model.TextureCount() != 1 || h.renderer.setups != 1 {
			t.Errorf("seed %d: final state differs", seed)
		}
	}
}

func TestLoadAssetsSkipsAbsentOptionalStages(t *testing.T) {
	manifest := `{"Version": 3, "FileReferences": {"Moc": "Test.rig.json"}}`
	h := newHarness(t, fixture(t, manifest), 1)
	turns := h.load(nil)

	if h.model.Stage() != StageComplete {
		t.Fatalf("stage %s, want complete", h.model.Stage())
	}
	want := []string{filepath.Join(modelDir, "Test.model3.json"), filepath.Join(modelDir, "Test.rig.json")}
	if len(h.fetcher.requests) != len(want) {
		t.Fatalf("requests = %v, want %v", h.fetcher.requests, want)
	}
	for i := range want {
		if h.fetcher.requests[i] != want[i] {
			t.Errorf("request %d = %s, want %s", i, h.fetcher.requests[i], want[i])
		}
	}
	if turns != 2 {
		t.Errorf("scheduler turns = %d, want 2", turns)
	}
}

func TestLoadAssetsFatalGeometry(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		rig      []byte
		want     error
	}{
		{"no rig named", `{"Version": 3, "FileReferences": {}}`, []byte(testRig), core.ErrModelFileMissing},
		{"rig unparsable", idleOnlyManifest, []byte(`{`), core.ErrModelParse},
		{"rig missing", idleOnlyManifest, nil, core.ErrModelFileMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := fixture(t, tt.manifest)
			key := filepath.Join(modelDir, "Test.rig.json")
			if tt.rig == nil {
				delete(files, key)
			} else {
				files[key] = tt.rig
			}
			h := newHarness(t, files, 1)
			h.load(nil)

			if h.model.Stage() != StageFatal || h.model.IsInitialized() {
				t.Fatalf("stage %s initialized %v", h.model.Stage(), h.model.IsInitialized())
			}
			if !errors.Is(h.model.LoadError(), tt.want) {
				t.Errorf("LoadError = %v, want %v", h.model.LoadError(), tt.want)
			}
			if len(h.failed) != 1 || h.ready != 0 {
				t.Errorf("failed events %d ready events %d", len(h.failed), h.ready)
			}
			for _, r := range h.fetcher.requests {
				if filepath.Ext(r) == ".png" || filepath.Base(r) == "idle_0.motion3.json" {
					t.Errorf("pipeline continued past the fatal stage: %s", r)
				}
			}
			h.model.Update(0.016)
		})
	}
}

func TestLoadAssetsAbsorbsSubResourceFailures(t *testing.T) {
	files := fixture(t, fullManifest)
	delete(files, filepath.Join(modelDir, "idle_1.motion3.json"))
	files[filepath.Join(modelDir, "Test.png")] = []byte("not an image")

	h := newHarness(t, files, 1)
	h.load(nil)

	if h.model.Stage() != StageComplete {
		t.Fatalf("stage %s, want complete", h.model.Stage())
	}
	if h.model.Arbiter().CacheSize() != 2 {
		t.Errorf("cached clips = %d, want 2", h.model.Arbiter().CacheSize())
	}
	if h.model.TextureCount() != 0 || len(h.renderer.bound) != 0 {
		t.Error("undecodable texture must stay unbound")
	}
}

func TestReleaseIgnoresInflightFetches(t *testing.T) {
	h := newHarness(t, fixture(t, fullManifest), 1)
	h.model.LoadAssets(modelDir, "Test.model3.json")
	h.model.Release()
	h.fetcher.run(nil)

	if h.model.IsInitialized() || h.model.Manifest() != nil || h.ready != 0 {
		t.Error("released model must not be revived by a late fetch")
	}
}

func TestReloadResetsModelState(t *testing.T) {
	h := newHarness(t, fixture(t, fullManifest), 1)
	h.load(nil)
	if h.model.TextureCount() != 1 || len(h.model.eyeBlinkIDs) != 1 {
		t.Fatalf("first load: textures %d, blink ids %v", h.model.TextureCount(), h.model.eyeBlinkIDs)
	}

	h.load(nil)
	if got := h.model.TextureCount(); got != 1 {
		t.Errorf("texture count after reload = %d, want 1", got)
	}
	if h.renderer.releases != 1 || h.renderer.setups != 2 || len(h.renderer.bound) != 1 {
		t.Errorf("releases %d setups %d bound %v", h.renderer.releases, h.renderer.setups, h.renderer.bound)
	}
	if h.ready != 2 {
		t.Errorf("ready events = %d, want 2", h.ready)
	}

	// the new manifest names no textures and no blink group
	h.fetcher.files[filepath.Join(modelDir, "Test.model3.json")] = []byte(idleOnlyManifest)
	h.load(nil)
	if h.model.Stage() != StageComplete {
		t.Fatalf("stage %s, want complete", h.model.Stage())
	}
	if h.model.TextureCount() != 0 || len(h.renderer.bound) != 0 {
		t.Errorf("stale textures: count %d, bound %v", h.model.TextureCount(), h.renderer.bound)
	}
	if len(h.model.eyeBlinkIDs) != 0 || len(h.model.lipSyncIDs) != 0 {
		t.Errorf("stale effect ids: blink %v lip sync %v", h.model.eyeBlinkIDs, h.model.lipSyncIDs)
	}

	h.model.Release()
	if h.model.TextureCount() != 0 || h.model.eyeBlinkIDs != nil || h.model.lipSyncIDs != nil || h.renderer.releases != 3 {
		t.Error("Release must drop the per-load state")
	}
}

func TestExpressionOverlaysMotionOutput(t *testing.T) {
	manifest := `{
  "Version": 3,
  "FileReferences": {
    "Moc": "Test.rig.json",
    "Expressions": [{"Name": "smile", "File": "smile.exp3.json"}]
  }
}`
	baseline := newHarness(t, fixture(t, manifest), 1)
	baseline.load(nil)
	smiling := newHarness(t, fixture(t, manifest), 1)
	smiling.load(nil)
	if smiling.model.SetExpression("smile") == motion.InvalidHandle {
		t.Fatal("smile should be playable")
	}

	const param = "ParamMouthOpenY"
	// past the one second fade in
	for frame := 0; frame < 90; frame++ {
		baseline.model.Update(1.0 / 60)
		smiling.model.Update(1.0 / 60)
	}
	for frame := 0; frame < 30; frame++ {
		baseline.model.Update(1.0 / 60)
		smiling.model.Update(1.0 / 60)
		base := baseline.model.Rig().Parameters().Value(param)
		got := smiling.model.Rig().Parameters().Value(param)
		if !approx(got-base, 0.5) {
			t.Fatalf("frame %d: %s = %v over a baseline of %v, want +0.5", frame, param, got, base)
		}
	}
}

func TestUpdateBeforeCompleteIsNoop(t *testing.T) {
	h := newHarness(t, fixture(t, fullManifest), 1)
	h.model.LoadAssets(modelDir, "Test.model3.json")
	h.model.Update(0.016)
	if h.model.Rig() != nil {
		t.Fatal("rig should not be parsed before its fetch resolved")
	}
	if h.model.StartRandomMotion(motion.GroupIdle, motion.PriorityForce, nil) != motion.InvalidHandle {
		t.Error("motions must be rejected before the model is ready")
	}
}

func TestDragContribution(t *testing.T) {
	still := newHarness(t, fixture(t, fullManifest), 3)
	still.load(nil)
	dragged := newHarness(t, fixture(t, fullManifest), 3)
	dragged.load(nil)
	dragged.model.SetDragging(0.5, 0)

	for frame := 0; frame < 30; frame++ {
		still.model.Update(1.0 / 60)
		dragged.model.Update(1.0 / 60)

		a := still.model.Rig().Parameters()
		b := dragged.model.Rig().Parameters()
		diffs := map[string]float32{
			effects.ParamAngleX:     15,
			effects.ParamAngleY:     0,
			effects.ParamAngleZ:     0,
			effects.ParamBodyAngleX: 5,
			effects.ParamEyeBallX:   0.5,
			effects.ParamEyeBallY:   0,
			"ParamMouthOpenY":       0,
		}
		for id, want := range diffs {
			if got := b.Value(id) - a.Value(id); !approx(got, want) {
				t.Fatalf("frame %d: %s drag contribution = %v, want %v", frame, id, got, want)
			}
		}
	}
}

func TestSetDraggingClamps(t *testing.T) {
	h := newHarness(t, fixture(t, fullManifest), 1)
	h.model.SetDragging(3, -2)
	if x, y := h.model.Drag(); x != 1 || y != -1 {
		t.Errorf("drag = (%v, %v), want (1, -1)", x, y)
	}
}

func TestBlinkSkippedWhileMotionAdvances(t *testing.T) {
	files := fixture(t, fullManifest)
	h := newHarness(t, files, 5)
	h.model.blinkCfg = effects.EyeBlinkConfig{Interval: 0.5, Closing: 0.1, Closed: 0.05, Opening: 0.15}
	h.load(nil)
	params := h.model.Rig().Parameters()

	// first frame starts an idle clip without advancing it
	h.model.Update(0.05)
	for frame := 0; frame < 10; frame++ {
		before := params.Value("ParamEyeLOpen")
		h.model.Update(0.05)
		if got := params.Value("ParamEyeLOpen"); got != before {
			t.Fatalf("frame %d: eye changed from %v to %v while a motion advanced", frame, before, got)
		}
	}
}

func TestBlinkRunsWithoutMotion(t *testing.T) {
	manifest := `{
  "Version": 3,
  "FileReferences": {"Moc": "Test.rig.json"},
  "Groups": [{"Target": "Parameter", "Name": "EyeBlink", "Ids": ["ParamEyeLOpen"]}]
}`
	h := newHarness(t, fixture(t, manifest), 5)
	h.model.blinkCfg = effects.EyeBlinkConfig{Interval: 0.5, Closing: 0.1, Closed: 0.05, Opening: 0.15}
	h.load(nil)

	closed := false
	for frame := 0; frame < 10; frame++ {
		h.model.Update(0.05)
		if h.model.Rig().Parameters().Value("ParamEyeLOpen") < 1 {
			closed = true
		}
	}
	if !closed {
		t.Error("eyes should blink when no motion plays")
	}
}

func TestIdleScenario(t *testing.T) {
	h := newHarness(t, fixture(t, idleOnlyManifest), 11)
	h.load(nil)
	if !h.model.IsInitialized() {
		t.Fatal("model did not load")
	}

	seen := map[int]int{}
	h.events.Register(core.EVENT_CODE_MOTION_STARTED, t, func(ctx core.EventContext) bool {
		seen[ctx.Data.(*core.MotionEvent).Index]++
		return true
	})
	params := h.model.Rig().Parameters()
	for i := 0; i < 100; i++ {
		h.model.Arbiter().StopAll()
		if hd := h.model.StartRandomMotion(motion.GroupIdle, motion.PriorityIdle, nil); hd == motion.InvalidHandle {
			t.Fatalf("call %d returned InvalidHandle", i)
		}
		h.model.Arbiter().Update(params, h.model.Rig().Parts(), 0.016)
	}
	if len(h.fetcher.requests) != 4 {
		t.Errorf("cached clips must not be fetched again, got %d requests", len(h.fetcher.requests))
	}
	if seen[0] == 0 || seen[1] == 0 || seen[0]+seen[1] != 100 {
		t.Errorf("index distribution = %v, want both of 0 and 1 over 100 calls", seen)
	}
}

func TestUpdateStartsIdleWhenNothingPlays(t *testing.T) {
	h := newHarness(t, fixture(t, idleOnlyManifest), 11)
	h.load(nil)
	h.model.Update(0.016)
	if h.model.Arbiter().IsFinished() {
		t.Fatal("an idle clip should have been started")
	}
	if got := h.model.Arbiter().Manager().CurrentPriority(); got != motion.PriorityIdle {
		t.Errorf("priority = %s, want idle", got)
	}
}

func approx(a, b float32) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}
