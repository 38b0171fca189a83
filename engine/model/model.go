package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/assets"
	"github.com/spaghettifunk/companion/engine/assets/loaders"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/effects"
	"github.com/spaghettifunk/companion/engine/math"
	"github.com/spaghettifunk/companion/engine/motion"
	"github.com/spaghettifunk/companion/engine/rig"
)

// Renderer prepares the GPU side of a model.
type Renderer interface {
	BindTexture(index int, texture *loaders.TextureData) error
	// SetupModel runs once per load, when the model finished loading.
	SetupModel(r rig.Rig) error
	// ReleaseModel drops everything bound for the previous load.
	ReleaseModel()
}

type ModelConfig struct {
	// Optional. A random id is generated when nil.
	ID      uuid.UUID
	Fetcher assets.Fetcher
	// Optional. Defaults to rig.JSONParser.
	Parser rig.Parser
	// Optional. Textures are still decoded without one.
	Renderer Renderer
	// Optional. Receives the model ready/failed events.
	Events *core.EventBus
	// Optional. Seeded from the clock when nil.
	Rand  *rand.Rand
	Blink effects.EyeBlinkConfig
	// Optional. Called once the pipeline reached Complete or failed.
	OnLoaded func(m *Model, err error)
}

var ErrNoFetcher = errors.New("model requires a fetcher")

// Model is one loaded character: its manifest, rig, effects and clips.
// Everything but LoadAssets' fetch I/O runs on the frame goroutine.
type Model struct {
	ID uuid.UUID

	fetcher  assets.Fetcher
	parser   rig.Parser
	renderer Renderer
	events   *core.EventBus
	rand     *rand.Rand
	blinkCfg effects.EyeBlinkConfig
	onLoaded func(m *Model, err error)
	textures *loaders.TextureLoader

	homeDir      string
	manifestName string
	manifest     *assets.Manifest
	rig          rig.Rig
	arbiter      *motion.Arbiter
	expressions  *motion.Expressions
	eyeBlink     *effects.EyeBlink
	breath       *effects.Breath
	physics      *effects.Physics
	pose         *effects.Pose
	userData     *UserData
	matrix       *math.ModelMatrix
	eyeBlinkIDs  []string
	lipSyncIDs   []string
	textureCount int

	stage         Stage
	barrier       barrier
	entering      bool
	generation    int
	initialized   bool
	updating      bool
	rendererReady bool
	loadErr       error

	dragX float32
	dragY float32
}

func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	parser := cfg.Parser
	if parser == nil {
		parser = rig.JSONParser
	}
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	blink := cfg.Blink
	if blink == (effects.EyeBlinkConfig{}) {
		blink = effects.DefaultEyeBlinkConfig()
	}
	return &Model{
		ID:       id,
		fetcher:  cfg.Fetcher,
		parser:   parser,
		renderer: cfg.Renderer,
		events:   cfg.Events,
		rand:     r,
		blinkCfg: blink,
		onLoaded: cfg.OnLoaded,
		textures: &loaders.TextureLoader{Premultiply: true},
		stage:    StageIdle,
	}, nil
}

func (m *Model) Manifest() *assets.Manifest { return m.manifest }
func (m *Model) Rig() rig.Rig               { return m.rig }
func (m *Model) Arbiter() *motion.Arbiter   { return m.arbiter }
func (m *Model) Matrix() *math.ModelMatrix  { return m.matrix }
func (m *Model) UserData() *UserData        { return m.userData }
func (m *Model) HomeDir() string            { return m.homeDir }
func (m *Model) Stage() Stage               { return m.stage }
func (m *Model) IsInitialized() bool        { return m.initialized }
func (m *Model) IsUpdating() bool           { return m.updating }
func (m *Model) LoadError() error           { return m.loadErr }
func (m *Model) TextureCount() int          { return m.textureCount }

// SetDragging feeds the normalized pointer offset, both axes in [-1, 1].
func (m *Model) SetDragging(x, y float32) {
	m.dragX = math.Clamp(x, -1, 1)
	m.dragY = math.Clamp(y, -1, 1)
}

func (m *Model) Drag() (float32, float32) { return m.dragX, m.dragY }

// StartMotion forwards to the arbiter once the model is ready.
func (m *Model) StartMotion(group string, index int, p motion.Priority, onFinished motion.Callback) motion.Handle {
	if !m.initialized {
		return motion.InvalidHandle
	}
	return m.arbiter.StartMotion(group, index, p, onFinished)
}

func (m *Model) StartRandomMotion(group string, p motion.Priority, onFinished motion.Callback) motion.Handle {
	if !m.initialized {
		return motion.InvalidHandle
	}
	return m.arbiter.StartRandomMotion(group, p, onFinished)
}

func (m *Model) SetExpression(name string) motion.Handle {
	if m.expressions == nil {
		return motion.InvalidHandle
	}
	return m.expressions.Set(name)
}

func (m *Model) SetRandomExpression() motion.Handle {
	if m.expressions == nil {
		return motion.InvalidHandle
	}
	return m.expressions.SetRandom()
}

// HitDrawable returns the first drawable, in declaration order, under the
// view-space point.
func (m *Model) HitDrawable(x, y float32) (string, bool) {
	if !m.initialized || m.rig == nil {
		return "", false
	}
	lx := m.matrix.InvertTransformX(x)
	ly := m.matrix.InvertTransformY(y)
	for i := 0; i < m.rig.DrawableCount(); i++ {
		id := m.rig.DrawableID(i)
		if m.rig.IsHit(id, lx, ly) {
			return id, true
		}
	}
	return "", false
}

// Release stops every clip and drops the loaded state. Fetches still in
// flight are ignored when they resolve.
func (m *Model) Release() {
	m.generation++
	if m.arbiter != nil {
		m.arbiter.Release()
	}
	if m.expressions != nil {
		m.expressions.StopAll()
	}
	m.manifest = nil
	m.rig = nil
	m.arbiter = nil
	m.expressions = nil
	m.eyeBlink = nil
	m.breath = nil
	m.physics = nil
	m.pose = nil
	m.userData = nil
	m.matrix = nil
	m.eyeBlinkIDs = nil
	m.lipSyncIDs = nil
	m.textureCount = 0
	if m.renderer != nil {
		m.renderer.ReleaseModel()
	}
	m.initialized = false
	m.updating = false
	m.rendererReady = false
	m.dragX, m.dragY = 0, 0
	m.stage = StageIdle
	core.LogDebug("model %s released", m.ID)
}
