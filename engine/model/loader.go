package model

import (
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/companion/engine/assets"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/effects"
	"github.com/spaghettifunk/companion/engine/math"
	"github.com/spaghettifunk/companion/engine/motion"
)

// Stage is a step of the asset loading pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageLoadManifest
	StageLoadGeometry
	StageLoadExpressions
	StageLoadPhysics
	StageLoadPose
	StageSetupBlink
	StageSetupBreath
	StageLoadUserData
	StageSetupBlinkIDs
	StageSetupLipSyncIDs
	StageSetupLayout
	StageLoadMotions
	StageLoadTextures
	StageComplete
	StageFatal
)

var stageNames = map[Stage]string{
	StageIdle:            "idle",
	StageLoadManifest:    "load manifest",
	StageLoadGeometry:    "load geometry",
	StageLoadExpressions: "load expressions",
	StageLoadPhysics:     "load physics",
	StageLoadPose:        "load pose",
	StageSetupBlink:      "setup eye blink",
	StageSetupBreath:     "setup breath",
	StageLoadUserData:    "load user data",
	StageSetupBlinkIDs:   "setup eye blink ids",
	StageSetupLipSyncIDs: "setup lip sync ids",
	StageSetupLayout:     "setup layout",
	StageLoadMotions:     "load motions",
	StageLoadTextures:    "load textures",
	StageComplete:        "complete",
	StageFatal:           "fatal",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type stageHandler func(m *Model)

// transition holds what a stage does and where the pipeline goes once its
// fetches resolved.
type transition struct {
	run  stageHandler
	next Stage
}

var transitions map[Stage]transition

func init() {
	transitions = map[Stage]transition{
		StageLoadManifest:    {(*Model).loadManifest, StageLoadGeometry},
		StageLoadGeometry:    {(*Model).loadGeometry, StageLoadExpressions},
		StageLoadExpressions: {(*Model).loadExpressions, StageLoadPhysics},
		StageLoadPhysics:     {(*Model).loadPhysics, StageLoadPose},
		StageLoadPose:        {(*Model).loadPose, StageSetupBlink},
		StageSetupBlink:      {(*Model).setupBlink, StageSetupBreath},
		StageSetupBreath:     {(*Model).setupBreath, StageLoadUserData},
		StageLoadUserData:    {(*Model).loadUserData, StageSetupBlinkIDs},
		StageSetupBlinkIDs:   {(*Model).setupBlinkIDs, StageSetupLipSyncIDs},
		StageSetupLipSyncIDs: {(*Model).setupLipSyncIDs, StageSetupLayout},
		StageSetupLayout:     {(*Model).setupLayout, StageLoadMotions},
		StageLoadMotions:     {(*Model).loadMotions, StageLoadTextures},
		StageLoadTextures:    {(*Model).loadTextures, StageComplete},
	}
}

// barrier counts the fetches issued by the current stage.
type barrier struct {
	total int
	done  int
}

/**
 * @brief Starts loading the model described by manifestName inside dir.
 * Returns immediately; completion is reported through OnLoaded and the
 * EVENT_CODE_MODEL_READY / EVENT_CODE_MODEL_LOAD_FAILED events.
 */
func (m *Model) LoadAssets(dir, manifestName string) {
	if m.stage != StageIdle {
		m.Release()
	}
	m.homeDir = dir
	m.manifestName = manifestName
	m.updating = true
	m.loadErr = nil
	core.LogInfo("loading model %s from %s", manifestName, dir)
	m.enter(StageLoadManifest)
}

// enter runs stages until one is left waiting on fetches.
func (m *Model) enter(s Stage) {
	for {
		m.stage = s
		switch s {
		case StageComplete:
			m.complete()
			return
		case StageFatal:
			return
		}

		t := transitions[s]
		m.barrier = barrier{}
		m.entering = true
		t.run(m)
		m.entering = false

		if m.stage != s {
			// the stage failed synchronously
			return
		}
		if m.barrier.done < m.barrier.total {
			return
		}
		if m.barrier.total == 0 {
			core.LogDebug("stage %s finished without fetching", s)
		}
		s = t.next
	}
}

// fetch issues one barrier-counted request for a path relative to the model directory.
func (m *Model) fetch(name string, onData func(data []byte, err error)) {
	m.barrier.total++
	gen := m.generation
	stage := m.stage
	m.fetcher.Fetch(filepath.Join(m.homeDir, name), func(data []byte, err error) {
		if gen != m.generation || m.stage != stage {
			return
		}
		onData(data, err)
		if m.stage != stage {
			return
		}
		m.barrier.done++
		if !m.entering && m.barrier.done == m.barrier.total {
			m.enter(transitions[stage].next)
		}
	})
}

func (m *Model) fail(err error) {
	m.stage = StageFatal
	m.updating = false
	m.loadErr = err
	core.LogError("failed to load model %s: %s", m.manifestName, err)
	if m.events != nil {
		m.events.Fire(core.EventContext{Type: core.EVENT_CODE_MODEL_LOAD_FAILED, Data: err})
	}
	if m.onLoaded != nil {
		m.onLoaded(m, err)
	}
}

func (m *Model) loadManifest() {
	m.fetch(m.manifestName, func(data []byte, err error) {
		if err != nil {
			m.fail(fmt.Errorf("%w: manifest %s: %w", core.ErrModelFileMissing, m.manifestName, err))
			return
		}
		manifest, err := assets.ParseManifest(data)
		if err != nil {
			m.fail(fmt.Errorf("%w: manifest %s: %w", core.ErrModelParse, m.manifestName, err))
			return
		}
		arbiter, err := motion.NewArbiter(motion.ArbiterConfig{
			Manifest: manifest,
			BaseDir:  m.homeDir,
			Fetcher:  m.fetcher,
			Events:   m.events,
			Rand:     m.rand,
		})
		if err != nil {
			m.fail(err)
			return
		}
		m.manifest = manifest
		m.arbiter = arbiter
		m.expressions = motion.NewExpressions(m.rand)
	})
}

func (m *Model) loadGeometry() {
	name := m.manifest.ModelFileName()
	if name == "" {
		m.fail(core.ErrModelFileMissing)
		return
	}
	m.fetch(name, func(data []byte, err error) {
		if err != nil {
			m.fail(fmt.Errorf("%w: %s: %w", core.ErrModelFileMissing, name, err))
			return
		}
		r, err := m.parser.Parse(data)
		if err != nil {
			m.fail(fmt.Errorf("%w: %s: %w", core.ErrModelParse, name, err))
			return
		}
		m.rig = r
		r.Parameters().Save()
	})
}

func (m *Model) loadExpressions() {
	for i := 0; i < m.manifest.ExpressionCount(); i++ {
		name := m.manifest.ExpressionName(i)
		file := m.manifest.ExpressionFileName(i)
		if file == "" {
			continue
		}
		m.fetch(file, func(data []byte, err error) {
			if err != nil {
				core.LogWarn("failed to load expression %s: %s", name, err)
				return
			}
			e, err := motion.ParseExpression(data)
			if err != nil {
				core.LogWarn("failed to parse expression %s: %s", name, err)
				return
			}
			m.expressions.Store(name, e)
		})
	}
}

func (m *Model) loadPhysics() {
	name := m.manifest.PhysicsFileName()
	if name == "" {
		return
	}
	m.fetch(name, func(data []byte, err error) {
		if err != nil {
			core.LogWarn("failed to load physics %s: %s", name, err)
			return
		}
		p, err := effects.ParsePhysics(data)
		if err != nil {
			core.LogWarn("failed to parse physics %s: %s", name, err)
			return
		}
		m.physics = p
	})
}

func (m *Model) loadPose() {
	name := m.manifest.PoseFileName()
	if name == "" {
		return
	}
	m.fetch(name, func(data []byte, err error) {
		if err != nil {
			core.LogWarn("failed to load pose %s: %s", name, err)
			return
		}
		p, err := effects.ParsePose(data)
		if err != nil {
			core.LogWarn("failed to parse pose %s: %s", name, err)
			return
		}
		p.Reset(m.rig.Parameters(), m.rig.Parts())
		m.pose = p
	})
}

func (m *Model) setupBlink() {
	if len(m.manifest.EyeBlinkParameterIDs()) == 0 {
		return
	}
	m.eyeBlink = effects.NewEyeBlink(m.blinkCfg, nil, m.rand)
}

func (m *Model) setupBreath() {
	m.breath = effects.NewBreath(effects.DefaultBreathParameters())
}

func (m *Model) loadUserData() {
	name := m.manifest.UserDataFileName()
	if name == "" {
		return
	}
	m.fetch(name, func(data []byte, err error) {
		if err != nil {
			core.LogWarn("failed to load user data %s: %s", name, err)
			return
		}
		ud, err := ParseUserData(data)
		if err != nil {
			core.LogWarn("failed to parse user data %s: %s", name, err)
			return
		}
		m.userData = ud
	})
}

func (m *Model) setupBlinkIDs() {
	m.eyeBlinkIDs = m.manifest.EyeBlinkParameterIDs()
	if m.eyeBlink != nil {
		m.eyeBlink.SetIDs(m.eyeBlinkIDs)
	}
}

func (m *Model) setupLipSyncIDs() {
	m.lipSyncIDs = m.manifest.LipSyncParameterIDs()
	m.arbiter.SetEffectIDs(m.eyeBlinkIDs, m.lipSyncIDs)
}

func (m *Model) setupLayout() {
	w, h := m.rig.CanvasSize()
	m.matrix = math.NewModelMatrix(w, h)
	m.matrix.SetupFromLayout(m.manifest.LayoutMap())
}

func (m *Model) loadMotions() {
	for g := 0; g < m.manifest.MotionGroupCount(); g++ {
		group := m.manifest.MotionGroupName(g)
		for i := 0; i < m.manifest.MotionCount(group); i++ {
			key := motion.ClipKey{Group: group, Index: i}
			file := m.manifest.MotionFileName(group, i)
			if file == "" {
				continue
			}
			m.fetch(file, func(data []byte, err error) {
				if err != nil {
					core.LogWarn("%s %s: %s", core.ErrClipLoad, key, err)
					return
				}
				clip, err := m.arbiter.PrepareMotion(key, data)
				if err != nil {
					core.LogWarn("%s", err)
					return
				}
				m.arbiter.Store(key, clip)
			})
		}
	}
	m.arbiter.StopAll()
}

func (m *Model) loadTextures() {
	for i := 0; i < m.manifest.TextureCount(); i++ {
		index := i
		file := m.manifest.TextureFileName(i)
		if file == "" {
			continue
		}
		m.fetch(file, func(data []byte, err error) {
			if err != nil {
				core.LogWarn("%s %s: %s", core.ErrTextureBind, file, err)
				return
			}
			tex, err := m.textures.Load(file, data)
			if err != nil {
				core.LogWarn("%s %s: %s", core.ErrTextureBind, file, err)
				return
			}
			if m.renderer != nil {
				if err := m.renderer.BindTexture(index, tex); err != nil {
					core.LogWarn("%s %s: %s", core.ErrTextureBind, file, err)
					return
				}
			}
			m.textureCount++
		})
	}
}

func (m *Model) complete() {
	m.updating = false
	m.initialized = true
	if m.renderer != nil && !m.rendererReady {
		if err := m.renderer.SetupModel(m.rig); err != nil {
			core.LogError("failed to set up renderer for %s: %s", m.manifestName, err)
		}
		m.rendererReady = true
	}
	m.arbiter.StopAll()
	core.LogInfo("model %s ready", m.manifestName)
	if m.events != nil {
		m.events.Fire(core.EventContext{Type: core.EVENT_CODE_MODEL_READY, Data: m})
	}
	if m.onLoaded != nil {
		m.onLoaded(m, nil)
	}
}
