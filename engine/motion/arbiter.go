package motion

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/assets"
	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/rig"
)

// ClipKey identifies one clip of a motion group.
type ClipKey struct {
	Group string
	Index int
}

func (k ClipKey) String() string {
	return fmt.Sprintf("%s_%d", k.Group, k.Index)
}

type ArbiterConfig struct {
	Manifest *assets.Manifest
	// Directory the manifest paths are relative to.
	BaseDir string
	Fetcher assets.Fetcher
	// Optional. Receives EVENT_CODE_MOTION_STARTED.
	Events *core.EventBus
	// Optional. Seeded from the clock when nil.
	Rand *rand.Rand
}

var ErrNoManifest = errors.New("arbiter requires a manifest")
var ErrNoFetcher = errors.New("arbiter requires a fetcher")

// Arbiter decides which clip plays. Clips preloaded by the loader are kept in
// a cache for the model lifetime; a miss is fetched once and auto-deleted.
type Arbiter struct {
	manifest *assets.Manifest
	baseDir  string
	fetcher  assets.Fetcher
	events   *core.EventBus
	rand     *rand.Rand

	manager     *Manager
	cache       map[ClipKey]*Motion
	eyeBlinkIDs []string
	lipSyncIDs  []string
	released    bool
}

func NewArbiter(cfg ArbiterConfig) (*Arbiter, error) {
	if cfg.Manifest == nil {
		return nil, ErrNoManifest
	}
	if cfg.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &Arbiter{
		manifest: cfg.Manifest,
		baseDir:  cfg.BaseDir,
		fetcher:  cfg.Fetcher,
		events:   cfg.Events,
		rand:     r,
		manager:  NewManager(),
		cache:    map[ClipKey]*Motion{},
	}, nil
}

func (a *Arbiter) Manager() *Manager { return a.manager }

// SetEffectIDs binds the eye blink and lip sync parameters for every clip
// prepared from now on, and for the ones already cached.
func (a *Arbiter) SetEffectIDs(eyeBlink, lipSync []string) {
	a.eyeBlinkIDs = eyeBlink
	a.lipSyncIDs = lipSync
	for _, m := range a.cache {
		m.SetEffectIDs(eyeBlink, lipSync)
	}
}

// ClipPath returns the file of key joined with the model directory, or "" when undeclared.
func (a *Arbiter) ClipPath(key ClipKey) string {
	name := a.manifest.MotionFileName(key.Group, key.Index)
	if name == "" {
		return ""
	}
	return filepath.Join(a.baseDir, name)
}

// PrepareMotion decodes a clip of key and applies the manifest overrides.
func (a *Arbiter) PrepareMotion(key ClipKey, data []byte) (*Motion, error) {
	m, err := ParseMotion(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", core.ErrClipLoad, key, err)
	}
	m.SetFadeInTime(a.manifest.MotionFadeInTime(key.Group, key.Index))
	m.SetFadeOutTime(a.manifest.MotionFadeOutTime(key.Group, key.Index))
	m.SetEffectIDs(a.eyeBlinkIDs, a.lipSyncIDs)
	return m, nil
}

// Store caches a prepared clip for the model lifetime.
func (a *Arbiter) Store(key ClipKey, m *Motion) {
	a.cache[key] = m
}

func (a *Arbiter) Cached(key ClipKey) (*Motion, bool) {
	m, ok := a.cache[key]
	return m, ok
}

func (a *Arbiter) CacheSize() int { return len(a.cache) }

/**
 * @brief Starts the clip index of group at priority p.
 * Force always claims the reservation; lower priorities must win it.
 * A cache miss fetches the clip and starts it once it arrived, the returned
 * handle stays pending until then.
 * @returns The motion handle, or InvalidHandle when the request lost arbitration.
 */
func (a *Arbiter) StartMotion(group string, index int, p Priority, onFinished Callback) Handle {
	if a.released {
		return InvalidHandle
	}
	if p == PriorityForce {
		a.manager.SetReservePriority(p)
	} else if !a.manager.ReserveMotion(p) {
		core.LogDebug("can't start motion %s_%d at priority %s", group, index, p)
		return InvalidHandle
	}

	key := ClipKey{Group: group, Index: index}
	if m, ok := a.cache[key]; ok {
		return a.manager.StartMotionPriority(m, p, a.began(key), onFinished)
	}

	path := a.ClipPath(key)
	if path == "" {
		core.LogWarn("%s: no clip %s declared", core.ErrClipLoad, key)
		a.manager.SetReservePriority(PriorityNone)
		return InvalidHandle
	}

	h := a.manager.ReserveHandle()
	a.fetcher.Fetch(path, func(data []byte, err error) {
		if a.released {
			return
		}
		if err == nil {
			var m *Motion
			if m, err = a.PrepareMotion(key, data); err == nil {
				if a.manager.IsHandleFinished(h) {
					// stopped while in flight
					return
				}
				a.manager.StartReservedPriority(h, m, p, a.began(key), onFinished)
				return
			}
		}
		core.LogError("%s %s: %s", core.ErrClipLoad, key, err)
		a.manager.CancelHandle(h)
		a.manager.SetReservePriority(PriorityNone)
	})
	return h
}

// StartRandomMotion picks a uniform clip index of group.
func (a *Arbiter) StartRandomMotion(group string, p Priority, onFinished Callback) Handle {
	n := a.manifest.MotionCount(group)
	if n == 0 {
		return InvalidHandle
	}
	return a.StartMotion(group, a.rand.Intn(n), p, onFinished)
}

// Update advances the playing clips. Returns true when any clip was applied.
func (a *Arbiter) Update(params *rig.ParameterBuffer, parts *rig.PartBuffer, dt float32) bool {
	return a.manager.UpdateMotion(params, parts, dt)
}

func (a *Arbiter) IsFinished() bool { return a.manager.IsFinished() }

func (a *Arbiter) StopAll() { a.manager.StopAll() }

// Release stops everything and ignores fetches still in flight.
func (a *Arbiter) Release() {
	a.released = true
	a.manager.StopAll()
	a.cache = map[ClipKey]*Motion{}
}

func (a *Arbiter) began(key ClipKey) Callback {
	return func(Handle) {
		core.LogDebug("motion %s started", key)
		if a.events != nil {
			a.events.Fire(core.EventContext{
				Type: core.EVENT_CODE_MOTION_STARTED,
				Data: &core.MotionEvent{Group: key.Group, Index: key.Index},
			})
		}
	}
}
