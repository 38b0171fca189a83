package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/systems"
)

// Framework is the process-wide state shared by every model instance: the
// job system fetching their files. The first holder starts it and the last
// one to leave shuts it down.
type Framework struct {
	mu      sync.Mutex
	config  systems.JobSystemConfig
	jobs    *systems.JobSystem
	holders map[uuid.UUID]struct{}
}

func NewFramework(config systems.JobSystemConfig) *Framework {
	return &Framework{
		config:  config,
		holders: map[uuid.UUID]struct{}{},
	}
}

// Acquire registers id as a holder and returns the shared job system.
// Acquiring twice with the same id is a no-op.
func (f *Framework) Acquire(id uuid.UUID) (*systems.JobSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.holders[id]; ok {
		return f.jobs, nil
	}
	if f.jobs == nil {
		jobs, err := systems.NewJobSystem(f.config)
		if err != nil {
			return nil, err
		}
		f.jobs = jobs
		core.LogDebug("framework started by %s", id)
	}
	f.holders[id] = struct{}{}
	return f.jobs, nil
}

/**
 * @brief Drops id from the holders and shuts the framework down when it was the last one.
 * @returns True if the framework was shut down.
 */
func (f *Framework) Release(id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.holders[id]; !ok {
		return false, nil
	}
	delete(f.holders, id)
	if len(f.holders) > 0 {
		return false, nil
	}
	jobs := f.jobs
	f.jobs = nil
	core.LogDebug("framework released by %s", id)
	if jobs == nil {
		return true, nil
	}
	return true, jobs.Shutdown()
}

func (f *Framework) Holders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.holders)
}

func (f *Framework) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs != nil
}
