package motion

import (
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/companion/engine/core"
	"github.com/spaghettifunk/companion/engine/rig"
)

// Expressions plays one named expression at a time, fading the previous one out.
type Expressions struct {
	queue *QueueManager
	cache map[string]*Expression
	names []string
	rand  *rand.Rand
}

func NewExpressions(r *rand.Rand) *Expressions {
	return &Expressions{
		queue: NewQueueManager(),
		cache: map[string]*Expression{},
		rand:  r,
	}
}

func (ex *Expressions) Store(name string, e *Expression) {
	if _, ok := ex.cache[name]; !ok {
		ex.names = append(ex.names, name)
	}
	ex.cache[name] = e
}

func (ex *Expressions) Count() int { return len(ex.names) }

func (ex *Expressions) Set(name string) Handle {
	e, ok := ex.cache[name]
	if !ok {
		core.LogWarn("expression %s is not loaded", name)
		return InvalidHandle
	}
	core.LogDebug("expression: [%s]", name)
	return ex.queue.Start(e, nil, nil)
}

func (ex *Expressions) SetRandom() Handle {
	if len(ex.names) == 0 || ex.rand == nil {
		return InvalidHandle
	}
	return ex.Set(ex.names[ex.rand.Intn(len(ex.names))])
}

func (ex *Expressions) Update(params *rig.ParameterBuffer, dt float32) bool {
	return ex.queue.Update(params, nil, dt)
}

func (ex *Expressions) StopAll() { ex.queue.StopAll() }
