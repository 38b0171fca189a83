package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/companion/engine/containers"
	"github.com/spaghettifunk/companion/engine/core"
)

// JobTask describes a unit of background work. OnStart runs on a worker
// goroutine; OnComplete or OnFailure run later on the goroutine calling Update.
type JobTask struct {
	Name       string
	OnStart    func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type JobSystemConfig struct {
	// Number of worker goroutines running OnStart.
	NumWorkers int
	// Initial capacity of the pending and result queues.
	QueueSize int
}

type JobSystem struct {
	numWorkers int

	mu       sync.Mutex
	cond     *sync.Cond
	pending  *containers.RingQueue[JobTask]
	results  *containers.RingQueue[func()]
	inflight int
	closed   bool

	wg sync.WaitGroup
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeQueueSize = errors.New("attempting to create worker pool with a negative queue size")
var ErrJobSystemShutdown = errors.New("job system is shut down")

func NewJobSystem(config JobSystemConfig) (*JobSystem, error) {
	if config.NumWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if config.QueueSize < 0 {
		return nil, ErrNegativeQueueSize
	}

	js := &JobSystem{
		numWorkers: config.NumWorkers,
		pending:    containers.NewGrowableRingQueue[JobTask](config.QueueSize),
		results:    containers.NewGrowableRingQueue[func()](config.QueueSize),
	}
	js.cond = sync.NewCond(&js.mu)

	js.start()

	core.LogInfo("Job system initialized with %d workers.", config.NumWorkers)

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for {
				js.mu.Lock()
				for js.pending.IsEmpty() && !js.closed {
					js.cond.Wait()
				}
				if js.pending.IsEmpty() && js.closed {
					js.mu.Unlock()
					return
				}
				job, _ := js.pending.Dequeue()
				js.mu.Unlock()

				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	result, err := job.OnStart()

	var resume func()
	if err != nil {
		core.LogError("job '%s' failed: %s", job.Name, err)
		resume = func() {
			if job.OnFailure != nil {
				job.OnFailure(err)
			}
		}
	} else {
		resume = func() {
			if job.OnComplete != nil {
				job.OnComplete(result)
			}
		}
	}
	js.enqueueResult(resume)
}

func (js *JobSystem) enqueueResult(fn func()) {
	js.mu.Lock()
	defer js.mu.Unlock()
	// growable queues never report full
	_ = js.results.Enqueue(fn)
}

/**
 * @brief Shuts the job system down. Jobs already queued still run, but
 * their callbacks are dropped unless Update is called again.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	js.cond.Broadcast()
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Updates the job system. Should happen once an update cycle.
 * Runs every completion callback that is ready, on the calling goroutine.
 * Returns the number of callbacks executed.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	ready := make([]func(), 0, js.results.Len())
	for !js.results.IsEmpty() {
		fn, _ := js.results.Dequeue()
		ready = append(ready, fn)
	}
	js.inflight -= len(ready)
	js.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
	return len(ready)
}

/**
 * @brief Submits the provided job to be queued for execution.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.closed {
		return ErrJobSystemShutdown
	}
	_ = js.pending.Enqueue(jt)
	js.inflight++
	js.cond.Signal()
	return nil
}

// Post queues fn to run on the next Update. Safe to call from any goroutine.
func (js *JobSystem) Post(fn func()) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.closed {
		return ErrJobSystemShutdown
	}
	_ = js.results.Enqueue(fn)
	js.inflight++
	return nil
}

// Inflight returns the number of submitted or posted jobs whose callbacks have not run yet.
func (js *JobSystem) Inflight() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.inflight
}
