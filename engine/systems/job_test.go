package systems

import (
	"errors"
	"testing"
	"time"
)

func drain(t *testing.T, js *JobSystem) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for js.Inflight() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs did not resolve, %d still in flight", js.Inflight())
		}
		js.Update()
		time.Sleep(time.Millisecond)
	}
}

func TestNewJobSystemValidatesConfig(t *testing.T) {
	if _, err := NewJobSystem(JobSystemConfig{NumWorkers: 0}); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("err = %v, want ErrNoWorkers", err)
	}
	if _, err := NewJobSystem(JobSystemConfig{NumWorkers: 1, QueueSize: -1}); !errors.Is(err, ErrNegativeQueueSize) {
		t.Fatalf("err = %v, want ErrNegativeQueueSize", err)
	}
}

func TestJobCallbacksRunOnUpdate(t *testing.T) {
	js, err := NewJobSystem(JobSystemConfig{NumWorkers: 2, QueueSize: 4})
	if err != nil {
		t.Fatalf("NewJobSystem: %v", err)
	}
	defer js.Shutdown()

	boom := errors.New("boom")
	var completed []interface{}
	var failed []error
	for i := 0; i < 5; i++ {
		i := i
		err := js.Submit(JobTask{
			Name: "test",
			OnStart: func() (interface{}, error) {
				if i == 3 {
					return nil, boom
				}
				return i, nil
			},
			OnComplete: func(result interface{}) { completed = append(completed, result) },
			OnFailure:  func(err error) { failed = append(failed, err) },
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	posted := false
	if err := js.Post(func() { posted = true }); err != nil {
		t.Fatalf("Post: %v", err)
	}

	drain(t, js)

	if len(completed) != 4 {
		t.Errorf("completed = %v, want 4 results", completed)
	}
	if len(failed) != 1 || !errors.Is(failed[0], boom) {
		t.Errorf("failed = %v, want [boom]", failed)
	}
	if !posted {
		t.Error("posted callback did not run")
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(JobSystemConfig{NumWorkers: 1})
	if err != nil {
		t.Fatalf("NewJobSystem: %v", err)
	}
	if err := js.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := js.Submit(JobTask{OnStart: func() (interface{}, error) { return nil, nil }}); !errors.Is(err, ErrJobSystemShutdown) {
		t.Fatalf("Submit after shutdown = %v, want ErrJobSystemShutdown", err)
	}
	if err := js.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
