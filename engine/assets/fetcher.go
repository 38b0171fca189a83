package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/companion/engine/systems"
)

// FetchCallback receives the bytes of a fetched resource or the error that stopped it.
// It always runs on the goroutine that drives JobSystem.Update.
type FetchCallback func(data []byte, err error)

// Fetcher loads resources by path without blocking the caller.
type Fetcher interface {
	Fetch(path string, onDone FetchCallback)
}

// FileFetcher reads files from disk on the job system workers.
type FileFetcher struct {
	jobs *systems.JobSystem
	read func(name string) ([]byte, error)
}

var _ Fetcher = &FileFetcher{}

func NewFileFetcher(jobs *systems.JobSystem) *FileFetcher {
	return &FileFetcher{
		jobs: jobs,
		read: os.ReadFile,
	}
}

func (ff *FileFetcher) Fetch(path string, onDone FetchCallback) {
	path = filepath.Clean(path)
	err := ff.jobs.Submit(systems.JobTask{
		Name: fmt.Sprintf("fetch %s", path),
		OnStart: func() (interface{}, error) {
			data, err := ff.read(path)
			if err != nil {
				return nil, err
			}
			return data, nil
		},
		OnComplete: func(result interface{}) {
			onDone(result.([]byte), nil)
		},
		OnFailure: func(err error) {
			onDone(nil, err)
		},
	})
	if err != nil {
		// nothing will ever resume this fetch, fail it right away
		onDone(nil, fmt.Errorf("failed to fetch %s: %w", path, err))
	}
}
