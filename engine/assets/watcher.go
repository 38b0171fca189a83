package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/companion/engine/core"
)

// Poster schedules work on the frame goroutine.
type Poster interface {
	Post(fn func()) error
}

// Watcher reports changes below a directory. Bursts of events on the same
// file are coalesced and delivered once through the Poster.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	poster   Poster
	onChange func(path string)
	debounce time.Duration

	mutex    sync.Mutex
	pending  map[string]*time.Timer
	isClosed bool
	started  bool
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(poster Poster, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsnotify: fsWatch,
		poster:   poster,
		onChange: onChange,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Watch starts watching dir and all of its sub-directories.
func (w *Watcher) Watch(dir string) error {
	w.mutex.Lock()
	closed, started := w.isClosed, w.started
	w.started = true
	w.mutex.Unlock()
	if closed {
		return errors.New("watcher already closed")
	}
	if err := w.watchRecursive(dir); err != nil {
		return err
	}
	if !started {
		w.wg.Add(1)
		go w.start()
	}
	core.LogDebug("watching %s for asset changes", dir)
	return nil
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return nil
	}
	w.isClosed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mutex.Unlock()

	close(w.done)
	err := w.fsnotify.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := w.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(e.Name)
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mutex.Lock()
		delete(w.pending, path)
		closed := w.isClosed
		w.mutex.Unlock()
		if closed {
			return
		}
		if err := w.poster.Post(func() { w.onChange(path) }); err != nil {
			core.LogWarn("dropping change of %s: %s", path, err)
		}
	})
}

// watchRecursive adds all directories under the given one to the watch list.
func (w *Watcher) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return w.fsnotify.Add(walkPath)
		}
		return nil
	})
}
