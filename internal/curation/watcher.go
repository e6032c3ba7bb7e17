package curation

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits after the last change to
// the policy file before reloading it
const DefaultDebounce = 500 * time.Millisecond

// Watcher keeps an Engine in sync with a policy file. Engine always returns
// a complete snapshot; a policy that fails to load leaves the previous one
// in place.
type Watcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	opts      []Option

	current  atomic.Pointer[Engine]
	onReload chan *Engine
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads the policy at path and prepares to watch it
func NewWatcher(path string, debounce time.Duration, opts ...Option) (*Watcher, error) {
	policy, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		path:      path,
		fsWatcher: fsw,
		debounce:  debounce,
		opts:      opts,
		onReload:  make(chan *Engine, 1),
		done:      make(chan struct{}),
	}
	w.current.Store(NewEngine(*policy, opts...))
	return w, nil
}

// Engine returns the current policy snapshot
func (w *Watcher) Engine() *Engine {
	return w.current.Load()
}

// Start begins watching. The returned channel receives the new engine after
// each successful reload; slow receivers only see the latest one.
func (w *Watcher) Start() (<-chan *Engine, error) {
	// Watch the directory so editors that replace the file are noticed
	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go w.loop()

	return w.onReload, nil
}

// Stop terminates the watcher and releases resources
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Policy watcher error: %v", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	policy, err := LoadPolicy(w.path)
	if err != nil {
		logrus.Warnf("Keeping previous policy: %v", err)
		return
	}

	engine := NewEngine(*policy, w.opts...)
	w.current.Store(engine)
	logrus.Infof("Reloaded policy from %s", w.path)

	// Replace any unread notification with the newest engine
	select {
	case <-w.onReload:
	default:
	}
	select {
	case w.onReload <- engine:
	default:
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.path)
}
