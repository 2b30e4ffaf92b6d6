package config

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher notices edits to the config file. The sandbox boundary is fixed
// for the life of the process, so a change is only reported: the running
// config is marked stale and an operator has to restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Debounce rapid file changes (editors write, chmod and rename in a burst)
	debounce     time.Duration
	pendingTimer *time.Timer
	timerMu      sync.Mutex

	stale     atomic.Bool
	changedAt atomic.Int64 // unix nanos
	onChange  func()
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     abs,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}, nil
}

// OnChange registers fn to run (once per debounced burst) after the file
// changes. Must be called before Start.
func (w *Watcher) OnChange(fn func()) {
	w.onChange = fn
}

// Start begins watching. The parent directory is watched rather than the
// file so atomic saves (write temp + rename) are still seen.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		cfgLog.Warn("Cannot watch config directory (may not exist yet): %v", err)
		return nil
	}

	w.wg.Add(1)
	go w.run()

	cfgLog.Debug("Watching config file: %s", w.path)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()

		w.timerMu.Lock()
		if w.pendingTimer != nil {
			w.pendingTimer.Stop()
		}
		w.timerMu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

// Stale reports whether the file changed since the process loaded it.
func (w *Watcher) Stale() bool {
	return w.stale.Load()
}

// ChangedAt returns when the last change was seen, or the zero time.
func (w *Watcher) ChangedAt() time.Time {
	ns := w.changedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			cfgLog.Warn("Watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	cfgLog.Debug("Config file changed: %s (%s)", filepath.Base(event.Name), event.Op)

	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.debounce, w.markStale)
}

func (w *Watcher) markStale() {
	w.changedAt.Store(time.Now().UnixNano())
	if !w.stale.Swap(true) {
		cfgLog.Warn("%s changed on disk; restart dataworks to apply it", filepath.Base(w.path))
	}
	if w.onChange != nil {
		w.onChange()
	}
}
