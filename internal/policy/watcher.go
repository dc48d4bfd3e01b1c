package policy

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events (e.g. an editor's
// write-rename-replace dance) into a single reload.
const debounceWindow = 100 * time.Millisecond

// Watcher observes a Store's policy directory for changes to *.yaml /
// *.yml files and triggers a reload, debounced to one reload per
// quiescence window. Adapted from the teacher's recursive fsnotify
// watcher, narrowed to a single non-recursive directory and given the
// debounce timer the teacher's own watcher lacked.
type Watcher struct {
	store  *Store
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher creates a Watcher bound to store's directory. Call Start
// to begin watching in the background.
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(store.dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		store:  store,
		fsw:    fsw,
		logger: logger.With("component", "policy.Watcher"),
		done:   make(chan struct{}),
	}, nil
}

// Start begins processing filesystem events in a background goroutine.
// Returns immediately; call Stop to shut down.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts down the watcher and releases its fsnotify handle.
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isPolicyFile(event.Name) {
				continue
			}
			w.scheduleReload(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

// scheduleReload (re)arms a single debounce timer. Repeated events
// within debounceWindow reset the timer rather than firing a reload
// each, so a burst of edits produces exactly one Load call.
func (w *Watcher) scheduleReload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, func() {
		w.logger.Info("policy file changed, reloading", "path", path)
		if err := w.store.Load(); err != nil {
			w.logger.Error("policy reload failed", "error", err)
		}
	})
}

func isPolicyFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
