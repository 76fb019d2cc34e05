package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bradcypert/popshop/internal/id"
	"github.com/bradcypert/popshop/internal/store"
	"github.com/bradcypert/popshop/pkg/logging"
)

// watchState models the Config Watcher's reload cycle (spec.md §4.8):
// idle -> pending (debounce timer armed) -> reloading -> idle. Events
// arriving while reloading are coalesced into another cycle once the
// in-flight reload completes.
type watchState int

const (
	stateIdle watchState = iota
	statePending
	stateReloading
)

const debounceWindow = 500 * time.Millisecond

// Watcher observes a config path and, on detected modification,
// reloads via the Loader and atomically publishes the result to a
// RuleStore.
type Watcher struct {
	path   string
	loader *Loader
	store  *store.RuleStore
	log    *slog.Logger

	fsWatcher *fsnotify.Watcher

	mu             sync.Mutex
	state          watchState
	reloadPending  bool
	debounceTimer  *time.Timer
	stop           chan struct{}
}

// NewWatcher creates a Watcher over path, publishing reloaded rule
// lists to store. A nil logger defaults to a no-op logger.
func NewWatcher(path string, loader *Loader, ruleStore *store.RuleStore, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watchTarget := path
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		watchTarget = filepath.Dir(path)
	}
	if err := fsWatcher.Add(watchTarget); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		path:      path,
		loader:    loader,
		store:     ruleStore,
		log:       log,
		fsWatcher: fsWatcher,
		stop:      make(chan struct{}),
	}, nil
}

// Start begins watching in the background. Call Stop to release the
// underlying filesystem watch.
func (w *Watcher) Start() {
	go w.run()
}

// Stop releases the filesystem watch and stops the watch loop.
func (w *Watcher) Stop() error {
	close(w.stop)
	return w.fsWatcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Remove != 0 {
		return // a rename-over-write must not blank the config
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if !isRelevant(w.path, event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateReloading {
		w.reloadPending = true
		return
	}

	w.state = statePending
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debounceWindow, w.reload)
}

// isRelevant reports whether a changed file should trigger a reload:
// an exact match when watching a single file, or any .yaml/.yml
// direct child when watching a directory.
func isRelevant(configured, changed string) bool {
	info, err := os.Stat(configured)
	if err == nil && !info.IsDir() {
		return filepath.Base(changed) == filepath.Base(configured)
	}
	ext := filepath.Ext(changed)
	return ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) reload() {
	cycle := id.Short()

	w.mu.Lock()
	w.state = stateReloading
	w.mu.Unlock()

	rules, err := w.loader.Load(w.path)
	if err != nil {
		w.log.Warn("config reload failed, keeping previous rule set", "cycle", cycle, "path", w.path, "error", err)
	} else {
		w.store.Replace(rules)
		w.log.Info("configuration reloaded", "cycle", cycle, "path", w.path, "rules", len(rules))
	}

	w.mu.Lock()
	again := w.reloadPending
	w.reloadPending = false
	w.state = stateIdle
	w.mu.Unlock()

	if again {
		w.mu.Lock()
		w.state = statePending
		w.debounceTimer = time.AfterFunc(debounceWindow, w.reload)
		w.mu.Unlock()
	}
}
