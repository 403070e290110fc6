// Package watcher reports changes to the database file with fsnotify and debouncing.
// Ranked terms are cached for the life of the process, so a change means the
// dashboard serves results that no longer match the file until it is restarted.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// sidecar suffixes SQLite writes next to the database file.
var sidecars = []string{"", "-wal", "-journal", "-shm"}

// Watcher watches one database file and invokes a callback when it changes.
type Watcher struct {
	path     string
	dir      string
	onChange func(path string, op fsnotify.Op)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	pending  fsnotify.Op
	changes  int
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long events must be quiet before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for the database at path. Bursts of events on the file
// and its journal files are collapsed into one onChange call carrying every op seen.
func NewWatcher(path string, onChange func(path string, op fsnotify.Op), opts ...WatcherOption) *Watcher {
	clean := filepath.Clean(path)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	w := &Watcher{
		path:     clean,
		dir:      filepath.Dir(clean),
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts watching. The parent directory is watched so that a file replaced by
// rename is still noticed. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("watcher starting", zap.String("path", w.path))
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !w.matches(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.pending |= ev.Op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	op := w.pending
	w.pending = 0
	w.timer = nil
	w.changes++
	onChange := w.onChange
	w.mu.Unlock()

	w.logger.Debug("database changed (debounced)", zap.String("path", w.path), zap.String("op", describeOp(op)))
	if onChange != nil {
		onChange(w.path, op)
	}
}

// matches reports whether name is the database file or one of its journal files.
func (w *Watcher) matches(name string) bool {
	clean := filepath.Clean(name)
	if !filepath.IsAbs(clean) {
		if abs, err := filepath.Abs(clean); err == nil {
			clean = abs
		}
	}
	if filepath.Dir(clean) != w.dir {
		return false
	}
	base := filepath.Base(w.path)
	for _, suffix := range sidecars {
		if filepath.Base(clean) == base+suffix {
			return true
		}
	}
	return false
}

// Path returns the watched database path.
func (w *Watcher) Path() string {
	return w.path
}

// Changes returns how many debounced changes have been reported.
func (w *Watcher) Changes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changes
}

// Stop stops the watcher and releases resources. Pending notifications are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

// describeOp renders ops for log lines, e.g. "write|remove".
func describeOp(op fsnotify.Op) string {
	var parts []string
	for _, o := range []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Rename} {
		if op.Has(o) {
			parts = append(parts, strings.ToLower(o.String()))
		}
	}
	return strings.Join(parts, "|")
}
