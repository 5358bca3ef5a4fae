package fspotfs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the catalog must stay quiet before a reload.
const DefaultSettle = 500 * time.Millisecond

// Reloader is anything that can rebuild itself from the catalog.
type Reloader interface {
	Load(ctx context.Context) error
}

// Watcher reloads the tag cache when the catalog file changes outside the
// mount, e.g. when F-Spot itself adds or renames tags.
type Watcher struct {
	catalog string
	target  Reloader
	settle  time.Duration
	logger  *slog.Logger

	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	reloads chan struct{}
}

// NewWatcher watches the directory holding catalogPath. SQLite rewrites the
// catalog through journal files, so the directory is watched rather than
// the file.
func NewWatcher(catalogPath string, target Reloader, settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(catalogPath)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		catalog: abs,
		target:  target,
		settle:  settle,
		logger:  logger.With("component", "watcher"),
		watcher: w,
		reloads: make(chan struct{}, 1),
	}, nil
}

// concerns reports whether an event path is the catalog or one of its
// SQLite companion files.
func (w *Watcher) concerns(name string) bool {
	name = filepath.Clean(name)
	if name == w.catalog {
		return true
	}
	for _, suffix := range []string{"-journal", "-wal"} {
		if strings.TrimSuffix(name, suffix) == w.catalog && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Run processes events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 || !w.concerns(event.Name) {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-w.reloads:
			if err := w.target.Load(ctx); err != nil {
				w.logger.Error("reload after catalog change", "error", err)
				continue
			}
			w.logger.Info("tags reloaded after catalog change", "catalog", w.catalog)
		}
	}
}

// schedule (re)starts the settle timer; a burst of events yields one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, func() {
		select {
		case w.reloads <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
