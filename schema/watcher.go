package schema

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the reload delay used when none is configured.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a registry when shape files under the schema directory
// change. Change events are debounced so a burst of writes triggers one
// reload; a failed reload keeps the last good definition set in place.
type Watcher struct {
	registry *Registry
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher over the schema directory.
func NewWatcher(registry *Registry, dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		registry: registry,
		dir:      dir,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Start begins watching. The initial load is the caller's job (Load), so a
// broken tree at startup fails fast instead of silently serving nothing.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatches(w.dir); err != nil {
		return err
	}
	go w.run(ctx)

	w.logger.Info("Schema watcher started",
		"dir", w.dir,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// addWatches registers every non-hidden directory under root.
func (w *Watcher) addWatches(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Schema watcher error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			base := filepath.Base(event.Name)
			if strings.HasPrefix(base, ".") {
				return
			}
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory",
					"path", event.Name,
					"error", err)
			}
			// The new directory may already carry shape files.
			w.mark()
			return
		}
	}

	if !strings.HasSuffix(event.Name, shapeFileSuffix) {
		return
	}
	w.mark()

	w.logger.Debug("Schema change detected",
		"path", event.Name,
		"op", event.Op.String())
}

func (w *Watcher) mark() {
	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	dirty := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if dirty {
		w.Reload()
	}
}

// Reload re-reads the schema directory and swaps the registry. On error the
// previous definitions stay in place.
func (w *Watcher) Reload() {
	count, err := Load(w.registry, w.dir)
	if err != nil {
		w.logger.Error("Schema reload failed, keeping previous definitions",
			"dir", w.dir,
			"error", err)
		return
	}

	w.logger.Info("Schemas reloaded",
		"dir", w.dir,
		"schemas", count)
}
