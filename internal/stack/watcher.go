package stack

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/utils/logger"
)

// Watcher re-runs a callback when a stack manifest changes on disk. Rapid
// editor write bursts are debounced into a single reload.
type Watcher struct {
	watcher    *fsnotify.Watcher
	reloadFunc func(string) error
	debouncer  *debouncer
}

type debouncer struct {
	timer    *time.Timer
	duration time.Duration
}

// NewWatcher creates a new stack file watcher
func NewWatcher(reloadFunc func(string) error) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher:    fsWatcher,
		reloadFunc: reloadFunc,
		debouncer: &debouncer{
			duration: 500 * time.Millisecond,
		},
	}, nil
}

// Watch starts watching the given manifest paths
func (w *Watcher) Watch(paths ...string) error {
	logger.Info("Watching stack manifests", zap.Strings("paths", paths))

	for _, path := range paths {
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}

		// Editors often replace the file, so watch the directory too
		dir := filepath.Dir(path)
		if err := w.watcher.Add(dir); err != nil {
			logger.Warn("Failed to watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	go w.processEvents()
	return nil
}

func (w *Watcher) processEvents() {
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
			logger.Error("Stack watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
		logger.Debug("Stack manifest changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))

		w.debouncer.debounce(func() {
			if err := w.reloadFunc(event.Name); err != nil {
				logger.Error("Reload after manifest change failed",
					zap.String("file", event.Name),
					zap.Error(err))
			} else {
				logger.Info("Reloaded after manifest change", zap.String("file", event.Name))
			}
		})
	}
}

func (d *debouncer) debounce(fn func()) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Close closes the watcher
func (w *Watcher) Close() error {
	if w.debouncer.timer != nil {
		w.debouncer.timer.Stop()
	}
	return w.watcher.Close()
}
