package versions

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Watcher notifies when the version pointer file changes on disk. The
// orchestrator already re-reads the pointer every cycle; the watcher
// exists so API-mode deployments with long idle gaps see a deployment
// promptly instead of serving the old version until the next request.
type Watcher struct {
	path     string
	onChange func()
	logger   logr.Logger
}

// NewWatcher calls onChange whenever the pointer file at path is
// written or replaced.
func NewWatcher(path string, onChange func(), logger logr.Logger) *Watcher {
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Start watches until ctx is cancelled. The parent directory is
// watched, not the file, because deployments replace the file wholesale.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating pointer-file watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.V(1).Info("watching version pointer", "path", w.path)

	go func() {
		defer func() { _ = fsw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
					continue
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
					w.logger.Info("version pointer changed on disk", "op", ev.Op.String())
					w.onChange()
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error(err, "pointer-file watcher error")
			}
		}
	}()
	return nil
}
