package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the config file on change and notifies a handler with the
// freshly loaded configuration. Reload failures keep the previous config.
type Watcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	onLoad  func(*Config)
}

// NewWatcher creates a watcher for the given config file
func NewWatcher(path string, onLoad func(*Config), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		logger:  logger,
		watcher: fw,
		onLoad:  onLoad,
	}, nil
}

// Run blocks until the context is cancelled, reloading on file writes
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg := &Config{}
			if err := cfg.loadFile(w.path); err != nil {
				w.logger.Warn("config reload failed, keeping previous",
					zap.String("path", w.path),
					zap.Error(err),
				)
				continue
			}
			cfg.applyEnv()
			cfg.applyDefaults()
			if err := cfg.Validate(); err != nil {
				w.logger.Warn("reloaded config invalid, keeping previous",
					zap.String("path", w.path),
					zap.Error(err),
				)
				continue
			}
			w.logger.Info("config reloaded", zap.String("path", w.path))
			w.onLoad(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
