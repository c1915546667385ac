package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/peek/pkg/peek/logging"
)

// Watcher reloads the config file when it changes and hands the new
// configuration to a callback. A file that fails to load is logged and
// the previous configuration stays in effect.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	getenv   func(string) string
	onChange func(*Config)
	logger   logging.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the config file at path. Reloads
// interpolate ${VAR} through getenv, or os.Getenv when it is nil.
func NewWatcher(path string, getenv func(string) string, logger logging.Logger, onChange func(*Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NullLogger()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Watcher{
		watcher:  fsWatcher,
		path:     path,
		getenv:   getenv,
		onChange: onChange,
		logger:   logger,
		debounce: 100 * time.Millisecond,
	}, nil
}

// Start watches the directory of the config file, so editors that
// replace the file on save are seen too.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Errorf("[WATCH] failed to watch config dir %s: %v", dir, err)
		return err
	}
	w.logger.Infof("[WATCH] watching config: %s", w.path)

	go w.eventLoop(ctx)
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("[WATCH] watcher error: %v", err)
		}
	}
}

// schedule reloads once changes have settled.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, w.getenv)
	if err != nil {
		w.logger.Errorf("[WATCH] config reload failed: %v", err)
		return
	}
	w.logger.Infof("[WATCH] config changed: %s", w.path)
	w.onChange(cfg)
}

// Close stops the watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
