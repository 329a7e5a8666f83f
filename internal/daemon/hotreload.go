package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/lanechime/internal/config"
)

// ConfigWatcher watches the daemon config file for changes and validates new
// configs before handing them to the reload callback.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	configPath string

	// Current valid config
	currentConfig *config.DaemonConfig

	onReloadCallback func(newConfig *config.DaemonConfig)
	onErrorCallback  func(err error)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	running bool
}

// NewConfigWatcher creates a ConfigWatcher for path, or for the default
// daemon config path when path is empty.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		var err error
		path, err = config.DaemonConfigPath()
		if err != nil {
			return nil, err
		}
	}

	return &ConfigWatcher{
		logger:     logger,
		configPath: path,
	}, nil
}

// Path returns the watched file.
func (w *ConfigWatcher) Path() string {
	return w.configPath
}

// SetReloadCallback sets the callback to invoke when config is successfully reloaded.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback to invoke when config reload fails validation.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching the config file for changes. The containing
// directory is created if missing, since editors replace files by rename and
// only a directory watch sees that.
func (w *ConfigWatcher) Start(ctx context.Context, initialConfig *config.DaemonConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	dir := filepath.Dir(w.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.watcher = watcher
	w.currentConfig = initialConfig
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.watchLoop(ctx, watcher, w.stopCh, w.doneCh)

	w.logger.Debug("config watcher started", "path", w.configPath)
	return nil
}

// Stop stops watching the config file.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	<-doneCh
	if err := watcher.Close(); err != nil {
		w.logger.Debug("failed to close file watcher", "error", err)
	}
	w.logger.Debug("config watcher stopped")
}

// GetCurrentConfig returns the current valid configuration.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	filename := filepath.Base(w.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filename {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.logger.Debug("config file changed", "path", w.configPath, "op", ev.Op.String())
				w.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// reload loads and validates the config file. A missing file keeps the
// current config.
func (w *ConfigWatcher) reload() {
	if _, err := os.Stat(w.configPath); err != nil {
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", w.configPath, "error", err)
		}
		return
	}

	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	w.mu.RUnlock()

	newConfig, err := config.LoadDaemonConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded successfully")
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}
