package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Limits are the business constraints that operations can retune
// without a deploy: the free-tier item ceiling and the autosave
// debounce window.
type Limits struct {
	FreeTierLimit  int           `yaml:"freeTierLimit"`
	SaveDebounceMS int           `yaml:"saveDebounceMs"`
	SaveDebounce   time.Duration `yaml:"-"`
}

// DefaultLimits returns the built-in limits used when no limits file
// is configured
func DefaultLimits() Limits {
	return Limits{
		FreeTierLimit: 10,
		SaveDebounce:  time.Second,
	}
}

// LimitsWatcher hot reloads the limits file. Quota checks read the
// limit through the watcher on every call, so a tier change applies to
// open sessions without restarting them.
type LimitsWatcher struct {
	mu      sync.RWMutex
	limits  Limits
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	callbacks []func(Limits)
}

// NewLimitsWatcher loads the limits file and starts watching it for
// changes. An empty path disables watching and serves the defaults.
func NewLimitsWatcher(path string, logger *zap.Logger) (*LimitsWatcher, error) {
	w := &LimitsWatcher{
		limits: DefaultLimits(),
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if path == "" {
		logger.Info("Limits file not configured, using defaults")
		return w, nil
	}

	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("failed to load limits file: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch limits file: %w", err)
	}
	w.watcher = fsWatcher

	go w.watchLoop()

	logger.Info("Limits hot reloading enabled", zap.String("file", path))
	return w, nil
}

// Current returns the active limits
func (w *LimitsWatcher) Current() Limits {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.limits
}

// FreeTierLimit returns the active item ceiling
func (w *LimitsWatcher) FreeTierLimit() int {
	return w.Current().FreeTierLimit
}

// OnChange registers a callback invoked after each successful reload
func (w *LimitsWatcher) OnChange(callback func(Limits)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Stop stops watching the limits file
func (w *LimitsWatcher) Stop() {
	if w.watcher != nil {
		close(w.stopCh)
		w.watcher.Close()
	}
}

func (w *LimitsWatcher) watchLoop() {
	// Editors often emit several events per save; collapse them
	var debounceTimer *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := w.reload(); err != nil {
						w.logger.Error("Limits reload failed", zap.Error(err))
						return
					}
					w.notifyCallbacks()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Limits watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *LimitsWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}

	parsed := DefaultLimits()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("invalid limits file: %w", err)
	}
	if parsed.SaveDebounceMS > 0 {
		parsed.SaveDebounce = time.Duration(parsed.SaveDebounceMS) * time.Millisecond
	}
	if parsed.FreeTierLimit < 0 {
		return fmt.Errorf("freeTierLimit must not be negative")
	}

	w.mu.Lock()
	old := w.limits
	w.limits = parsed
	w.mu.Unlock()

	if old.FreeTierLimit != parsed.FreeTierLimit {
		w.logger.Info("Free tier limit changed",
			zap.Int("from", old.FreeTierLimit),
			zap.Int("to", parsed.FreeTierLimit),
		)
	}
	return nil
}

func (w *LimitsWatcher) notifyCallbacks() {
	w.mu.RLock()
	callbacks := make([]func(Limits), len(w.callbacks))
	copy(callbacks, w.callbacks)
	limits := w.limits
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(limits)
	}
}
