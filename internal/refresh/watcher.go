package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/stargazer/internal/config"
	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
)

// ReloadFunc applies a freshly loaded configuration.
type ReloadFunc func(ctx context.Context, cfg *config.Config) error

// ConfigWatcher reloads the configuration file after it changes on disk.
// Bursts of writes are debounced into one reload.
type ConfigWatcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	apply      ReloadFunc
	bus        *events.Bus
	clock      clockwork.Clock
	logger     *slog.Logger
	debounce   time.Duration

	wg      sync.WaitGroup
	stop    chan struct{}
	stopped sync.Once
}

// WatcherOption configures a ConfigWatcher.
type WatcherOption func(*ConfigWatcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(cw *ConfigWatcher) {
		if d > 0 {
			cw.debounce = d
		}
	}
}

// WithWatcherClock drives the debounce timer from c.
func WithWatcherClock(c clockwork.Clock) WatcherOption {
	return func(cw *ConfigWatcher) {
		if c != nil {
			cw.clock = c
		}
	}
}

func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(cw *ConfigWatcher) {
		if l != nil {
			cw.logger = l
		}
	}
}

// WithBus announces reloads as events.ConfigReloaded and a config_reload change.
func WithBus(b *events.Bus) WatcherOption {
	return func(cw *ConfigWatcher) { cw.bus = b }
}

// NewConfigWatcher creates a watcher for configPath. apply runs after
// every successful reload.
func NewConfigWatcher(configPath string, apply ReloadFunc, opts ...WatcherOption) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: absPath,
		watcher:    watcher,
		apply:      apply,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
		debounce:   time.Second,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cw)
	}
	return cw, nil
}

// Start watches the directory holding the config file; editors often
// replace the file rather than write it in place.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}
	cw.logger.Info("Starting configuration watcher", logfields.ConfigPath(cw.configPath))

	cw.wg.Add(1)
	go cw.loop(ctx)
	return nil
}

// Stop ends watching and waits for the watch loop to exit.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopped.Do(func() {
		close(cw.stop)
		err = cw.watcher.Close()
	})
	cw.wg.Wait()
	return err
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	defer cw.wg.Done()

	configFile := filepath.Base(cw.configPath)
	var (
		timer   clockwork.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stop:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Has(fsnotify.Remove) {
				cw.logger.Warn("Config file removed", logfields.ConfigPath(event.Name))
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cw.logger.Debug("Config file change detected", logfields.ConfigPath(event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = cw.clock.NewTimer(cw.debounce)
			} else {
				timer.Stop()
				timer.Reset(cw.debounce)
			}
			timerCh = timer.Chan()
		case <-timerCh:
			timerCh = nil
			if err := cw.reload(ctx); err != nil {
				cw.logger.Error("Failed to reload configuration", logfields.Error(err))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reload(ctx context.Context) error {
	cw.logger.Info("Reloading configuration", logfields.ConfigPath(cw.configPath))
	cfg, err := config.Load(cw.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}
	if cw.apply != nil {
		if err := cw.apply(ctx, cfg); err != nil {
			return fmt.Errorf("failed to apply new configuration: %w", err)
		}
	}
	if cw.bus != nil {
		now := cw.clock.Now()
		cw.bus.Offer(events.ConfigReloaded{Path: cw.configPath, DetectedAt: now})
		cw.bus.Offer(events.Change{Kind: events.KindConfigReload, At: now})
	}
	cw.logger.Info("Configuration reloaded successfully")
	return nil
}
