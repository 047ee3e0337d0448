package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/stargazer/internal/config"
	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/refresh"
	"git.home.luguber.info/inful/stargazer/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr  string `help:"Listen address (overrides server.addr)"`
	Watch bool   `help:"Reload the refresh interval when the config file changes" default:"true" negatable:""`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(ctx, g, root, openOptions{fetch: true})
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	srvCfg := rt.cfg.Server
	if s.Addr != "" {
		srvCfg.Addr = s.Addr
	}
	opts := []server.Option{server.WithLogger(rt.logger)}
	if rt.registry != nil {
		opts = append(opts, server.WithMetricsHandler(metrics.HTTPHandler(rt.registry)))
	}
	srv := server.New(srvCfg, rt.store, opts...)

	sched, err := refresh.NewScheduler(rt.store, refresh.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	if err := sched.SetInterval(rt.cfg.Refresh.Interval); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			rt.logger.Warn("Failed to stop scheduler", logfields.Error(err))
		}
	}()

	if s.Watch {
		if _, statErr := os.Stat(root.Config); statErr == nil {
			watcher, err := refresh.NewConfigWatcher(root.Config, func(_ context.Context, cfg *config.Config) error {
				if cfg.Server != rt.cfg.Server || cfg.Storage != rt.cfg.Storage {
					rt.logger.Warn("Server and storage changes take effect after restart")
				}
				return sched.SetInterval(cfg.Refresh.Interval)
			}, refresh.WithWatcherLogger(rt.logger), refresh.WithBus(rt.store.Bus()))
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = watcher.Stop() }()
		} else {
			rt.logger.Debug("Config file not found; not watching", logfields.ConfigPath(root.Config))
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.Run(gctx) })
	group.Go(func() error {
		logChanges(gctx, rt)
		return nil
	})
	rt.logger.Info("Stargazer serving", slog.String("addr", srvCfg.Addr))
	return group.Wait()
}

// logChanges reports fetch outcomes until ctx is done.
func logChanges(ctx context.Context, rt *runtime) {
	changes, unsubscribe := rt.store.Subscribe(16)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			switch ch.Kind {
			case events.KindFetchSucceeded:
				rt.logger.Info("Visibility updated", logfields.Generation(ch.Generation))
			case events.KindFetchFailed:
				rt.logger.Warn("Visibility fetch failed",
					logfields.Generation(ch.Generation), slog.String("message", rt.store.Result().Error))
			}
		}
	}
}
