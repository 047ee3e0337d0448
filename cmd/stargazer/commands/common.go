package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/stargazer/internal/config"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/observability"
	"git.home.luguber.info/inful/stargazer/internal/session"
	"git.home.luguber.info/inful/stargazer/internal/state"
	"git.home.luguber.info/inful/stargazer/internal/storage"
	"git.home.luguber.info/inful/stargazer/internal/visibility"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"stargazer.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init      InitCmd      `cmd:"" help:"Write an example configuration file"`
	Show      ShowCmd      `cmd:"" help:"Fetch and print what is visible for the saved session"`
	Set       SetCmd       `cmd:"" help:"Change the observation location, twilight or time"`
	Refetch   RefetchCmd   `cmd:"" help:"Fetch again for the unchanged session"`
	Favorites FavoritesCmd `cmd:"" help:"Manage saved views"`
	Observed  ObservedCmd  `cmd:"" help:"Manage observed constellations"`
	Serve     ServeCmd     `cmd:"" help:"Serve the session over HTTP"`
}

// AfterApply runs after flag parsing; setup logging once. The config file
// may not exist yet, so only its logging section is consulted.
func (c *CLI) AfterApply(g *Global) error {
	logCfg := config.Default().Logging
	if cfg, err := config.Load(c.Config); err == nil {
		logCfg = cfg.Logging
	}
	g.Logger = observability.NewLogger(logCfg, c.Verbose, os.Stderr)
	slog.SetDefault(g.Logger)
	if g.Out == nil {
		g.Out = os.Stdout
	}
	return nil
}

// loadConfig reads the configuration, falling back to defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.HasCategory(err, errors.CategoryNotFound) {
		slog.Debug("No configuration file, using defaults", slog.String("path", path))
		return config.Default(), nil
	}
	return nil, err
}

// runtime is one opened session with everything it depends on.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  storage.Backend
	store    *session.Store
	registry *prometheus.Registry
	shutdown observability.ShutdownFunc
}

type openOptions struct {
	fetch bool
}

func openRuntime(ctx context.Context, g *Global, root *CLI, o openOptions) (*runtime, error) {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: g.Logger}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(rt.registry)
	}

	tp, shutdown, err := observability.InitTracing(ctx, cfg.Tracing, os.Stderr, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.shutdown = shutdown

	client, err := visibility.NewClient(cfg.API,
		visibility.WithLogger(rt.logger),
		visibility.WithRecorder(recorder),
		visibility.WithTracerProvider(tp))
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	backend, err := storage.Open(cfg.Storage)
	if err != nil {
		rt.logger.Warn("Storage unavailable; session will not be persisted",
			logfields.Backend(string(cfg.Storage.Backend)), logfields.Error(err))
		recorder.IncPersistenceFailure("backend", metrics.OpLoad)
		backend = storage.NewMemoryStore()
	}
	rt.backend = backend

	opts := []session.Option{
		session.WithLogger(rt.logger),
		session.WithRecorder(recorder),
	}
	if loc := cfg.Session.DefaultLocation; loc != nil {
		opts = append(opts, session.WithDefaultLocation(state.Coordinates{Lat: loc.Lat, Lon: loc.Lon, Elev: loc.Elev}))
	}
	if !o.fetch {
		opts = append(opts, session.WithoutInitialFetch())
	}
	rt.store = session.New(ctx, backend, client, opts...)
	return rt, nil
}

// settle waits for the outstanding fetch cycle, bounded by the API timeout
// across every allowed attempt.
func (rt *runtime) settle(ctx context.Context) error {
	budget := rt.cfg.API.Timeout*time.Duration(rt.cfg.API.Retry.MaxRetries+1) + rt.cfg.API.Retry.Max*time.Duration(rt.cfg.API.Retry.MaxRetries) + 5*time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return rt.store.Wait(ctx)
}

func (rt *runtime) close(ctx context.Context) {
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.logger.Warn("Failed to close storage", slog.String("error", err.Error()))
		}
	}
	observability.ShutdownWithTimeout(ctx, rt.shutdown, rt.logger)
}
