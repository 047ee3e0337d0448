// Package server exposes the session store over HTTP/JSON for browser and
// scripted collaborators.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/stargazer/internal/config"
	"git.home.luguber.info/inful/stargazer/internal/draft"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/session"
)

// Server is the HTTP surface over one session Store.
type Server struct {
	Addr    string
	store   *session.Store
	draft   *draft.Draft
	limiter *rate.Limiter
	errs    *errors.HTTPErrorAdapter
	logger  *slog.Logger
	metrics http.Handler
	router  *chi.Mux
	server  *http.Server
	clock   clockwork.Clock

	streamTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithStreamTimeout bounds how long an idle event stream stays open.
func WithStreamTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamTimeout = d
		}
	}
}

// WithClock sets the clock for event stream timestamps and timeouts.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// New creates a server for store. cfg supplies the listen address and
// the manual refetch rate limit.
func New(cfg config.ServerConfig, store *session.Store, opts ...Option) *Server {
	s := &Server{
		Addr:          cfg.Addr,
		store:         store,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RefetchRate), cfg.RefetchBurst),
		logger:        slog.Default(),
		router:        chi.NewRouter(),
		clock:         clockwork.NewRealClock(),
		streamTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errs = errors.NewHTTPErrorAdapter(s.logger)
	s.draft = draft.New(store, store.Bus(), draft.WithClock(s.clock))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(recoverer(s.logger, s.errs))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Get("/events", s.handleEvents)
		r.With(middleware.Timeout(15*time.Second)).Group(func(r chi.Router) {
			r.Put("/coordinates", s.handleSetCoordinates)
			r.Put("/twilight", s.handleSetTwilight)
			r.Put("/time", s.handleSetTime)
			r.Post("/refetch", s.handleRefetch)
			r.Delete("/error", s.handleClearError)
		})
	})

	s.router.Route("/favorites", func(r chi.Router) {
		r.Get("/", s.handleListFavorites)
		r.Post("/", s.handleAddFavorite)
		r.Post("/current", s.handleSaveCurrentView)
		r.Delete("/{id}", s.handleRemoveFavorite)
		r.Post("/{id}/apply", s.handleApplyFavorite)
	})

	s.router.Route("/observed", func(r chi.Router) {
		r.Get("/", s.handleListObserved)
		r.Put("/{id}", s.handleMarkObserved)
		r.Delete("/{id}", s.handleUnmarkObserved)
	})

	s.router.Route("/draft", func(r chi.Router) {
		r.Get("/", s.handleGetDraft)
		r.Put("/", s.handleSetDraft)
		r.Post("/apply", s.handleApplyDraft)
		r.Delete("/", s.handleResetDraft)
	})

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "listen failed").WithContext("addr", s.Addr).Build()
	}
	s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))

	// Streams watch the request context; cancel it before Shutdown waits
	// for handlers to return.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	s.server.BaseContext = func(net.Listener) context.Context { return baseCtx }

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.RuntimeError("server shutdown failed").WithCause(err).Build()
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
