package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/visibility"
)

// Result is the fetch-derived part of a session: the last successful
// response, whether a cycle is outstanding, and the surfaced error.
type Result struct {
	Data       *visibility.Response
	Loading    bool
	Error      string
	Generation uint64
}

// Coordinator runs fetch cycles. Only the most recently issued cycle may
// change the Result; earlier cycles are canceled and their completions
// are dropped by a generation check.
type Coordinator struct {
	fetcher  visibility.Fetcher
	logger   *slog.Logger
	recorder metrics.Recorder
	bus      *events.Bus
	clock    clockwork.Clock

	base       context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	data    *visibility.Response
	loading bool
	errMsg  string
	idle    chan struct{} // closed when loading drops to false
	closed  bool
}

// NewCoordinator creates an idle coordinator. bus may be nil.
func NewCoordinator(fetcher visibility.Fetcher, bus *events.Bus, logger *slog.Logger, recorder metrics.Recorder, clock clockwork.Clock) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	base, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Coordinator{
		fetcher:    fetcher,
		logger:     logger,
		recorder:   recorder,
		bus:        bus,
		clock:      clock,
		base:       base,
		baseCancel: cancel,
		idle:       idle,
	}
}

// Request cancels any outstanding cycle and starts a new one for req.
// It returns the generation of the new cycle, or the current generation
// when the coordinator is closed.
func (c *Coordinator) Request(req visibility.Request) uint64 {
	c.mu.Lock()
	if c.closed {
		gen := c.gen
		c.mu.Unlock()
		return gen
	}
	superseded := c.cancel != nil
	if superseded {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	if !c.loading {
		c.idle = make(chan struct{})
	}
	c.loading = true
	c.errMsg = ""
	c.wg.Add(1)
	c.mu.Unlock()

	if superseded {
		c.recorder.IncFetchOutcome(metrics.OutcomeSuperseded)
	}
	c.recorder.IncFetchIssued()
	c.recorder.SetLoading(true)
	c.logger.Debug("Fetch cycle issued",
		logfields.Generation(gen),
		logfields.Lat(req.Coordinates.Lat),
		logfields.Lon(req.Coordinates.Lon),
		logfields.Twilight(string(req.Twilight)),
		logfields.TimeISO(req.TimeISO))
	c.notify(events.KindFetchStarted, gen)

	go c.run(ctx, cancel, gen, req)
	return gen
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, gen uint64, req visibility.Request) {
	defer c.wg.Done()
	defer cancel()

	start := c.clock.Now()
	resp, err := c.fetcher.Fetch(ctx, req)
	elapsed := c.clock.Since(start)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("Discarding superseded fetch result", logfields.Generation(gen), logfields.Duration(elapsed))
		return
	}

	var (
		kind    events.ChangeKind
		outcome metrics.OutcomeLabel
	)
	switch {
	case err == nil:
		c.data = resp
		c.errMsg = ""
		kind, outcome = events.KindFetchSucceeded, metrics.OutcomeSuccess
	case errors.IsCanceled(err):
		kind, outcome = events.KindFetchAbandoned, metrics.OutcomeAbandoned
	default:
		c.errMsg = errors.UserMessage(err)
		kind, outcome = events.KindFetchFailed, metrics.OutcomeFailure
	}
	c.cancel = nil
	c.loading = false
	close(c.idle)
	c.mu.Unlock()

	c.recorder.IncFetchOutcome(outcome)
	c.recorder.ObserveFetchDuration(elapsed, outcome)
	c.recorder.SetLoading(false)
	if outcome == metrics.OutcomeFailure {
		c.logger.Warn("Visibility fetch failed", logfields.Generation(gen), logfields.Duration(elapsed), logfields.Error(err))
	} else {
		c.logger.Debug("Fetch cycle settled", logfields.Generation(gen), slog.String("outcome", string(outcome)), logfields.Duration(elapsed))
	}
	c.notify(kind, gen)
}

// Abandon cancels the outstanding cycle without issuing a replacement.
// Loading drops to false and no error is surfaced.
func (c *Coordinator) Abandon() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.cancel = nil
	c.gen++
	gen := c.gen
	c.loading = false
	close(c.idle)
	c.mu.Unlock()

	c.recorder.IncFetchOutcome(metrics.OutcomeAbandoned)
	c.recorder.SetLoading(false)
	c.logger.Debug("Fetch cycle abandoned", logfields.Generation(gen))
	c.notify(events.KindFetchAbandoned, gen)
}

// SetError overrides the surfaced error. An empty message clears it.
func (c *Coordinator) SetError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	gen := c.gen
	c.mu.Unlock()
	c.notify(events.KindError, gen)
}

// Result returns a consistent copy of the fetch-derived state.
func (c *Coordinator) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{Data: c.data, Loading: c.loading, Error: c.errMsg, Generation: c.gen}
}

// Wait blocks until no cycle is outstanding or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return errors.WrapError(ctx.Err(), errors.CategoryCanceled, "waiting for fetch cycle").Build()
	}
}

// Close abandons the outstanding cycle, refuses new ones and waits for
// every fetch goroutine to return.
func (c *Coordinator) Close() {
	c.Abandon()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.baseCancel()
	c.wg.Wait()
}

func (c *Coordinator) notify(kind events.ChangeKind, gen uint64) {
	if c.bus == nil {
		return
	}
	c.bus.Offer(events.Change{Kind: kind, Generation: gen, At: c.clock.Now()})
}
