// Package session owns the user's observation parameters and ties them to
// persistence and to the visibility fetch cycle.
//
// Every mutator that changes a fetch-relevant field persists the field and
// issues a new cycle while holding the store lock, so persistence writes
// and cycle generations follow mutator call order.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/foundation"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/state"
	"git.home.luguber.info/inful/stargazer/internal/storage"
	"git.home.luguber.info/inful/stargazer/internal/visibility"
)

// Params is the committed observation tuple.
type Params struct {
	Coordinates state.Coordinates `json:"coordinates"`
	Twilight    state.Twilight    `json:"twilight"`
	TimeISO     string            `json:"timeIso,omitempty"`
}

func (p Params) request() visibility.Request {
	return visibility.Request{Coordinates: p.Coordinates, Twilight: p.Twilight, TimeISO: p.TimeISO}
}

// Snapshot is the full read surface at one instant.
type Snapshot struct {
	Params
	VisibleData *visibility.Response `json:"visibleData"`
	Loading     bool                 `json:"loading"`
	Error       string               `json:"error,omitempty"`
	Generation  uint64               `json:"generation"`
}

// Store is the session aggregate. Construct one per session with New and
// pass it to every presentation collaborator.
type Store struct {
	mu     sync.RWMutex
	params Params

	adapter   *state.Adapter
	favorites *state.Favorites
	observed  *state.Observed
	coord     *Coordinator
	bus       *events.Bus
	ownsBus   bool
	logger    *slog.Logger
	clock     clockwork.Clock
}

type options struct {
	logger   *slog.Logger
	recorder metrics.Recorder
	bus      *events.Bus
	clock    clockwork.Clock
	newID    func() string
	fallback state.Coordinates
	noFetch  bool
}

// Option configures a Store.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithBus publishes change notifications on an existing bus. Without it
// the store creates and closes its own.
func WithBus(b *events.Bus) Option {
	return func(o *options) { o.bus = b }
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithIDGenerator overrides favorite id assignment.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithDefaultLocation sets the coordinates used when none were persisted.
func WithDefaultLocation(c state.Coordinates) Option {
	return func(o *options) {
		if c.Validate() == nil {
			o.fallback = c
		}
	}
}

// WithoutInitialFetch skips the cycle New normally issues for the loaded tuple.
func WithoutInitialFetch() Option {
	return func(o *options) { o.noFetch = true }
}

// New loads the persisted session from backend and issues the first
// fetch cycle for it.
func New(ctx context.Context, backend storage.Backend, fetcher visibility.Fetcher, opts ...Option) *Store {
	o := options{
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		clock:    clockwork.NewRealClock(),
		fallback: state.DefaultCoordinates(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	adapter := state.NewAdapter(backend, state.WithLogger(o.logger), state.WithRecorder(o.recorder))
	s := &Store{
		adapter: adapter,
		logger:  o.logger,
		clock:   o.clock,
		bus:     o.bus,
	}
	if s.bus == nil {
		s.bus = events.NewBus()
		s.ownsBus = true
	}
	s.params = Params{
		Coordinates: adapter.LoadCoordinates(ctx, o.fallback),
		Twilight:    adapter.LoadTwilight(ctx),
		TimeISO:     adapter.LoadTimeISO(ctx),
	}
	var favOpts []state.FavoritesOption
	if o.newID != nil {
		favOpts = append(favOpts, state.WithIDGenerator(o.newID))
	}
	s.favorites = state.NewFavorites(ctx, adapter, favOpts...)
	s.observed = state.NewObserved(ctx, adapter)
	s.coord = NewCoordinator(fetcher, s.bus, o.logger, o.recorder, o.clock)

	s.logger.Info("Session loaded",
		logfields.Lat(s.params.Coordinates.Lat),
		logfields.Lon(s.params.Coordinates.Lon),
		logfields.Elev(s.params.Coordinates.Elev),
		logfields.Twilight(string(s.params.Twilight)),
		logfields.TimeISO(s.params.TimeISO),
		slog.Int("favorites", s.favorites.Len()))

	if !o.noFetch {
		s.coord.Request(s.params.request())
	}
	return s
}

// Params returns the committed tuple.
func (s *Store) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

func (s *Store) Coordinates() state.Coordinates { return s.Params().Coordinates }
func (s *Store) Twilight() state.Twilight       { return s.Params().Twilight }
func (s *Store) TimeISO() string                { return s.Params().TimeISO }

// Result returns visibleData, loading and error as one consistent value.
func (s *Store) Result() Result { return s.coord.Result() }

// Snapshot returns the committed tuple together with the fetch result.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	p := s.params
	r := s.coord.Result()
	s.mu.RUnlock()
	return Snapshot{Params: p, VisibleData: r.Data, Loading: r.Loading, Error: r.Error, Generation: r.Generation}
}

// SetCoordinates replaces the coordinates, persists them and issues a new
// cycle even when the value is unchanged.
func (s *Store) SetCoordinates(ctx context.Context, c state.Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Coordinates = c
	s.adapter.SaveCoordinates(ctx, c)
	s.changedLocked(ctx)
	return nil
}

// SetTwilight replaces the twilight level, persists it and issues a new cycle.
func (s *Store) SetTwilight(ctx context.Context, t state.Twilight) error {
	if !t.Valid() {
		return foundation.Invalid("twilight", "one_of", fmt.Sprintf("unknown twilight %q", t)).ToError()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Twilight = t
	s.adapter.SaveTwilight(ctx, t)
	s.changedLocked(ctx)
	return nil
}

// SetTimeISO replaces the observation time. An empty value means now and
// removes the persisted time.
func (s *Store) SetTimeISO(ctx context.Context, t string) {
	t = strings.TrimSpace(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.TimeISO = t
	s.adapter.SaveTimeISO(ctx, t)
	s.changedLocked(ctx)
}

// Refetch issues a new cycle for the unchanged tuple.
func (s *Store) Refetch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coord.Request(s.params.request())
}

// SetError overrides the surfaced error; "" clears it.
func (s *Store) SetError(msg string) { s.coord.SetError(msg) }

// ApplyFavorite commits a favorite's coordinates, twilight and time in one
// step and issues exactly one cycle.
func (s *Store) ApplyFavorite(ctx context.Context, id string) (state.Favorite, error) {
	fav, ok := s.favorites.Get(id).Get()
	if !ok {
		return state.Favorite{}, errors.NotFoundError("favorite not found").WithContext("id", id).Build()
	}
	twilight := fav.Twilight
	if !twilight.Valid() {
		twilight = state.DefaultTwilight
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = Params{Coordinates: fav.Coordinates(), Twilight: twilight, TimeISO: strings.TrimSpace(fav.TimeISO)}
	s.adapter.SaveCoordinates(ctx, s.params.Coordinates)
	s.adapter.SaveTwilight(ctx, s.params.Twilight)
	s.adapter.SaveTimeISO(ctx, s.params.TimeISO)
	s.logger.Info("Applied favorite", logfields.FavoriteID(fav.ID))
	s.changedLocked(ctx)
	return fav, nil
}

// SaveCurrentView stores the committed tuple as a new favorite with a
// generated label.
func (s *Store) SaveCurrentView(ctx context.Context) (state.Favorite, error) {
	p := s.Params()
	if math.IsNaN(p.Coordinates.Lat) || math.IsNaN(p.Coordinates.Lon) {
		return state.Favorite{}, errors.ValidationError("current coordinates are not a number").Build()
	}
	return s.AddFavorite(ctx, state.FavoriteDraft{
		Name:     ViewLabel(p),
		Lat:      p.Coordinates.Lat,
		Lon:      p.Coordinates.Lon,
		Elev:     p.Coordinates.Elev,
		Twilight: p.Twilight,
		TimeISO:  p.TimeISO,
	})
}

// ViewLabel renders the default favorite name for p.
func ViewLabel(p Params) string {
	parts := []string{fmt.Sprintf("Lat %.2f, Lon %.2f", p.Coordinates.Lat, p.Coordinates.Lon)}
	if p.TimeISO != "" {
		parts = append(parts, formatTime(p.TimeISO))
	}
	parts = append(parts, string(p.Twilight)+" twilight")
	return strings.Join(parts, " • ")
}

func formatTime(raw string) string {
	if t, ok := ParseTimeISO(raw); ok {
		return t.Format("2006-01-02 15:04 MST")
	}
	return raw
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// ParseTimeISO parses the observation time forms accepted from users:
// RFC 3339 or a local date-time without zone, read as UTC.
func ParseTimeISO(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AddFavorite appends a favorite built from draft.
func (s *Store) AddFavorite(ctx context.Context, draft state.FavoriteDraft) (state.Favorite, error) {
	fav, err := s.favorites.Add(ctx, draft)
	if err != nil {
		return state.Favorite{}, err
	}
	s.notify(events.KindFavorites)
	return fav, nil
}

// RemoveFavorite deletes a favorite; unknown ids are a no-op.
func (s *Store) RemoveFavorite(ctx context.Context, id string) bool {
	removed := s.favorites.Remove(ctx, id)
	if removed {
		s.notify(events.KindFavorites)
	}
	return removed
}

func (s *Store) Favorite(id string) foundation.Option[state.Favorite] { return s.favorites.Get(id) }
func (s *Store) Favorites() []state.Favorite                          { return s.favorites.List() }

// MarkObserved records a constellation as seen.
func (s *Store) MarkObserved(ctx context.Context, id string) bool {
	changed := s.observed.Mark(ctx, id)
	if changed {
		s.notify(events.KindObserved)
	}
	return changed
}

// UnmarkObserved forgets a constellation.
func (s *Store) UnmarkObserved(ctx context.Context, id string) bool {
	changed := s.observed.Unmark(ctx, id)
	if changed {
		s.notify(events.KindObserved)
	}
	return changed
}

func (s *Store) IsObserved(id string) bool { return s.observed.Contains(id) }
func (s *Store) Observed() []string        { return s.observed.List() }

// Subscribe returns a channel of change notifications. Delivery never
// blocks the store; when the channel is full the oldest pending change
// is replaced.
func (s *Store) Subscribe(buffer int) (<-chan events.Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	return events.Subscribe[events.Change](s.bus, buffer)
}

// Bus exposes the notification bus for collaborators that publish their
// own events, such as the draft helper.
func (s *Store) Bus() *events.Bus { return s.bus }

// Wait blocks until the outstanding cycle settled or ctx is done.
func (s *Store) Wait(ctx context.Context) error { return s.coord.Wait(ctx) }

// Close abandons any outstanding cycle and waits for fetch goroutines.
func (s *Store) Close() {
	s.coord.Close()
	if s.ownsBus {
		s.bus.Close()
	}
}

// changedLocked issues the cycle for the new parameters and announces them
// under that cycle's generation.
func (s *Store) changedLocked(ctx context.Context) {
	gen := s.coord.Request(s.params.request())
	s.notifyGen(events.KindParams, gen)
	s.logger.DebugContext(ctx, "Session parameters changed", logfields.Generation(gen))
}

func (s *Store) notify(kind events.ChangeKind) {
	s.notifyGen(kind, s.coord.Result().Generation)
}

func (s *Store) notifyGen(kind events.ChangeKind, gen uint64) {
	s.bus.Offer(events.Change{Kind: kind, Generation: gen, At: s.clock.Now()})
}
