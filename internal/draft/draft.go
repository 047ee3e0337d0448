// Package draft holds a tentative map position for a presentation
// collaborator until the user applies it to the session.
package draft

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/foundation"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

// Target is the committed side of a draft.
type Target interface {
	Coordinates() state.Coordinates
	SetCoordinates(ctx context.Context, c state.Coordinates) error
}

// State is what a map view renders: where the pin is and whether the
// apply action is enabled.
type State struct {
	Committed state.Coordinates `json:"committed"`
	Proposed  state.Coordinates `json:"proposed"`
	Pending   bool              `json:"pending"`
}

// Draft tracks one proposed position. A proposal made against an older
// committed value is dropped once the committed coordinates change.
type Draft struct {
	target Target
	bus    *events.Bus
	clock  clockwork.Clock

	mu       sync.Mutex
	base     state.Coordinates
	proposed foundation.Option[state.Coordinates]
}

// Option configures a Draft.
type Option func(*Draft)

// WithClock sets the clock that timestamps draft notifications.
func WithClock(clock clockwork.Clock) Option {
	return func(d *Draft) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// New creates an empty draft over target. bus may be nil.
func New(target Target, bus *events.Bus, opts ...Option) *Draft {
	d := &Draft{
		target:   target,
		bus:      bus,
		clock:    clockwork.NewRealClock(),
		proposed: foundation.None[state.Coordinates](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CenterChanged records the position the map was moved to.
func (d *Draft) CenterChanged(c state.Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.base = d.target.Coordinates()
	d.proposed = foundation.Some(c)
	d.mu.Unlock()
	d.notify()
	return nil
}

// State returns the committed and proposed positions.
func (d *Draft) State() State {
	committed := d.target.Coordinates()
	d.mu.Lock()
	defer d.mu.Unlock()
	proposed := committed
	if p, ok := d.proposed.Get(); ok && d.base == committed {
		proposed = p
	}
	return State{Committed: committed, Proposed: proposed, Pending: differs(proposed, committed)}
}

// HasPendingChange reports whether the proposal differs from the
// committed coordinates in lat, lon or elev.
func (d *Draft) HasPendingChange() bool { return d.State().Pending }

// Apply commits a pending proposal. The target issues its own fetch cycle;
// nothing happens when there is no pending change.
func (d *Draft) Apply(ctx context.Context) (bool, error) {
	st := d.State()
	if !st.Pending {
		return false, nil
	}
	if err := d.target.SetCoordinates(ctx, st.Proposed); err != nil {
		return false, err
	}
	d.Reset()
	return true, nil
}

// Reset drops the proposal.
func (d *Draft) Reset() {
	d.mu.Lock()
	d.proposed = foundation.None[state.Coordinates]()
	d.mu.Unlock()
	d.notify()
}

func differs(a, b state.Coordinates) bool {
	return a.Lat != b.Lat || a.Lon != b.Lon || a.Elev != b.Elev
}

func (d *Draft) notify() {
	if d.bus == nil {
		return
	}
	d.bus.Offer(events.Change{Kind: events.KindDraft, At: d.clock.Now()})
}
