package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

type fakeTarget struct {
	mu    sync.Mutex
	c     state.Coordinates
	calls int
}

func (f *fakeTarget) Coordinates() state.Coordinates {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.c
}

func (f *fakeTarget) SetCoordinates(_ context.Context, c state.Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c = c
	f.calls++
	return nil
}

func TestDraftStartsWithoutPendingChange(t *testing.T) {
	target := &fakeTarget{c: state.DefaultCoordinates()}
	d := New(target, nil)

	st := d.State()
	assert.False(t, st.Pending)
	assert.Equal(t, target.c, st.Proposed)
}

func TestDraftPendingComparesLatLonElev(t *testing.T) {
	base := state.Coordinates{Lat: 10, Lon: 20, Elev: 0}
	tests := []struct {
		name    string
		next    state.Coordinates
		pending bool
	}{
		{"same", base, false},
		{"lat", state.Coordinates{Lat: 10.5, Lon: 20}, true},
		{"lon", state.Coordinates{Lat: 10, Lon: 21}, true},
		{"elev", state.Coordinates{Lat: 10, Lon: 20, Elev: 300}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeTarget{c: base}, nil)
			require.NoError(t, d.CenterChanged(tt.next))
			assert.Equal(t, tt.pending, d.HasPendingChange())
		})
	}
}

func TestDraftApplyCommitsOnce(t *testing.T) {
	target := &fakeTarget{c: state.DefaultCoordinates()}
	d := New(target, nil)
	next := state.Coordinates{Lat: 40, Lon: -3}

	require.NoError(t, d.CenterChanged(next))
	applied, err := d.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, next, target.c)
	assert.False(t, d.HasPendingChange())

	applied, err = d.Apply(context.Background())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, target.calls)
}

func TestDraftRejectsInvalidCenter(t *testing.T) {
	d := New(&fakeTarget{}, nil)
	require.Error(t, d.CenterChanged(state.Coordinates{Lat: 100}))
	assert.False(t, d.HasPendingChange())
}

func TestDraftFollowsExternalCommit(t *testing.T) {
	target := &fakeTarget{c: state.Coordinates{Lat: 1, Lon: 1}}
	d := New(target, nil)
	require.NoError(t, d.CenterChanged(state.Coordinates{Lat: 2, Lon: 2}))

	// A favorite or geolocation flow commits a different position.
	require.NoError(t, target.SetCoordinates(context.Background(), state.Coordinates{Lat: 5, Lon: 5}))

	st := d.State()
	assert.False(t, st.Pending)
	assert.Equal(t, state.Coordinates{Lat: 5, Lon: 5}, st.Proposed)
}

func TestDraftResetAndNotify(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	changes, unsubscribe := events.Subscribe[events.Change](bus, 4)
	defer unsubscribe()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC))
	d := New(&fakeTarget{}, bus, WithClock(clock))
	require.NoError(t, d.CenterChanged(state.Coordinates{Lat: 3}))
	clock.Advance(time.Minute)
	d.Reset()

	assert.False(t, d.HasPendingChange())
	moved := <-changes
	reset := <-changes
	assert.Equal(t, events.KindDraft, moved.Kind)
	assert.Equal(t, events.KindDraft, reset.Kind)
	assert.True(t, moved.At.Equal(time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)), "stamped with the injected clock, got %s", moved.At)
	assert.Equal(t, time.Minute, reset.At.Sub(moved.At))
}
