package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stargazer/internal/events"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/state"
	"git.home.luguber.info/inful/stargazer/internal/visibility"
)

type outcomeRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	issued   int
	outcomes map[metrics.OutcomeLabel]int
}

func (r *outcomeRecorder) IncFetchIssued() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
}

func (r *outcomeRecorder) IncFetchOutcome(o metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[metrics.OutcomeLabel]int{}
	}
	r.outcomes[o]++
}

func (r *outcomeRecorder) get(o metrics.OutcomeLabel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[o]
}

func request(lat float64) visibility.Request {
	return visibility.Request{Coordinates: state.Coordinates{Lat: lat, Lon: 10}, Twilight: state.TwilightAstronomical}
}

func TestCoordinatorLaterIssuedWinsRegardlessOfCompletionOrder(t *testing.T) {
	f := newScriptedFetcher(true)
	rec := &outcomeRecorder{}
	c := NewCoordinator(f, nil, nil, rec, nil)

	c.Request(request(1))
	first := f.next(t)
	c.Request(request(2))
	second := f.next(t)

	second.succeed("second")
	waitIdle(t, c)
	first.succeed("first")
	c.Close()

	r := c.Result()
	require.NotNil(t, r.Data)
	assert.Equal(t, "second", r.Data.WhenUTC)
	assert.False(t, r.Loading)
	assert.Empty(t, r.Error)
	assert.Equal(t, 2, rec.issued)
	assert.Equal(t, 1, rec.get(metrics.OutcomeSuperseded))
	assert.Equal(t, 1, rec.get(metrics.OutcomeSuccess))
}

func TestCoordinatorStaleFailureAfterLatestSuccessIsDiscarded(t *testing.T) {
	f := newScriptedFetcher(true)
	rec := &outcomeRecorder{}
	bus := events.NewBus()
	defer bus.Close()
	changes, unsubscribe := events.Subscribe[events.Change](bus, 16)
	defer unsubscribe()
	c := NewCoordinator(f, bus, nil, rec, nil)

	c.Request(request(1))
	first := f.next(t)
	c.Request(request(2))
	second := f.next(t)

	second.succeed("second")
	waitIdle(t, c)
	first.fail(errors.NetworkError("Visibility service unavailable").Build())
	c.Close()

	r := c.Result()
	require.NotNil(t, r.Data)
	assert.Equal(t, "second", r.Data.WhenUTC)
	assert.Empty(t, r.Error)
	assert.False(t, r.Loading)
	assert.Zero(t, rec.get(metrics.OutcomeFailure))
	assert.Equal(t, 1, rec.get(metrics.OutcomeSuccess))

	for {
		select {
		case ch := <-changes:
			assert.NotEqual(t, events.KindFetchFailed, ch.Kind)
		default:
			return
		}
	}
}

func TestCoordinatorCancelsSupersededRequest(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)
	defer c.Close()

	c.Request(request(1))
	first := f.next(t)
	c.Request(request(2))

	select {
	case <-first.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded request was not canceled")
	}

	r := c.Result()
	assert.True(t, r.Loading, "the replacement is still outstanding")
	assert.Empty(t, r.Error, "cancellation is not surfaced")

	f.next(t).succeed("second")
	waitIdle(t, c)
	assert.Equal(t, "second", c.Result().Data.WhenUTC)
}

func TestCoordinatorFailureKeepsPreviousData(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)
	defer c.Close()

	c.Request(request(1))
	f.next(t).succeed("good")
	waitIdle(t, c)

	c.Request(request(1))
	assert.True(t, c.Result().Loading)
	f.next(t).fail(errors.NetworkError("Could not reach visibility service").Build())
	waitIdle(t, c)

	r := c.Result()
	assert.False(t, r.Loading)
	assert.Equal(t, "Could not reach visibility service", r.Error)
	require.NotNil(t, r.Data)
	assert.Equal(t, "good", r.Data.WhenUTC)
}

func TestCoordinatorIssueClearsError(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)
	defer c.Close()

	c.Request(request(1))
	f.next(t).fail(errors.NetworkError("boom").Build())
	waitIdle(t, c)
	require.Equal(t, "boom", c.Result().Error)

	c.Request(request(1))
	assert.Empty(t, c.Result().Error)
	f.next(t).succeed("ok")
	waitIdle(t, c)
}

func TestCoordinatorUnclassifiedFailureMessage(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)
	defer c.Close()

	c.Request(request(1))
	f.next(t).fail(errors.NewError(errors.CategoryNetwork, "").Build())
	waitIdle(t, c)
	assert.Equal(t, errors.DefaultUserMessage, c.Result().Error)
}

func TestCoordinatorAbandon(t *testing.T) {
	f := newScriptedFetcher(false)
	rec := &outcomeRecorder{}
	bus := events.NewBus()
	defer bus.Close()
	changes, unsubscribe := events.Subscribe[events.Change](bus, 8)
	defer unsubscribe()

	c := NewCoordinator(f, bus, nil, rec, clockwork.NewFakeClock())
	defer c.Close()

	c.Request(request(1))
	p := f.next(t)
	c.Abandon()

	r := c.Result()
	assert.False(t, r.Loading)
	assert.Empty(t, r.Error)
	waitIdle(t, c)

	select {
	case <-p.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("abandoned request was not canceled")
	}
	assert.Equal(t, 1, rec.get(metrics.OutcomeAbandoned))

	var kinds []events.ChangeKind
	for len(kinds) < 2 {
		select {
		case ch := <-changes:
			kinds = append(kinds, ch.Kind)
		case <-time.After(time.Second):
			t.Fatal("missing change notification")
		}
	}
	assert.Equal(t, []events.ChangeKind{events.KindFetchStarted, events.KindFetchAbandoned}, kinds)

	c.Abandon() // nothing outstanding
	assert.Equal(t, 1, rec.get(metrics.OutcomeAbandoned))
}

func TestCoordinatorClosedRefusesRequests(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)

	c.Request(request(1))
	f.next(t)
	c.Close()

	gen := c.Result().Generation
	assert.Equal(t, gen, c.Request(request(2)))
	f.none(t)
	assert.False(t, c.Result().Loading)
}

func TestCoordinatorWaitHonorsContext(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)
	defer c.Close()

	c.Request(request(1))
	f.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
}

func TestCoordinatorSetError(t *testing.T) {
	c := NewCoordinator(newScriptedFetcher(false), nil, nil, nil, nil)
	defer c.Close()

	c.SetError("leave the form first")
	assert.Equal(t, "leave the form first", c.Result().Error)
	c.SetError("")
	assert.Empty(t, c.Result().Error)
}

func TestCoordinatorTimeoutIsAFailure(t *testing.T) {
	f := newScriptedFetcher(false)
	c := NewCoordinator(f, nil, nil, nil, nil)
	defer c.Close()

	c.Request(request(1))
	f.next(t).fail(errors.WrapError(context.DeadlineExceeded, errors.CategoryNetwork, "Visibility service timed out").Retryable().Build())
	waitIdle(t, c)
	assert.Equal(t, "Visibility service timed out", c.Result().Error)
}
