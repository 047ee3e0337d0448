package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/visibility"
)

type reply struct {
	resp *visibility.Response
	err  error
}

// pendingFetch is one in-flight call held by scriptedFetcher until the
// test answers it.
type pendingFetch struct {
	ctx   context.Context
	req   visibility.Request
	reply chan reply
}

func (p *pendingFetch) succeed(label string) {
	p.reply <- reply{resp: &visibility.Response{WhenUTC: label, VisiblePlanets: []visibility.Planet{}}}
}

func (p *pendingFetch) fail(err error) { p.reply <- reply{err: err} }

// scriptedFetcher hands every call to the test. With ignoreCancel the call
// only returns once answered, which simulates a stale completion arriving
// after its cycle was superseded.
type scriptedFetcher struct {
	ignoreCancel bool
	calls        chan *pendingFetch

	mu    sync.Mutex
	count int
}

func newScriptedFetcher(ignoreCancel bool) *scriptedFetcher {
	return &scriptedFetcher{ignoreCancel: ignoreCancel, calls: make(chan *pendingFetch, 32)}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req visibility.Request) (*visibility.Response, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()

	p := &pendingFetch{ctx: ctx, req: req, reply: make(chan reply, 1)}
	f.calls <- p
	if f.ignoreCancel {
		r := <-p.reply
		return r.resp, r.err
	}
	select {
	case r := <-p.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, errors.WrapError(ctx.Err(), errors.CategoryCanceled, "request canceled").Build()
	}
}

func (f *scriptedFetcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *scriptedFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch call arrived")
		return nil
	}
}

func (f *scriptedFetcher) none(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected fetch call for %+v", p.req)
	case <-time.After(30 * time.Millisecond):
	}
}

func waitIdle(t *testing.T, w interface{ Wait(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}
