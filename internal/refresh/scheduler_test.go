package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu        sync.Mutex
	timeISO   string
	refetches int
	checked   chan struct{}
}

func newFakeTarget() *fakeTarget { return &fakeTarget{checked: make(chan struct{}, 8)} }

func (f *fakeTarget) Refetch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refetches++
	return uint64(f.refetches)
}

func (f *fakeTarget) TimeISO() string {
	f.mu.Lock()
	t := f.timeISO
	f.mu.Unlock()
	f.checked <- struct{}{}
	return t
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refetches
}

func startScheduler(t *testing.T, target Target, interval time.Duration) (*Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s, err := NewScheduler(target, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, s.SetInterval(interval))
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	return s, clock
}

func waitChecked(t *testing.T, f *fakeTarget) {
	t.Helper()
	select {
	case <-f.checked:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled tick did not run")
	}
}

func TestSchedulerRefetchesWhileTimeIsNow(t *testing.T) {
	target := newFakeTarget()
	_, clock := startScheduler(t, target, 10*time.Minute)

	clock.Advance(10 * time.Minute)
	waitChecked(t, target)
	assert.Eventually(t, func() bool { return target.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerSkipsFixedTime(t *testing.T) {
	target := newFakeTarget()
	target.timeISO = "2025-08-12T03:00"
	_, clock := startScheduler(t, target, time.Minute)

	clock.Advance(time.Minute)
	waitChecked(t, target)
	assert.Zero(t, target.count())
}

func TestSchedulerSetInterval(t *testing.T) {
	s, err := NewScheduler(newFakeTarget(), WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	defer func() { _ = s.Stop() }()

	require.NoError(t, s.SetInterval(0))
	assert.Zero(t, s.Interval())
	assert.Empty(t, s.scheduler.Jobs())

	require.NoError(t, s.SetInterval(5*time.Minute))
	require.Len(t, s.scheduler.Jobs(), 1)
	first := s.scheduler.Jobs()[0].ID()

	require.NoError(t, s.SetInterval(5*time.Minute))
	require.NoError(t, s.SetInterval(time.Minute))
	assert.Equal(t, time.Minute, s.Interval())
	require.Len(t, s.scheduler.Jobs(), 1)
	assert.Equal(t, first, s.scheduler.Jobs()[0].ID(), "rescheduling keeps the job")

	require.NoError(t, s.SetInterval(-time.Second))
	assert.Zero(t, s.Interval())
	assert.Empty(t, s.scheduler.Jobs())
}
