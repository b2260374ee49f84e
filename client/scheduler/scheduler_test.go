package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/envention-steve/union-ui-sub002/client/scheduler"
	"github.com/envention-steve/union-ui-sub002/client/store"
	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const now int64 = 1_700_000_000

func fixedNow() time.Time {
	return time.Unix(now, 0)
}

type scheduled struct {
	delay   time.Duration
	fn      func()
	stopped bool
	stops   int
}

func (s *scheduled) Stop() bool {
	s.stops++
	wasActive := !s.stopped
	s.stopped = true
	return wasActive
}

type fakeClock struct {
	lock    sync.Mutex
	entries []*scheduled
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) scheduler.Stopper {
	c.lock.Lock()
	defer c.lock.Unlock()
	e := &scheduled{delay: d, fn: fn}
	c.entries = append(c.entries, e)
	return e
}

func (c *fakeClock) pending(d time.Duration) []*scheduled {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []*scheduled
	for _, e := range c.entries {
		if !e.stopped && e.delay == d {
			out = append(out, e)
		}
	}
	return out
}

// pendingRefresh returns the live timers that are not the periodic check
func (c *fakeClock) pendingRefresh() []*scheduled {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []*scheduled
	for _, e := range c.entries {
		if !e.stopped && e.delay != scheduler.DefaultCheckInterval {
			out = append(out, e)
		}
	}
	return out
}

// fire runs a timer the way the runtime would: once, then it is spent
func (c *fakeClock) fire(e *scheduled) {
	c.lock.Lock()
	e.stopped = true
	c.lock.Unlock()
	e.fn()
}

type fakeSource struct {
	lock        sync.Mutex
	state       store.State
	subscribers map[int]func(store.State)
	nextID      int

	refreshCalls, checkCalls int
	refresh                  func(*fakeSource) error
	check                    func(*fakeSource) error
}

func newFakeSource() *fakeSource {
	return &fakeSource{subscribers: make(map[int]func(store.State))}
}

func (f *fakeSource) State() store.State {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.state
}

func (f *fakeSource) Subscribe(fn func(store.State)) func() {
	f.lock.Lock()
	defer f.lock.Unlock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	return func() {
		f.lock.Lock()
		defer f.lock.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeSource) subscriberCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.subscribers)
}

func (f *fakeSource) publish(st store.State) {
	f.lock.Lock()
	f.state = st
	subs := make([]func(store.State), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.lock.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (f *fakeSource) RefreshSession(context.Context) error {
	f.lock.Lock()
	f.refreshCalls++
	refresh := f.refresh
	f.lock.Unlock()
	if refresh == nil {
		return nil
	}
	return refresh(f)
}

func (f *fakeSource) CheckAuth(context.Context) error {
	f.lock.Lock()
	f.checkCalls++
	check := f.check
	f.lock.Unlock()
	if check == nil {
		return nil
	}
	return check(f)
}

func authenticated(expiresAt int64, soon bool) store.State {
	return store.State{
		User:            &users.User{ID: "u-1", Email: "admin@example.com"},
		IsAuthenticated: true,
		ExpiresAt:       expiresAt,
		IsExpiringSoon:  soon,
	}
}

func newScheduler(src *fakeSource, clock *fakeClock, opts ...scheduler.Option) *scheduler.Scheduler {
	opts = append([]scheduler.Option{
		scheduler.WithLogger(zerolog.Nop()),
		scheduler.WithAfterFunc(clock.AfterFunc),
		scheduler.WithNowFunc(fixedNow),
	}, opts...)
	return scheduler.New(src, opts...)
}

func TestRefreshDelay(t *testing.T) {
	tests := []struct {
		expiresAt int64
		want      time.Duration
	}{
		{now + 300, 180 * time.Second},
		{now + 121, time.Second},
		{now + 120, 0},
		{now + 60, 0},
		{now - 30, 0},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, scheduler.RefreshDelay(tc.expiresAt, fixedNow()), "expiresAt=now%+d", tc.expiresAt-now)
	}
}

func TestScheduler_ArmsRefreshForExpiringSoonSession(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+300, true)
	clock := &fakeClock{}
	s := newScheduler(src, clock)

	s.Start(context.Background())
	defer s.Stop()

	refresh := clock.pendingRefresh()
	require.Len(t, refresh, 1)
	require.Equal(t, 180*time.Second, refresh[0].delay)
	require.Len(t, clock.pending(scheduler.DefaultCheckInterval), 1)
}

func TestScheduler_NoRefreshTimerWhenNotNeeded(t *testing.T) {
	tests := []struct {
		name  string
		state store.State
	}{
		{"not expiring soon", authenticated(now+3600, false)},
		{"no expiry", authenticated(0, true)},
		{"not authenticated", store.State{ExpiresAt: now + 300, IsExpiringSoon: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := newFakeSource()
			src.state = tc.state
			clock := &fakeClock{}
			s := newScheduler(src, clock)
			s.Start(context.Background())
			defer s.Stop()

			require.Empty(t, clock.pendingRefresh())
		})
	}
}

func TestScheduler_RearmCancelsPreviousTimer(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+300, true)
	clock := &fakeClock{}
	s := newScheduler(src, clock)
	s.Start(context.Background())
	defer s.Stop()

	first := clock.pendingRefresh()[0]

	src.publish(authenticated(now+200, true))
	require.True(t, first.stopped)
	require.Equal(t, 1, first.stops)

	refresh := clock.pendingRefresh()
	require.Len(t, refresh, 1)
	require.Equal(t, 80*time.Second, refresh[0].delay)

	// an unchanged tuple leaves the live timer alone
	st := authenticated(now+200, true)
	st.IsLoading = true
	src.publish(st)
	require.Equal(t, []*scheduled{refresh[0]}, clock.pendingRefresh())

	// the stale callback no longer refreshes
	first.fn()
	require.Zero(t, src.refreshCalls)
}

func TestScheduler_FireRefreshes(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+300, true)
	src.refresh = func(f *fakeSource) error {
		f.publish(authenticated(now+3600, false))
		return nil
	}
	clock := &fakeClock{}
	expired := 0
	s := newScheduler(src, clock, scheduler.WithOnSessionExpired(func() { expired++ }))
	s.Start(context.Background())
	defer s.Stop()

	clock.fire(clock.pendingRefresh()[0])

	require.Equal(t, 1, src.refreshCalls)
	require.Zero(t, expired)
	require.Empty(t, clock.pendingRefresh())
	require.Len(t, clock.pending(scheduler.DefaultCheckInterval), 1)
}

func TestScheduler_RejectedRefreshRunsHook(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+60, true)
	src.refresh = func(f *fakeSource) error {
		f.publish(store.State{})
		return errors.New("session expired")
	}
	clock := &fakeClock{}
	expired := 0
	s := newScheduler(src, clock, scheduler.WithOnSessionExpired(func() { expired++ }))
	s.Start(context.Background())
	defer s.Stop()

	refresh := clock.pendingRefresh()
	require.Len(t, refresh, 1)
	require.Zero(t, refresh[0].delay)

	clock.fire(refresh[0])

	require.Equal(t, 1, src.refreshCalls)
	require.Equal(t, 1, expired)
	require.Empty(t, clock.pendingRefresh())
	require.Empty(t, clock.pending(scheduler.DefaultCheckInterval))
}

func TestScheduler_PeriodicCheck(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+3600, false)
	clock := &fakeClock{}
	s := newScheduler(src, clock)
	s.Start(context.Background())
	defer s.Stop()

	checks := clock.pending(scheduler.DefaultCheckInterval)
	require.Len(t, checks, 1)

	clock.fire(checks[0])
	require.Equal(t, 1, src.checkCalls)

	next := clock.pending(scheduler.DefaultCheckInterval)
	require.Len(t, next, 1)
	require.NotSame(t, checks[0], next[0])

	// the server invalidated the session
	src.check = func(f *fakeSource) error {
		f.publish(store.State{})
		return store.ErrNotAuthenticated
	}
	clock.fire(next[0])
	require.Equal(t, 2, src.checkCalls)
	require.Empty(t, clock.pending(scheduler.DefaultCheckInterval))
}

func TestScheduler_CheckStopsWhenAuthLost(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+3600, false)
	clock := &fakeClock{}
	s := newScheduler(src, clock)
	s.Start(context.Background())
	defer s.Stop()

	check := clock.pending(scheduler.DefaultCheckInterval)[0]
	src.publish(store.State{})

	require.True(t, check.stopped)
	check.fn()
	require.Zero(t, src.checkCalls)

	src.publish(authenticated(now+3600, false))
	require.Len(t, clock.pending(scheduler.DefaultCheckInterval), 1)
}

func TestScheduler_StopCancelsEverything(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+300, true)
	clock := &fakeClock{}
	s := newScheduler(src, clock)
	s.Start(context.Background())
	require.Equal(t, 1, src.subscriberCount())

	refresh := clock.pendingRefresh()[0]
	check := clock.pending(scheduler.DefaultCheckInterval)[0]

	s.Stop()
	s.Stop()

	require.True(t, refresh.stopped)
	require.True(t, check.stopped)
	require.Zero(t, src.subscriberCount())

	refresh.fn()
	check.fn()
	require.Zero(t, src.refreshCalls)
	require.Zero(t, src.checkCalls)
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(now+300, true)
	clock := &fakeClock{}
	s := newScheduler(src, clock)
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	require.Equal(t, 1, src.subscriberCount())
	require.Len(t, clock.pendingRefresh(), 1)
}

func TestScheduler_RealTimer(t *testing.T) {
	src := newFakeSource()
	src.state = authenticated(time.Now().Unix()+60, true)
	var refreshed atomic.Int32
	src.refresh = func(*fakeSource) error {
		refreshed.Add(1)
		return nil
	}
	s := scheduler.New(src, scheduler.WithLogger(zerolog.Nop()))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return refreshed.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestTimer_Cancel(t *testing.T) {
	var zero scheduler.Timer
	zero.Cancel()
	require.False(t, zero.Armed())
}
