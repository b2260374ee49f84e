package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/envention-steve/union-ui-sub002/client/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// RefreshLead is how long before expiry the proactive refresh runs
	RefreshLead = 120 * time.Second
	// DefaultCheckInterval is the period of the background session check
	DefaultCheckInterval = 5 * time.Minute
)

// SessionSource is the session store as seen by the scheduler
type SessionSource interface {
	State() store.State
	Subscribe(fn func(store.State)) func()
	RefreshSession(ctx context.Context) error
	CheckAuth(ctx context.Context) error
}

type dependencies struct {
	authenticated bool
	expiresAt     int64
	expiringSoon  bool
}

// Scheduler keeps a session alive. While the session is authenticated and
// expiring soon it holds exactly one refresh timer, armed RefreshLead before
// expiry; while authenticated it also runs a periodic CheckAuth.
type Scheduler struct {
	source        SessionSource
	logger        zerolog.Logger
	afterFunc     AfterFunc
	nowFunc       func() time.Time
	checkInterval time.Duration
	onExpired     func()

	lock         sync.Mutex
	ctx          context.Context
	running      bool
	deps         dependencies
	haveDeps     bool
	refreshTimer Timer
	refreshGen   uint64
	checkTimer   Timer
	checkGen     uint64
	checking     bool
	unsubscribe  func()
}

type Option func(*Scheduler)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithAfterFunc(afterFunc AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = afterFunc
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

// WithCheckInterval overrides DefaultCheckInterval
func WithCheckInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.checkInterval = interval
	}
}

// WithOnSessionExpired sets the hook run when a scheduled refresh is rejected
func WithOnSessionExpired(fn func()) Option {
	return func(s *Scheduler) {
		s.onExpired = fn
	}
}

func New(source SessionSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:        source,
		logger:        log.Logger,
		afterFunc:     realAfterFunc,
		nowFunc:       time.Now,
		checkInterval: DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onExpired == nil {
		s.onExpired = func() {
			s.logger.Warn().Msg("Session expired, login required")
		}
	}
	return s
}

// RefreshDelay is the wait before refreshing a session expiring at expiresAt
func RefreshDelay(expiresAt int64, now time.Time) time.Duration {
	delay := expiresAt - now.Unix() - int64(RefreshLead/time.Second)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay) * time.Second
}

// Start subscribes to the source and evaluates its current state. ctx is
// passed to every call the scheduler makes.
func (s *Scheduler) Start(ctx context.Context) {
	s.lock.Lock()
	if s.running {
		s.lock.Unlock()
		return
	}
	s.running = true
	s.ctx = ctx
	s.haveDeps = false
	s.lock.Unlock()

	unsubscribe := s.source.Subscribe(s.observe)

	s.lock.Lock()
	if !s.running {
		s.lock.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.lock.Unlock()

	s.observe(s.source.State())
}

// Stop cancels the refresh timer and the periodic check unconditionally
func (s *Scheduler) Stop() {
	s.lock.Lock()
	s.running = false
	s.cancelRefreshLocked()
	s.stopCheckLocked()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.lock.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Scheduler) observe(st store.State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.running {
		return
	}

	deps := dependencies{
		authenticated: st.IsAuthenticated,
		expiresAt:     st.ExpiresAt,
		expiringSoon:  st.IsExpiringSoon,
	}
	if !s.haveDeps || deps != s.deps {
		s.deps = deps
		s.haveDeps = true
		s.armRefreshLocked()
	}

	switch {
	case st.IsAuthenticated && !s.checking:
		s.startCheckLocked()
	case !st.IsAuthenticated && s.checking:
		s.stopCheckLocked()
	}
}

func (s *Scheduler) cancelRefreshLocked() {
	s.refreshTimer.Cancel()
	s.refreshTimer = Timer{}
	s.refreshGen++
}

func (s *Scheduler) armRefreshLocked() {
	s.cancelRefreshLocked()
	if !s.deps.authenticated || !s.deps.expiringSoon || s.deps.expiresAt <= 0 {
		return
	}

	delay := RefreshDelay(s.deps.expiresAt, s.nowFunc())
	gen := s.refreshGen
	s.refreshTimer = newTimer(s.afterFunc(delay, func() {
		s.fireRefresh(gen)
	}))
	s.logger.Debug().Dur("delay", delay).Int64("expires_at", s.deps.expiresAt).Msg("Session refresh scheduled")
}

func (s *Scheduler) fireRefresh(gen uint64) {
	s.lock.Lock()
	if !s.running || gen != s.refreshGen {
		s.lock.Unlock()
		return
	}
	s.refreshTimer = Timer{}
	ctx := s.ctx
	s.lock.Unlock()

	if err := s.source.RefreshSession(ctx); err != nil {
		s.logger.Info().Err(err).Msg("Scheduled session refresh rejected")
		s.lock.Lock()
		running := s.running
		s.lock.Unlock()
		if running {
			s.onExpired()
		}
	}
}

func (s *Scheduler) startCheckLocked() {
	s.checking = true
	s.armCheckLocked()
}

func (s *Scheduler) armCheckLocked() {
	s.checkGen++
	gen := s.checkGen
	s.checkTimer = newTimer(s.afterFunc(s.checkInterval, func() {
		s.fireCheck(gen)
	}))
}

func (s *Scheduler) stopCheckLocked() {
	s.checking = false
	s.checkTimer.Cancel()
	s.checkTimer = Timer{}
	s.checkGen++
}

func (s *Scheduler) fireCheck(gen uint64) {
	s.lock.Lock()
	if !s.running || !s.checking || gen != s.checkGen {
		s.lock.Unlock()
		return
	}
	ctx := s.ctx
	s.lock.Unlock()

	if err := s.source.CheckAuth(ctx); err != nil {
		s.logger.Info().Err(err).Msg("Periodic session check failed")
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.running && s.checking && gen == s.checkGen {
		s.armCheckLocked()
	}
}
