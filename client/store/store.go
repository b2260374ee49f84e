package store

import (
	"context"
	"sync"
	"time"

	"github.com/envention-steve/union-ui-sub002/client"
	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotAuthenticated is returned when the server does not recognise the session
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrLoginFailed is returned when the login could not be completed
	ErrLoginFailed = errors.New("login failed")
)

const (
	msgLoginFailed      = "Login failed"
	msgLoginUnavailable = "Unable to reach the server, please try again"
)

// API is the part of the session client the store depends on
type API interface {
	Login(ctx context.Context, email, password string) (client.SessionResponse, error)
	Logout(ctx context.Context) (client.SessionResponse, error)
	Me(ctx context.Context) (client.SessionResponse, error)
	Refresh(ctx context.Context) (client.SessionResponse, error)
}

// TokenCache is populated after every successful session operation
type TokenCache interface {
	CurrentToken(ctx context.Context) string
	ClearToken()
}

// State is a snapshot of the client's view of the session
type State struct {
	User            *users.User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
	ExpiresAt       int64 // epoch seconds
	IsExpiringSoon  bool
}

// Store is the client side session state machine. Each operation publishes a
// new State to subscribers once its network call completes; the last call to
// complete wins. After Close every further state change is discarded.
type Store struct {
	api     API
	tokens  TokenCache
	logger  zerolog.Logger
	nowFunc func() time.Time

	lock        sync.Mutex
	state       State
	closed      bool
	subscribers map[int]func(State)
	nextID      int
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func New(api API, tokens TokenCache, opts ...Option) *Store {
	s := &Store{
		api:         api,
		tokens:      tokens,
		logger:      log.Logger,
		nowFunc:     time.Now,
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot
func (s *Store) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return copyState(s.state)
}

// Subscribe registers fn for every new snapshot and returns its cancel func.
// fn is called outside the store's lock and may call back into the store.
// Overlapping operations can deliver an older snapshot after a newer one; the
// final snapshot of each operation is always delivered.
func (s *Store) Subscribe(fn func(State)) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			defer s.lock.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Close discards the results of calls still in flight and drops all subscribers
func (s *Store) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	s.subscribers = make(map[int]func(State))
}

func (s *Store) update(mutate func(*State)) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	mutate(&s.state)
	snapshot := copyState(s.state)
	subscribers := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.lock.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func (s *Store) setLoading(loading bool) {
	s.update(func(st *State) {
		st.IsLoading = loading
	})
}

// applySession records an authenticated server answer
func (s *Store) applySession(resp client.SessionResponse) {
	s.update(func(st *State) {
		st.User = copyUser(resp.User)
		st.IsAuthenticated = true
		st.Error = ""
		st.ExpiresAt = resp.ExpiresAt
		st.IsExpiringSoon = resp.IsExpiringSoon
	})
}

func (s *Store) clearAuth(errMsg string) {
	s.update(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.Error = errMsg
		st.ExpiresAt = 0
		st.IsExpiringSoon = false
	})
}

// populateTokenCache is best effort: a missing token never fails the operation
func (s *Store) populateTokenCache(ctx context.Context) {
	if s.tokens == nil {
		return
	}
	if token := s.tokens.CurrentToken(ctx); token == "" {
		s.logger.Warn().Msg("Access token cache could not be populated")
	}
}

func (s *Store) clearTokenCache() {
	if s.tokens != nil {
		s.tokens.ClearToken()
	}
}

// Login authenticates and, on failure, records a user facing error string
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})
	defer s.setLoading(false)

	resp, err := s.api.Login(ctx, email, password)
	if err != nil || !resp.Success || resp.User == nil {
		msg := loginErrorMessage(resp, err)
		s.logger.Info().Err(err).Str("reason", msg).Msg("Login failed")
		s.clearAuth(msg)
		if err == nil {
			err = ErrLoginFailed
		}
		return errors.Wrap(err, msg)
	}

	s.applySession(resp)
	s.populateTokenCache(ctx)
	return nil
}

func loginErrorMessage(resp client.SessionResponse, err error) string {
	var statusErr *client.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Message != "":
		return statusErr.Message
	case err == nil && resp.Error != "":
		return resp.Error
	case err != nil && statusErr == nil:
		return msgLoginUnavailable
	default:
		return msgLoginFailed
	}
}

// Logout always succeeds locally; a failed remote logout is only logged
func (s *Store) Logout(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	if resp, err := s.api.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Remote logout failed")
	} else if resp.Error != "" {
		s.logger.Warn().Str("reason", resp.Error).Msg("Remote logout incomplete")
	}
	s.clearAuth("")
	s.clearTokenCache()
}

// CheckAuth asks the server who the session belongs to
func (s *Store) CheckAuth(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.api.Me(ctx)
	if err != nil || !resp.Success || resp.User == nil {
		s.clearAuth("")
		if err != nil {
			return errors.Wrap(err, "session check failed")
		}
		return ErrNotAuthenticated
	}

	s.applySession(resp)
	s.populateTokenCache(ctx)
	return nil
}

// RefreshSession exchanges the refresh token for a new session
func (s *Store) RefreshSession(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	resp, ok, err := s.refresh(ctx)
	if !ok {
		s.clearAuth("")
		if err != nil {
			return errors.Wrap(err, "session refresh failed")
		}
		return ErrNotAuthenticated
	}

	s.applySession(resp)
	s.populateTokenCache(ctx)
	return nil
}

// refresh calls the refresh endpoint without touching state
func (s *Store) refresh(ctx context.Context) (client.SessionResponse, bool, error) {
	resp, err := s.api.Refresh(ctx)
	if err != nil {
		s.logger.Info().Err(err).Msg("Session refresh failed")
		return resp, false, err
	}
	if !resp.Success || resp.User == nil {
		return resp, false, nil
	}
	return resp, true, nil
}

func copyState(st State) State {
	st.User = copyUser(st.User)
	return st
}

func copyUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	if u.Attributes != nil {
		c.Attributes = make(map[string]any, len(u.Attributes))
		for k, v := range u.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
