package tokencache

import (
	"context"
	"sync"

	"github.com/envention-steve/union-ui-sub002/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionAPI is the part of the session client the cache depends on
type SessionAPI interface {
	Me(ctx context.Context) (client.SessionResponse, error)
	Token(ctx context.Context) (client.TokenResponse, error)
	Refresh(ctx context.Context) (client.SessionResponse, error)
}

// Cache holds the current access token for callers that need a bare bearer
// token. It never returns errors: every failure is logged and reported as
// the empty token. Concurrent calls are not coalesced, each one goes to the
// network.
type Cache struct {
	api    SessionAPI
	logger zerolog.Logger

	lock  sync.RWMutex
	token string
}

type Option func(*Cache)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func New(api SessionAPI, opts ...Option) *Cache {
	c := &Cache{
		api:    api,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the cached token; "" empties the slot
func (c *Cache) SetToken(token string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.token = token
}

func (c *Cache) CachedToken() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.token
}

func (c *Cache) ClearToken() {
	c.SetToken("")
}

// CurrentToken confirms the session is still recognised and then fetches its
// access token. Without a recognised session no token fetch is attempted.
func (c *Cache) CurrentToken(ctx context.Context) string {
	me, err := c.api.Me(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Session check failed, no access token available")
		return ""
	}
	if !me.Success {
		c.logger.Debug().Str("reason", me.Error).Msg("No session, no access token available")
		return ""
	}
	return c.fetch(ctx)
}

// RefreshTokenIfNeeded refreshes the session and returns the new access
// token. Any failure empties the cache.
func (c *Cache) RefreshTokenIfNeeded(ctx context.Context) string {
	resp, err := c.api.Refresh(ctx)
	if err != nil || !resp.Success {
		c.ClearToken()
		c.logger.Warn().Err(err).Str("reason", resp.Error).Msg("Session refresh failed, access token cleared")
		return ""
	}
	token := c.fetch(ctx)
	if token == "" {
		c.ClearToken()
	}
	return token
}

func (c *Cache) fetch(ctx context.Context) string {
	resp, err := c.api.Token(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch access token")
		return ""
	}
	if resp.AccessToken == "" {
		c.logger.Warn().Msg("Token response did not contain an access token")
		return ""
	}
	c.SetToken(resp.AccessToken)
	return resp.AccessToken
}
