package tokencache_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/envention-steve/union-ui-sub002/client"
	"github.com/envention-steve/union-ui-sub002/client/tokencache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	lock       sync.Mutex
	me         client.SessionResponse
	meErr      error
	token      client.TokenResponse
	tokenErr   error
	refresh    client.SessionResponse
	refreshErr error

	meCalls, tokenCalls, refreshCalls int
}

func (f *fakeAPI) Me(context.Context) (client.SessionResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.meCalls++
	return f.me, f.meErr
}

func (f *fakeAPI) Token(context.Context) (client.TokenResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tokenCalls++
	return f.token, f.tokenErr
}

func (f *fakeAPI) Refresh(context.Context) (client.SessionResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refreshCalls++
	return f.refresh, f.refreshErr
}

func newCache(api *fakeAPI) (*tokencache.Cache, *bytes.Buffer) {
	var logs bytes.Buffer
	return tokencache.New(api, tokencache.WithLogger(zerolog.New(&logs))), &logs
}

func TestCache_Accessors(t *testing.T) {
	cache, _ := newCache(&fakeAPI{})
	require.Empty(t, cache.CachedToken())

	cache.SetToken("a")
	cache.SetToken("b")
	require.Equal(t, "b", cache.CachedToken())

	cache.ClearToken()
	require.Empty(t, cache.CachedToken())
}

func TestCache_CurrentToken(t *testing.T) {
	ctx := context.Background()

	t.Run("recognised session", func(t *testing.T) {
		api := &fakeAPI{
			me:    client.SessionResponse{Success: true},
			token: client.TokenResponse{AccessToken: "access-1"},
		}
		cache, _ := newCache(api)
		require.Equal(t, "access-1", cache.CurrentToken(ctx))
		require.Equal(t, "access-1", cache.CachedToken())
	})

	t.Run("no session skips the token fetch", func(t *testing.T) {
		api := &fakeAPI{me: client.SessionResponse{Success: false}}
		cache, _ := newCache(api)
		require.Empty(t, cache.CurrentToken(ctx))
		require.Zero(t, api.tokenCalls)
	})

	t.Run("who am i failure skips the token fetch", func(t *testing.T) {
		api := &fakeAPI{meErr: errors.New("connection refused")}
		cache, logs := newCache(api)
		require.Empty(t, cache.CurrentToken(ctx))
		require.Zero(t, api.tokenCalls)
		require.Contains(t, logs.String(), `"level":"warn"`)
	})

	t.Run("token fetch failure", func(t *testing.T) {
		api := &fakeAPI{
			me:       client.SessionResponse{Success: true},
			tokenErr: &client.StatusError{StatusCode: 401},
		}
		cache, logs := newCache(api)
		require.Empty(t, cache.CurrentToken(ctx))
		require.Contains(t, logs.String(), "Failed to fetch access token")
	})

	t.Run("calls are not coalesced", func(t *testing.T) {
		api := &fakeAPI{
			me:    client.SessionResponse{Success: true},
			token: client.TokenResponse{AccessToken: "access-1"},
		}
		cache, _ := newCache(api)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cache.CurrentToken(ctx)
			}()
		}
		wg.Wait()
		require.Equal(t, 5, api.meCalls)
		require.Equal(t, 5, api.tokenCalls)
	})
}

func TestCache_RefreshTokenIfNeeded(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeAPI{
			refresh: client.SessionResponse{Success: true},
			token:   client.TokenResponse{AccessToken: "access-2"},
		}
		cache, _ := newCache(api)
		cache.SetToken("access-1")
		require.Equal(t, "access-2", cache.RefreshTokenIfNeeded(ctx))
		require.Equal(t, "access-2", cache.CachedToken())
	})

	t.Run("refresh failure clears the cache", func(t *testing.T) {
		api := &fakeAPI{refreshErr: &client.StatusError{StatusCode: 401}}
		cache, logs := newCache(api)
		cache.SetToken("stale")
		require.Empty(t, cache.RefreshTokenIfNeeded(ctx))
		require.Empty(t, cache.CachedToken())
		require.Zero(t, api.tokenCalls)
		require.Contains(t, logs.String(), `"level":"warn"`)
	})

	t.Run("token fetch failure after refresh clears the cache", func(t *testing.T) {
		api := &fakeAPI{
			refresh:  client.SessionResponse{Success: true},
			tokenErr: errors.New("timeout"),
		}
		cache, _ := newCache(api)
		cache.SetToken("stale")
		require.Empty(t, cache.RefreshTokenIfNeeded(ctx))
		require.Empty(t, cache.CachedToken())
	})
}
