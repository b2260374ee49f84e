package oidcidp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	oidcidp "github.com/envention-steve/union-ui-sub002/idp/oidc"
	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/stretchr/testify/require"
)

type fakeIdP struct {
	server       *httptest.Server
	revocations  atomic.Int32
	userinfoCode int
	rotate       bool
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	f := &fakeIdP{userinfoCode: http.StatusOK, rotate: true}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                 f.server.URL,
			"authorization_endpoint": f.server.URL + "/authorize",
			"token_endpoint":         f.server.URL + "/token",
			"userinfo_endpoint":      f.server.URL + "/userinfo",
			"jwks_uri":               f.server.URL + "/jwks",
			"revocation_endpoint":    f.server.URL + "/revoke",
		})
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("username") != "alice@example.com" || r.PostForm.Get("password") != "s3cret" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    300,
			})
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "refresh-1" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
				return
			}
			body := map[string]any{"access_token": "access-2", "token_type": "Bearer", "expires_in": 300}
			if f.rotate {
				body["refresh_token"] = "refresh-2"
			}
			writeJSON(w, http.StatusOK, body)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
		}
	})

	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if f.userinfoCode != http.StatusOK {
			w.WriteHeader(f.userinfoCode)
			return
		}
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sub":      "user-1",
			"email":    "alice@example.com",
			"name":     "Alice",
			"roles":    []string{"admin"},
			"local_no": "401",
		})
	})

	mux.HandleFunc("POST /revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("token_type_hint"))
		f.revocations.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type testConfig struct {
	issuer string
}

func (c testConfig) GetIdPIssuerURL() string                { return c.issuer }
func (c testConfig) GetIdPClientID() string                 { return "union-admin" }
func (c testConfig) GetIdPClientSecret() string             { return "secret" }
func (c testConfig) GetIdPScopes() []string                 { return []string{"openid", "email"} }
func (c testConfig) GetIdPTimeout() time.Duration           { return 2 * time.Second }
func (c testConfig) GetLocalUsers() string                  { return "" }
func (c testConfig) GetLocalAccessTokenTTL() time.Duration  { return time.Minute }
func (c testConfig) GetLocalRefreshTokenTTL() time.Duration { return time.Hour }

func TestProvider_AuthenticateAndValidate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeIdP(t)
	provider := oidcidp.New(testConfig{issuer: fake.server.URL})

	bundle, err := provider.Authenticate(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "access-1", bundle.AccessToken)
	require.Equal(t, "refresh-1", bundle.RefreshToken)
	require.InDelta(t, 300, bundle.ExpiresIn, 2)

	user, err := provider.ValidateToken(ctx, bundle.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "Alice", user.Name)
	require.Equal(t, []string{"admin"}, user.Roles)
	require.Equal(t, "401", user.Attributes["local_no"])
}

func TestProvider_ErrorClassification(t *testing.T) {
	ctx := context.Background()
	fake := newFakeIdP(t)
	provider := oidcidp.New(testConfig{issuer: fake.server.URL})

	_, err := provider.Authenticate(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))

	_, err = provider.ValidateToken(ctx, "stale-token")
	require.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))

	fake.userinfoCode = http.StatusBadGateway
	_, err = provider.ValidateToken(ctx, "access-1")
	require.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))

	_, err = provider.Refresh(ctx, "unknown")
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestProvider_UnreachableIsUpstream(t *testing.T) {
	fake := newFakeIdP(t)
	issuer := fake.server.URL
	fake.server.Close()

	provider := oidcidp.New(testConfig{issuer: issuer})
	_, err := provider.Authenticate(context.Background(), "alice@example.com", "s3cret")
	require.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
}

func TestProvider_Refresh(t *testing.T) {
	ctx := context.Background()
	fake := newFakeIdP(t)
	provider := oidcidp.New(testConfig{issuer: fake.server.URL})

	bundle, err := provider.Refresh(ctx, "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", bundle.AccessToken)
	require.Equal(t, "refresh-2", bundle.RefreshToken)

	fake.rotate = false
	bundle, err = provider.Refresh(ctx, "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "refresh-1", bundle.RefreshToken)

	_, err = provider.Refresh(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrMissingRefreshToken)
}

func TestProvider_Logout(t *testing.T) {
	ctx := context.Background()
	fake := newFakeIdP(t)
	provider := oidcidp.New(testConfig{issuer: fake.server.URL})

	require.NoError(t, provider.Logout(ctx, "refresh-1"))
	require.NoError(t, provider.Logout(ctx, ""))
	require.EqualValues(t, 1, fake.revocations.Load())
}
