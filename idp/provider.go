package idp

import (
	"context"
	"time"

	"github.com/envention-steve/union-ui-sub002/users"
)

// Provider is the identity provider contract the session service relies on.
// Implementations classify failures with the internal errors package:
// rejected credentials or tokens are authentication errors, an unreachable
// or misbehaving provider is an upstream error.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (TokenBundle, error)
	ValidateToken(ctx context.Context, accessToken string) (users.User, error)
	Refresh(ctx context.Context, refreshToken string) (TokenBundle, error)
	Logout(ctx context.Context, refreshToken string) error
}

// TokenBundle is returned by Authenticate and Refresh
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// ExpiresAt converts ExpiresIn to epoch seconds relative to now
func (b TokenBundle) ExpiresAt(now time.Time) int64 {
	return now.Unix() + int64(b.ExpiresIn)
}
