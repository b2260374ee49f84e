package session

import (
	"time"

	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/golang-jwt/jwt/v5"
)

// Payload is the session carried by the signed cookie.
// A payload is never mutated; login and refresh issue a new one.
type Payload struct {
	User         users.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken *string    `json:"refreshToken"`
	ExpiresAt    int64      `json:"expiresAt"` // epoch seconds
}

// Expired reports whether the access token is past its expiry. A session
// expiring at exactly now counts as expired.
func (p Payload) Expired(now time.Time) bool {
	return p.ExpiresAt <= now.Unix()
}

// HasRefreshToken reports whether the payload carries a usable refresh token
func (p Payload) HasRefreshToken() bool {
	return p.RefreshToken != nil && *p.RefreshToken != ""
}

// claims is the JWT body. It only holds the payload fields so that identical
// payloads always sign to identical tokens.
type claims struct {
	Payload
}

var _ jwt.Claims = claims{}

func (c claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c claims) GetIssuer() (string, error)              { return "", nil }
func (c claims) GetSubject() (string, error)             { return c.User.ID, nil }
func (c claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }
