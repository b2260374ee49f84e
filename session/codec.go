package session

import (
	"net/http"
	"time"

	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/envention-steve/union-ui-sub002/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// DefaultCookieName is used when no cookie name is configured
	DefaultCookieName = "session"

	// ExpiringSoonWindow is the horizon inside which a session should be refreshed
	ExpiringSoonWindow = 600 * time.Second

	// maxCookieSize is the largest Set-Cookie value browsers are required to keep
	maxCookieSize = 4096
)

// ErrSessionTooLarge is returned instead of truncating an oversized session
var ErrSessionTooLarge = errors.New("session cookie exceeds 4096 bytes")

// Codec signs session payloads into cookies and verifies them back.
type Codec struct {
	signer     token.Signer
	cookieName string
	secure     bool
	nowFunc    func() time.Time
}

type Option func(*Codec)

func WithCookieName(name string) Option {
	return func(c *Codec) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// WithSecureCookie sets the Secure attribute on issued and cleared cookies
func WithSecureCookie(secure bool) Option {
	return func(c *Codec) {
		c.secure = secure
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(signer token.Signer, opts ...Option) *Codec {
	c := &Codec{
		signer:     signer,
		cookieName: DefaultCookieName,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) CookieName() string {
	return c.cookieName
}

// Now returns the codec's notion of the current time
func (c *Codec) Now() time.Time {
	return c.nowFunc()
}

// CreateToken signs p. The token holds only the payload fields, so equal
// payloads signed with the same key produce the same token.
func (c *Codec) CreateToken(p Payload) (string, error) {
	if err := p.User.Validate(); err != nil {
		return "", errors.Wrap(err, "invalid session user")
	}
	if p.AccessToken == "" {
		return "", errors.New("session access token is required")
	}
	signed, err := c.signer.Sign(claims{Payload: p})
	if err != nil {
		return "", errors.Wrap(err, "failed to sign session")
	}
	return signed, nil
}

// CreateCookie wraps a session token in a cookie whose lifetime follows expiresAt
func (c *Codec) CreateCookie(sessionToken string, expiresAt int64) (*http.Cookie, error) {
	maxAge := int(expiresAt - c.nowFunc().Unix())
	if maxAge <= 0 {
		maxAge = -1
	}
	cookie := &http.Cookie{
		Name:     c.cookieName,
		Value:    sessionToken,
		Path:     "/",
		Expires:  time.Unix(expiresAt, 0).UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if len(cookie.String()) > maxCookieSize {
		return nil, ErrSessionTooLarge
	}
	return cookie, nil
}

// Issue signs p and sets the resulting session cookie on w
func (c *Codec) Issue(w http.ResponseWriter, p Payload) error {
	sessionToken, err := c.CreateToken(p)
	if err != nil {
		return err
	}
	cookie, err := c.CreateCookie(sessionToken, p.ExpiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

// ClearCookie returns a cookie that deletes the session. It does not depend
// on any existing session and can be sent any number of times.
func (c *Codec) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1, // Max-Age=0
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Clear sets the deletion cookie on w
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.ClearCookie())
}

// Parse verifies a session token. Expiry is not checked.
func (c *Codec) Parse(sessionToken string) (Payload, error) {
	var cl claims
	if _, err := token.Parse(c.signer, sessionToken, &cl, jwt.WithoutClaimsValidation()); err != nil {
		return Payload{}, apperrors.Authentication(apperrors.ErrInvalidSession, err.Error())
	}
	if err := cl.User.Validate(); err != nil {
		return Payload{}, apperrors.Authentication(apperrors.ErrInvalidSession, err.Error())
	}
	return cl.Payload, nil
}

// FromRequest reads and verifies the session cookie of r without checking
// expiry. A missing cookie yields ErrNoSession, a bad one ErrInvalidSession.
func (c *Codec) FromRequest(r *http.Request) (Payload, error) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil || cookie.Value == "" {
		return Payload{}, apperrors.ErrNoSession
	}
	return c.Parse(cookie.Value)
}

// ServerSession returns the verified, unexpired session of r
func (c *Codec) ServerSession(r *http.Request) (Payload, error) {
	p, err := c.FromRequest(r)
	if err != nil {
		return Payload{}, err
	}
	if p.Expired(c.nowFunc()) {
		return Payload{}, apperrors.ErrSessionExpired
	}
	return p, nil
}

// ServerSessionAllowExpired returns the verified session of r even when it
// has expired. Refresh and logout need the refresh token of such sessions.
func (c *Codec) ServerSessionAllowExpired(r *http.Request) (Payload, error) {
	return c.FromRequest(r)
}

// IsExpiringSoon is true when fewer than 600 seconds remain
func (c *Codec) IsExpiringSoon(p Payload) bool {
	return IsExpiringSoon(p.ExpiresAt, c.nowFunc())
}

func IsExpiringSoon(expiresAt int64, now time.Time) bool {
	return expiresAt-now.Unix() < int64(ExpiringSoonWindow/time.Second)
}
