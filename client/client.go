package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Session endpoint paths
const (
	PathLogin   = "/auth/login"
	PathLogout  = "/auth/logout"
	PathRefresh = "/auth/refresh"
	PathMe      = "/auth/me"
	PathToken   = "/auth/token"
)

const maxBodySize = 1 << 20

// SessionResponse is the body of the session endpoints
type SessionResponse struct {
	Success        bool        `json:"success"`
	User           *users.User `json:"user,omitempty"`
	ExpiresAt      int64       `json:"expiresAt,omitempty"`
	IsExpiringSoon bool        `json:"isExpiringSoon,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// TokenResponse is the body of GET /auth/token
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// StatusError is returned for non-2xx answers; Message is the server's error field
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Client calls the session endpoints of the admin server. Cookies are kept in
// the HTTP client's jar, so one Client represents one browser-like session.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client; it should carry a cookie jar
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Errorf("invalid base url %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Jar exposes the session cookie store
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// Login posts the credentials; 400 and 401 answers are returned as *StatusError
func (c *Client) Login(ctx context.Context, email, password string) (SessionResponse, error) {
	var resp SessionResponse
	err := c.do(ctx, http.MethodPost, PathLogin, map[string]string{"email": email, "password": password}, &resp)
	return resp, err
}

func (c *Client) Logout(ctx context.Context) (SessionResponse, error) {
	var resp SessionResponse
	err := c.do(ctx, http.MethodPost, PathLogout, nil, &resp)
	return resp, err
}

func (c *Client) Refresh(ctx context.Context) (SessionResponse, error) {
	var resp SessionResponse
	err := c.do(ctx, http.MethodPost, PathRefresh, nil, &resp)
	return resp, err
}

// Me asks who the session belongs to. A 401 is a clean "no session" answer
// and is returned as an unsuccessful response rather than an error; transport
// failures and server errors are errors.
func (c *Client) Me(ctx context.Context) (SessionResponse, error) {
	var resp SessionResponse
	err := c.do(ctx, http.MethodGet, PathMe, nil, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		return SessionResponse{Success: false, Error: statusErr.Message}, nil
	}
	return resp, err
}

func (c *Client) Token(ctx context.Context) (TokenResponse, error) {
	var resp TokenResponse
	if err := c.do(ctx, http.MethodGet, PathToken, nil, &resp); err != nil {
		return TokenResponse{}, err
	}
	if resp.AccessToken == "" {
		return TokenResponse{}, errors.New("token response has no access token")
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response", path)
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("session call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil {
			statusErr.Message = failure.Error
		}
		return statusErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "malformed %s response", path)
	}
	return nil
}
