package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/envention-steve/union-ui-sub002/internal/config"
	"github.com/envention-steve/union-ui-sub002/internal/metrics"
	"github.com/envention-steve/union-ui-sub002/session"
)

// SessionReader reads the verified session of a request without enforcing expiry
type SessionReader interface {
	FromRequest(r *http.Request) (session.Payload, error)
}

// SessionExpiredError is the login page error code for expired sessions
const SessionExpiredError = "session-expired"

// Gateway classifies every request before it reaches the mux:
//
//  1. API prefixes pass straight through without reading the session.
//  2. Public routes pass through. The login page alone looks at the session
//     and sends visitors with a live session to the landing page.
//  3. Protected prefixes require a verified, unexpired session and redirect
//     to the login page otherwise.
//  4. Anything else passes through.
type Gateway struct {
	sessions          SessionReader
	apiPrefixes       []string
	publicRoutes      map[string]struct{}
	protectedPrefixes []string
	loginPath         string
	landingPath       string
	nowFunc           func() time.Time
	metrics           *metrics.Metrics
}

type GatewayOption func(*Gateway)

func WithGatewayNowFunc(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		g.nowFunc = now
	}
}

func WithGatewayMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func NewGateway(cfg config.GatewayConfig, sessions SessionReader, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		sessions:          sessions,
		apiPrefixes:       cfg.GetAPIPrefixes(),
		publicRoutes:      make(map[string]struct{}),
		protectedPrefixes: cfg.GetProtectedPrefixes(),
		loginPath:         cfg.GetLoginPath(),
		landingPath:       cfg.GetLandingPath(),
		nowFunc:           time.Now,
	}
	for _, route := range cfg.GetPublicRoutes() {
		g.publicRoutes[route] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware applies the gateway in front of next
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, location := g.decide(r)
		g.metrics.GatewayDecision(decision)
		if location != "" {
			http.Redirect(w, r, location, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decide returns the decision label and, for redirects, the target location
func (g *Gateway) decide(r *http.Request) (string, string) {
	path := r.URL.Path

	for _, prefix := range g.apiPrefixes {
		if matchPrefix(path, prefix) {
			return metrics.DecisionAPIPassthrough, ""
		}
	}

	if _, ok := g.publicRoutes[path]; ok {
		if path == g.loginPath {
			if p, err := g.sessions.FromRequest(r); err == nil && !p.Expired(g.nowFunc()) {
				return metrics.DecisionLoginRedirect, g.landingPath
			}
		}
		return metrics.DecisionPublic, ""
	}

	for _, prefix := range g.protectedPrefixes {
		if !matchPrefix(path, prefix) {
			continue
		}
		query := url.Values{"callbackUrl": {r.URL.RequestURI()}}
		p, err := g.sessions.FromRequest(r)
		if err != nil {
			return metrics.DecisionNoSession, g.loginPath + "?" + query.Encode()
		}
		if p.Expired(g.nowFunc()) {
			query.Set("error", SessionExpiredError)
			return metrics.DecisionSessionExpired, g.loginPath + "?" + query.Encode()
		}
		return metrics.DecisionProtectedAllowed, ""
	}

	return metrics.DecisionUnlistedPassthrough, ""
}

// matchPrefix matches whole path segments: "/claims" matches "/claims" and
// "/claims/42" but not "/claimsx". A prefix ending in "/" also matches the
// path without it.
func matchPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
