package store

import (
	"context"

	"github.com/envention-steve/union-ui-sub002/client"
)

// probeKind is the outcome of the "who am I" call that opens the cascade
type probeKind int

const (
	// probeValidUnexpired: the session is valid and not close to expiry
	probeValidUnexpired probeKind = iota
	// probeNeedsRefresh: the session is valid but expired or expiring soon
	probeNeedsRefresh
	// probeNoSession: the server answered that there is no valid session
	probeNoSession
	// probeCallFailed: the call itself failed
	probeCallFailed
)

func (k probeKind) String() string {
	switch k {
	case probeValidUnexpired:
		return "valid_unexpired"
	case probeNeedsRefresh:
		return "needs_refresh"
	case probeNoSession:
		return "no_session"
	case probeCallFailed:
		return "call_failed"
	default:
		return "unknown"
	}
}

type probe struct {
	kind    probeKind
	expired bool // only meaningful for probeNeedsRefresh
	me      client.SessionResponse
	err     error
}

func classify(me client.SessionResponse, err error, now int64) probe {
	switch {
	case err != nil:
		return probe{kind: probeCallFailed, err: err}
	case !me.Success || me.User == nil:
		return probe{kind: probeNoSession, me: me}
	}
	expired := me.ExpiresAt <= now
	if expired || me.IsExpiringSoon {
		return probe{kind: probeNeedsRefresh, expired: expired, me: me}
	}
	return probe{kind: probeValidUnexpired, me: me}
}

// CheckAuthAndRefresh reconciles the local state with the server and repairs
// the session through a refresh where possible. It returns false only when
// there is no usable session and the refresh failed, or when the session had
// hard expired and the refresh failed. An expiring soon session whose refresh
// fails is still reported as authenticated until it actually expires.
func (s *Store) CheckAuthAndRefresh(ctx context.Context) bool {
	s.setLoading(true)
	defer s.setLoading(false)

	me, err := s.api.Me(ctx)
	p := classify(me, err, s.nowFunc().Unix())
	s.logger.Debug().Stringer("probe", p.kind).Bool("expired", p.expired).Msg("Session probe")

	switch p.kind {
	case probeValidUnexpired:
		return s.onValidUnexpired(ctx, p)
	case probeNeedsRefresh:
		return s.onNeedsRefresh(ctx, p)
	case probeNoSession:
		return s.onNoSession(ctx)
	default:
		s.logger.Warn().Err(p.err).Msg("Session check failed, attempting refresh")
		return s.onCallFailed(ctx)
	}
}

func (s *Store) onValidUnexpired(ctx context.Context, p probe) bool {
	s.applySession(p.me)
	s.populateTokenCache(ctx)
	return true
}

func (s *Store) onNeedsRefresh(ctx context.Context, p probe) bool {
	s.applySession(p.me)

	if resp, ok, _ := s.refresh(ctx); ok {
		s.applySession(resp)
		s.populateTokenCache(ctx)
		return true
	}
	if p.expired {
		s.clearAuth("")
		s.clearTokenCache()
		return false
	}
	s.logger.Warn().Int64("expires_at", p.me.ExpiresAt).Msg("Proactive refresh failed, keeping the session until it expires")
	return true
}

func (s *Store) onNoSession(ctx context.Context) bool {
	return s.blindRefresh(ctx)
}

func (s *Store) onCallFailed(ctx context.Context) bool {
	return s.blindRefresh(ctx)
}

// blindRefresh is the last resort when no valid session was reported
func (s *Store) blindRefresh(ctx context.Context) bool {
	if resp, ok, _ := s.refresh(ctx); ok {
		s.applySession(resp)
		s.populateTokenCache(ctx)
		return true
	}
	s.clearAuth("")
	s.clearTokenCache()
	return false
}
