package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "union"

// Gateway decisions
const (
	DecisionAPIPassthrough      = "api_passthrough"
	DecisionPublic              = "public"
	DecisionLoginRedirect       = "authenticated_login_redirect"
	DecisionProtectedAllowed    = "protected_allowed"
	DecisionNoSession           = "no_session"
	DecisionSessionExpired      = "session_expired"
	DecisionUnlistedPassthrough = "unlisted_passthrough"
)

// Session issuance reasons
const (
	ReasonLogin   = "login"
	ReasonRefresh = "refresh"
)

// IdP outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the service counters on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	gatewayDecisions *prometheus.CounterVec
	sessionsIssued   *prometheus.CounterVec
	idpRequests      *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		gatewayDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_decisions_total",
			Help:      "Requests classified by the auth gateway, by decision",
		}, []string{"decision"}),
		sessionsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Session cookies issued, by reason",
		}, []string{"reason"}),
		idpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idp_requests_total",
			Help:      "Identity provider calls, by operation and outcome",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) GatewayDecision(decision string) {
	if m == nil {
		return
	}
	m.gatewayDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) SessionIssued(reason string) {
	if m == nil {
		return
	}
	m.sessionsIssued.WithLabelValues(reason).Inc()
}

// IdPRequest records one identity provider call. Rejections are
// authentication failures, errors everything else.
func (m *Metrics) IdPRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.idpRequests.WithLabelValues(op, outcome).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
