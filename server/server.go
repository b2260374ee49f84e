package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/envention-steve/union-ui-sub002/idp"
	"github.com/envention-steve/union-ui-sub002/internal/config"
	"github.com/envention-steve/union-ui-sub002/internal/metrics"
	"github.com/envention-steve/union-ui-sub002/session"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config
	codec   *session.Codec
	idp     idp.Provider
	gateway *Gateway
	metrics *metrics.Metrics

	loginTmpl     *template.Template
	indexTmpl     *template.Template
	dashboardTmpl *template.Template
}

type Option func(*Server)

// WithMetrics records gateway, session and identity provider counters and serves /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func New(config config.Config, codec *session.Codec, provider idp.Provider, opts ...Option) (*Server, error) {
	s := &Server{
		env:    config.GetEnv(),
		mux:    http.NewServeMux(),
		config: config,
		codec:  codec,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.idp = idp.Instrument(provider, recorderOrNil(s.metrics))

	var err error
	if s.loginTmpl, err = ParseTemplate("login.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse login template: %w", err)
	}
	if s.indexTmpl, err = ParseTemplate("index.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse index template: %w", err)
	}
	if s.dashboardTmpl, err = ParseTemplate("dashboard.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse dashboard template: %w", err)
	}

	s.gateway = NewGateway(config, codec,
		WithGatewayNowFunc(codec.Now),
		WithGatewayMetrics(s.metrics),
	)

	s.initRoutes()
	s.logRoutes()
	s.handler = s.gateway.Middleware(s.mux)

	return s, nil
}

// recorderOrNil avoids handing a typed nil to idp.Instrument
func recorderOrNil(m *metrics.Metrics) idp.Recorder {
	if m == nil {
		return nil
	}
	return m
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDev {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
