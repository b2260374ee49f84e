package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteHome      = "/"
	RouteLogin     = "/login"
	RouteDashboard = "/dashboard"

	// Session endpoints
	RouteAuthLogin   = "/auth/login"
	RouteAuthLogout  = "/auth/logout"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthMe      = "/auth/me"
	RouteAuthToken   = "/auth/token"
	RouteAuthPrefix  = "/auth/"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
