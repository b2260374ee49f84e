package config

type Gateway struct{}

var _ GatewayConfig = Gateway{}

var defaultProtectedPrefixes = []string{
	"/dashboard",
	"/members",
	"/employers",
	"/claims",
	"/batches",
	"/insurance-plans",
	"/admin",
}

// GetAPIPrefixes are passed through by the gateway without any session lookup
func (Gateway) GetAPIPrefixes() []string {
	return GetEnvList("AUTH_API_PREFIXES", []string{"/api/", "/auth/"})
}

// GetPublicRoutes are exact paths reachable without a session
func (Gateway) GetPublicRoutes() []string {
	return GetEnvList("AUTH_PUBLIC_ROUTES", []string{"/", "/login"})
}

func (Gateway) GetProtectedPrefixes() []string {
	return GetEnvList("AUTH_PROTECTED_PREFIXES", defaultProtectedPrefixes)
}

func (Gateway) GetLoginPath() string {
	return GetEnv("AUTH_LOGIN_PATH", "/login")
}

// GetLandingPath is where an already authenticated visitor of the login page is sent
func (Gateway) GetLandingPath() string {
	return GetEnv("AUTH_LANDING_PATH", "/dashboard")
}
