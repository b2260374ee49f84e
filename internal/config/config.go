package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	IdentityProviderConfig
	GatewayConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
	IsDev() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SessionConfig interface {
	GetSessionCookieName() string
	GetSessionSecret() string
	GetSessionSigningKeyPEM() string
	GetSecureCookies() bool
}

type IdentityProviderConfig interface {
	GetIdPIssuerURL() string
	GetIdPClientID() string
	GetIdPClientSecret() string
	GetIdPScopes() []string
	GetIdPTimeout() time.Duration
	GetLocalUsers() string
	GetLocalAccessTokenTTL() time.Duration
	GetLocalRefreshTokenTTL() time.Duration
}

type GatewayConfig interface {
	GetAPIPrefixes() []string
	GetPublicRoutes() []string
	GetProtectedPrefixes() []string
	GetLoginPath() string
	GetLandingPath() string
}

type mainConfig struct {
	EnvVars
	Session
	IdentityProvider
	Gateway
	Cors
}

func New() Config {
	return mainConfig{}
}
