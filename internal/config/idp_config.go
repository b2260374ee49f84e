package config

import (
	"strings"
	"time"
)

type IdentityProvider struct{}

var _ IdentityProviderConfig = IdentityProvider{}

// GetIdPIssuerURL selects the remote OIDC provider; empty means the local provider is used
func (IdentityProvider) GetIdPIssuerURL() string {
	return strings.TrimSuffix(GetEnv("IDP_ISSUER_URL", ""), "/")
}

func (IdentityProvider) GetIdPClientID() string {
	return GetEnv("IDP_CLIENT_ID", "")
}

func (IdentityProvider) GetIdPClientSecret() string {
	return GetEnv("IDP_CLIENT_SECRET", "")
}

func (IdentityProvider) GetIdPScopes() []string {
	return strings.Fields(GetEnv("IDP_SCOPES", "openid profile email offline_access"))
}

func (IdentityProvider) GetIdPTimeout() time.Duration {
	return GetEnvDuration("IDP_TIMEOUT", 10*time.Second)
}

// GetLocalUsers returns the local account seed, formatted email:password:name:role|role,...
func (IdentityProvider) GetLocalUsers() string {
	return GetEnv("LOCAL_USERS", "")
}

func (IdentityProvider) GetLocalAccessTokenTTL() time.Duration {
	return GetEnvDuration("LOCAL_ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (IdentityProvider) GetLocalRefreshTokenTTL() time.Duration {
	return GetEnvDuration("LOCAL_REFRESH_TOKEN_TTL", 7*24*time.Hour) // 7 days
}
