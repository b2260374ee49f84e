package config

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "session")
}

// GetSessionSecret is the HMAC key used when no RSA signing key is configured
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

// GetSessionSigningKeyPEM is a PEM encoded RSA private key; it takes precedence over the secret
func (Session) GetSessionSigningKeyPEM() string {
	return GetEnv("SESSION_SIGNING_KEY_PEM", "")
}

// GetSecureCookies marks cookies Secure everywhere except local development
func (Session) GetSecureCookies() bool {
	return EnvVars{}.GetEnv() != EnvDev
}
