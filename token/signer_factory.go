package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/envention-steve/union-ui-sub002/internal/config"
	"github.com/rs/zerolog/log"
)

// NewSessionSigner selects the session signing key from configuration.
// An RSA key takes precedence over an HMAC secret. In development a random
// secret is generated when neither is set; elsewhere that is an error.
func NewSessionSigner(cfg config.SessionConfig, env config.EnvConfig) (Signer, error) {
	if pemData := cfg.GetSessionSigningKeyPEM(); pemData != "" {
		keyPair, err := LoadRSAKeyPairFromPEM("session", pemData)
		if err != nil {
			return nil, fmt.Errorf("failed to load session signing key: %w", err)
		}
		return NewKeyPairSigner(keyPair), nil
	}

	if secret := cfg.GetSessionSecret(); secret != "" {
		return NewHMACSigner(secret)
	}

	if !env.IsDev() {
		return nil, fmt.Errorf("SESSION_SECRET or SESSION_SIGNING_KEY_PEM is required in %s", env.GetEnv())
	}

	secret, err := RandomHMACSecret()
	if err != nil {
		return nil, err
	}
	log.Warn().Msg("No session signing key configured; using an ephemeral secret, sessions will not survive a restart")
	return NewHMACSigner(secret)
}

// RandomHMACSecret returns a hex encoded 256 bit secret
func RandomHMACSecret() (string, error) {
	secret := make([]byte, minHMACSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate HMAC secret: %w", err)
	}
	return hex.EncodeToString(secret), nil
}

// GenerateSessionSigningKeyPEM returns a new RSA private key suitable for SESSION_SIGNING_KEY_PEM
func GenerateSessionSigningKeyPEM(bits int) (string, error) {
	keyPair, err := GenerateRSAKeyPair("session", bits)
	if err != nil {
		return "", err
	}
	return keyPair.ExportPrivateKeyPEM(), nil
}
