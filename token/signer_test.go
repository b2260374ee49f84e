package token_test

import (
	"testing"
	"time"

	"github.com/envention-steve/union-ui-sub002/internal/config"
	"github.com/envention-steve/union-ui-sub002/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHMACSigner_RejectsShortSecret(t *testing.T) {
	_, err := token.NewHMACSigner("short")
	require.Error(t, err)
}

func TestHMACSigner_RoundTrip(t *testing.T) {
	signer, err := token.NewHMACSigner(testSecret)
	require.NoError(t, err)

	raw, err := signer.Sign(jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Minute).Unix()})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = token.Parse(signer, raw, claims)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims["sub"])

	other, err := token.NewHMACSigner("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	_, err = token.Parse(other, raw, jwt.MapClaims{})
	require.Error(t, err)
}

func TestKeyPairSigner_RoundTripAndAlgorithmPinning(t *testing.T) {
	keyPair, err := token.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)

	loaded, err := token.LoadRSAKeyPairFromPEM("kid-1", keyPair.ExportPrivateKeyPEM())
	require.NoError(t, err)
	signer := token.NewKeyPairSigner(loaded)

	raw, err := signer.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	parsed, err := token.Parse(signer, raw, jwt.MapClaims{})
	require.NoError(t, err)
	require.Equal(t, "kid-1", parsed.Header["kid"])

	hmac, err := token.NewHMACSigner(testSecret)
	require.NoError(t, err)
	hmacToken, err := hmac.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)
	_, err = token.Parse(signer, hmacToken, jwt.MapClaims{})
	require.Error(t, err)
}

func TestLoadRSAKeyPairFromPEM_Invalid(t *testing.T) {
	_, err := token.LoadRSAKeyPairFromPEM("k", "not pem")
	require.Error(t, err)
}

func TestInMemoryRevokedTokenCache(t *testing.T) {
	cache := token.NewInMemoryRevokedTokenCache()
	require.NoError(t, cache.Add("jti-1", time.Now().Add(-time.Second)))
	require.NoError(t, cache.Add("jti-2", time.Now().Add(time.Hour)))
	require.True(t, cache.IsRevoked("jti-1"))

	cache.Cleanup()
	require.False(t, cache.IsRevoked("jti-1"))
	require.True(t, cache.IsRevoked("jti-2"))
}

func TestNewSessionSigner_UsesGeneratedKey(t *testing.T) {
	keyPEM, err := token.GenerateSessionSigningKeyPEM(2048)
	require.NoError(t, err)
	require.Contains(t, keyPEM, "BEGIN RSA PRIVATE KEY")

	t.Setenv("ENV", "PROD")
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("SESSION_SIGNING_KEY_PEM", keyPEM)

	c := config.New()
	signer, err := token.NewSessionSigner(c, c)
	require.NoError(t, err)
	require.Equal(t, jwt.SigningMethodRS256, signer.GetSigningMethod())
}
