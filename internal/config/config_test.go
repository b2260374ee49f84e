package config_test

import (
	"testing"
	"time"

	"github.com/envention-steve/union-ui-sub002/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("AUTH_PROTECTED_PREFIXES", "")

	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.True(t, c.IsDev())
	require.False(t, c.GetSecureCookies())
	require.Equal(t, "session", c.GetSessionCookieName())
	require.Equal(t, []string{"/api/", "/auth/"}, c.GetAPIPrefixes())
	require.Contains(t, c.GetProtectedPrefixes(), "/claims")
	require.Equal(t, 10*time.Second, c.GetIdPTimeout())
}

func TestConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("ENV", "prod")
	t.Setenv("AUTH_PROTECTED_PREFIXES", " /members , ,/claims")
	t.Setenv("IDP_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://admin.example.com")

	c := config.New()
	require.Equal(t, ":9000", c.GetPort())
	require.False(t, c.IsDev())
	require.True(t, c.GetSecureCookies())
	require.Equal(t, []string{"/members", "/claims"}, c.GetProtectedPrefixes())
	require.Equal(t, 10*time.Second, c.GetIdPTimeout())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://admin.example.com"))
}
