package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/envention-steve/union-ui-sub002/client"
	"github.com/stretchr/testify/require"
)

func TestCookieFile_PersistsSessionAcrossClients(t *testing.T) {
	ctx := context.Background()
	ts := newAdminServer(t)
	path := filepath.Join(t.TempDir(), "unionctl", "cookies.json")

	first, err := client.New(ts.URL)
	require.NoError(t, err)
	require.NoError(t, first.LoadCookies(path))

	_, err = first.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	require.NoError(t, first.SaveCookies(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := client.New(ts.URL)
	require.NoError(t, err)
	require.NoError(t, second.LoadCookies(path))

	me, err := second.Me(ctx)
	require.NoError(t, err)
	require.True(t, me.Success)
	require.Equal(t, "alice@example.com", me.User.Email)

	_, err = second.Logout(ctx)
	require.NoError(t, err)
	require.NoError(t, second.SaveCookies(path))
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCookieFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	c, err := client.New("http://localhost:8080")
	require.NoError(t, err)
	require.Error(t, c.LoadCookies(path))
}
