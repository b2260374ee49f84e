package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation(apperrors.ErrMissingCredentials, "login"), http.StatusBadRequest},
		{"bare missing credentials", apperrors.ErrMissingCredentials, http.StatusBadRequest},
		{"authentication", apperrors.Authentication(nil, "bad password"), http.StatusUnauthorized},
		{"wrapped sentinel", fmt.Errorf("refresh: %w", apperrors.ErrInvalidRefreshToken), http.StatusUnauthorized},
		{"upstream", apperrors.Upstream(fmt.Errorf("dial tcp: refused"), "authenticate"), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apperrors.HTTPStatus(tt.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := apperrors.Authentication(apperrors.ErrSessionExpired, "me")
	require.True(t, apperrors.Is(err, apperrors.ErrSessionExpired))
	require.Equal(t, "me: session expired", err.Error())
	require.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(fmt.Errorf("outer: %w", err)))
}

func TestWrapf(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "noop"))
	err := apperrors.Wrapf(apperrors.ErrNotFound, "account %s", "a@b.c")
	require.EqualError(t, err, "account a@b.c: not found")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
