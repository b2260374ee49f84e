package idp

import (
	"context"

	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/envention-steve/union-ui-sub002/users"
)

// Recorder receives one observation per provider call
type Recorder interface {
	IdPRequest(op, outcome string)
}

const (
	OpAuthenticate  = "authenticate"
	OpValidateToken = "validate_token"
	OpRefresh       = "refresh"
	OpLogout        = "logout"
)

// Instrument wraps p so every call is reported to recorder
func Instrument(p Provider, recorder Recorder) Provider {
	if recorder == nil {
		return p
	}
	return &instrumented{next: p, recorder: recorder}
}

type instrumented struct {
	next     Provider
	recorder Recorder
}

func (i *instrumented) observe(op string, err error) {
	outcome := "success"
	switch apperrors.KindOf(err) {
	case apperrors.KindUnknown:
		if err != nil {
			outcome = "error"
		}
	case apperrors.KindValidation, apperrors.KindAuthentication:
		outcome = "rejected"
	default:
		outcome = "error"
	}
	i.recorder.IdPRequest(op, outcome)
}

func (i *instrumented) Authenticate(ctx context.Context, email, password string) (TokenBundle, error) {
	bundle, err := i.next.Authenticate(ctx, email, password)
	i.observe(OpAuthenticate, err)
	return bundle, err
}

func (i *instrumented) ValidateToken(ctx context.Context, accessToken string) (users.User, error) {
	user, err := i.next.ValidateToken(ctx, accessToken)
	i.observe(OpValidateToken, err)
	return user, err
}

func (i *instrumented) Refresh(ctx context.Context, refreshToken string) (TokenBundle, error) {
	bundle, err := i.next.Refresh(ctx, refreshToken)
	i.observe(OpRefresh, err)
	return bundle, err
}

func (i *instrumented) Logout(ctx context.Context, refreshToken string) error {
	err := i.next.Logout(ctx, refreshToken)
	i.observe(OpLogout, err)
	return err
}
