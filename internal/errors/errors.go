package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the session service
var (
	// Validation errors
	ErrMissingCredentials = errors.New("email and password are required")

	// Authentication errors
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountBlocked       = errors.New("account is blocked")
	ErrNoSession            = errors.New("no session")
	ErrInvalidSession       = errors.New("invalid session")
	ErrSessionExpired       = errors.New("session expired")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrMissingRefreshToken  = errors.New("missing refresh token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrIdentityNotConfirmed = errors.New("identity not confirmed")

	// Upstream errors
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Kind classifies an error for transport mapping
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the wrapped cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports missing or malformed input (400)
func Validation(err error, message string) error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// Authentication reports bad credentials, bad or expired sessions and tokens (401)
func Authentication(err error, message string) error {
	return &Error{Kind: KindAuthentication, Message: message, Err: err}
}

// Upstream reports an unreachable or failing identity provider (500)
func Upstream(err error, message string) error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// KindOf returns the Kind of the first classified error in err's chain.
// Unclassified authentication sentinels are recognised as well.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountBlocked),
		errors.Is(err, ErrNoSession),
		errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrMissingRefreshToken),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshTokenExpired):
		return KindAuthentication
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstream
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the HTTP surface answers with
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
