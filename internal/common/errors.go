// Package common defines shared constants and sentinel errors used across
// MindVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Storage errors. Connection loss, timeouts and unexpected constraint
	// failures are wrapped with ErrStorageUnavailable and are retryable.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTokenCollision     = errors.New("token value collision")

	// Account errors.
	ErrDuplicateIdentity  = errors.New("identity already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSecretMismatch     = errors.New("old secret does not match")

	// Token lifecycle errors.
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenInactive  = errors.New("token expired or revoked")
	ErrMalformedToken = errors.New("malformed token")
)

// IsTokenError reports whether err is one of the token validation failures
// that the session gate collapses into a generic unauthenticated response.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenInactive) ||
		errors.Is(err, ErrMalformedToken)
}
