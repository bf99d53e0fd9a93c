package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthenticated")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict: resource already exists")
	ErrInternal     = errors.New("internal server error")
	ErrRateLimited  = errors.New("too many requests")
	ErrBadRequest   = errors.New("bad request")
)

// Authentication errors. Messages are safe to show to the caller.
var (
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrAccountInactive            = errors.New("account is inactive")
	ErrAccountLockedOut           = errors.New("account is locked out")
	ErrInvalidToken               = errors.New("invalid token")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrInfrastructure             = errors.New("infrastructure failure")
)

// Infra marks err as a storage/crypto/transport failure. Both the sentinel and
// the cause stay reachable through errors.Is.
func Infra(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", message, ErrInfrastructure, err)
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
