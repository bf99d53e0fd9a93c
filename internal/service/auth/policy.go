package auth

import (
	"fmt"
	"unicode/utf8"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"
)

// SecretPolicy bounds new passwords and PINs.
type SecretPolicy struct {
	MinPasswordLength int
	MinPinLength      int
	MaxPinLength      int
}

// bcrypt ignores input past 72 bytes.
const maxSecretBytes = 72

func DefaultSecretPolicy() SecretPolicy {
	return SecretPolicy{MinPasswordLength: 8, MinPinLength: 4, MaxPinLength: 8}
}

func (p SecretPolicy) Check(mode auth.AuthenticationMode, secret string) error {
	switch mode {
	case auth.ModePassword:
		if utf8.RuneCountInString(secret) < p.MinPasswordLength {
			return fmt.Errorf("%w: password must be at least %d characters", xerrors.ErrInvalidInput, p.MinPasswordLength)
		}
		if len(secret) > maxSecretBytes {
			return fmt.Errorf("%w: password must be at most %d bytes", xerrors.ErrInvalidInput, maxSecretBytes)
		}
	case auth.ModePin:
		if len(secret) < p.MinPinLength || len(secret) > p.MaxPinLength {
			return fmt.Errorf("%w: pin must be %d to %d digits", xerrors.ErrInvalidInput, p.MinPinLength, p.MaxPinLength)
		}
		for _, r := range secret {
			if r < '0' || r > '9' {
				return fmt.Errorf("%w: pin must contain digits only", xerrors.ErrInvalidInput)
			}
		}
	default:
		return fmt.Errorf("%w: unknown authentication mode %q", xerrors.ErrInvalidInput, mode)
	}
	return nil
}
