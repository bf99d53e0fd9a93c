package auth

import (
	"adminauth-service/internal/domain/auth"

	"go.uber.org/zap"
)

// CredentialVerifier checks a submitted password or PIN against the hash
// stored for the account's active mode.
type CredentialVerifier struct {
	hasher SecretHasher
	logger *zap.Logger
}

func NewCredentialVerifier(hasher SecretHasher, logger *zap.Logger) *CredentialVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialVerifier{hasher: hasher, logger: logger}
}

// Verify never fails loudly: a missing or unreadable hash is a mismatch.
func (v *CredentialVerifier) Verify(account *auth.UserAccount, secret string) bool {
	if account == nil || secret == "" {
		return false
	}

	encoded, ok := account.SecretHash()
	if !ok {
		return false
	}

	match, err := v.hasher.Verify(secret, encoded)
	if err != nil {
		v.logger.Warn("stored credential hash could not be checked",
			zap.Int64("user_id", account.ID),
			zap.String("mode", string(account.AuthMode)),
			zap.Error(err),
		)
		return false
	}
	return match
}
