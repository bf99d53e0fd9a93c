package auth

import (
	"context"
	"time"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/events"

	"go.uber.org/zap"
)

// AccountStore is the narrow view of user storage the auth flows need.
// Lockout mutations are single atomic operations so concurrent attempts on
// one account cannot under-count.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*auth.UserAccount, error)
	FindByID(ctx context.Context, id int64) (*auth.UserAccount, error)
	RecordFailedAttempt(ctx context.Context, id int64, threshold int, at time.Time) (*auth.LockoutResult, error)
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error
	Unlock(ctx context.Context, id int64, at time.Time) error
	UpdateSecret(ctx context.Context, id int64, mode auth.AuthenticationMode, secretHash string, at time.Time) error
}

// ResetTokenStore keeps at most one reset token digest per user.
type ResetTokenStore interface {
	Upsert(ctx context.Context, token *auth.ResetToken) error
	Find(ctx context.Context, userID int64) (*auth.ResetToken, error)
	Delete(ctx context.Context, userID int64) error
	// Consume deletes the record iff the digest matches and it was created
	// at or after notBefore.
	Consume(ctx context.Context, userID int64, tokenHash string, notBefore time.Time) (bool, error)
}

// RefreshTokenStore tracks the one active refresh token id per user.
type RefreshTokenStore interface {
	Activate(ctx context.Context, userID int64, jti string, ttl time.Duration) error
	Rotate(ctx context.Context, userID int64, presented, next string, ttl time.Duration) (bool, error)
	Revoke(ctx context.Context, userID int64) error
}

type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

// Notifier delivers a reset token to the account owner.
type Notifier interface {
	SendResetToken(ctx context.Context, account *auth.UserAccount, token string) error
}

// emit publishes ev and only logs a delivery failure.
func emit(ctx context.Context, pub events.Publisher, logger *zap.Logger, ev auth.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish auth event",
			zap.String("event", string(ev.Type)),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}
