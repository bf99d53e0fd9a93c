package auth

import (
	"context"
	"time"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/events"
	xerrors "adminauth-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const DefaultLockoutThreshold = 3

// LockoutTracker drives the per-account Active -> Warned -> LockedOut state
// machine. There is no time-based unlock.
type LockoutTracker struct {
	store     AccountStore
	publisher events.Publisher
	threshold int
	logger    *zap.Logger
	now       func() time.Time
}

func NewLockoutTracker(store AccountStore, publisher events.Publisher, threshold int, logger *zap.Logger) *LockoutTracker {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockoutTracker{
		store:     store,
		publisher: publisher,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

func (t *LockoutTracker) Threshold() int {
	return t.threshold
}

// RecordFailure counts a failed attempt and locks the account when the
// threshold is reached. The failed attempt event is always published; the
// lockout event only on the transition.
func (t *LockoutTracker) RecordFailure(ctx context.Context, account *auth.UserAccount) (*auth.LockoutResult, error) {
	res, err := t.store.RecordFailedAttempt(ctx, account.ID, t.threshold, t.now())
	if err != nil {
		return nil, xerrors.Infra(err, "record failed login")
	}

	account.FailedLoginAttempts = res.FailedLoginAttempts
	account.IsLockedOut = res.IsLockedOut
	account.LockedOutAt = res.LockedOutAt

	emit(ctx, t.publisher, t.logger, auth.NewEvent(auth.EventFailedLoginAttempt, account, t.now()))
	if res.JustLocked {
		t.logger.Warn("account locked out",
			zap.Int64("user_id", account.ID),
			zap.Int("failed_attempts", res.FailedLoginAttempts),
		)
		emit(ctx, t.publisher, t.logger, auth.NewEvent(auth.EventUserLockedOut, account, t.now()))
	}
	return res, nil
}

// RecordSuccess resets the counter and lock, and stamps the login time.
func (t *LockoutTracker) RecordSuccess(ctx context.Context, account *auth.UserAccount) error {
	now := t.now()
	if err := t.store.RecordSuccessfulLogin(ctx, account.ID, now); err != nil {
		return xerrors.Infra(err, "record successful login")
	}

	account.FailedLoginAttempts = 0
	account.IsLockedOut = false
	account.LockedOutAt.Valid = false
	account.LastLoginAt.Time, account.LastLoginAt.Valid = now, true
	return nil
}

func (t *LockoutTracker) IsLocked(account *auth.UserAccount) bool {
	return account.IsLockedOut
}

func (t *LockoutTracker) State(account *auth.UserAccount) auth.LockoutState {
	switch {
	case account.IsLockedOut:
		return auth.LockoutLockedOut
	case account.FailedLoginAttempts > 0:
		return auth.LockoutWarned
	default:
		return auth.LockoutActive
	}
}

// Unlock is the administrative reset of the lockout fields.
func (t *LockoutTracker) Unlock(ctx context.Context, account *auth.UserAccount) error {
	if err := t.store.Unlock(ctx, account.ID, t.now()); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return err
		}
		return xerrors.Infra(err, "unlock account")
	}

	account.FailedLoginAttempts = 0
	account.IsLockedOut = false
	account.LockedOutAt.Valid = false

	emit(ctx, t.publisher, t.logger, auth.NewEvent(auth.EventUserUnlocked, account, t.now()))
	return nil
}
