package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"
)

const (
	DefaultResetTokenTTL = time.Hour
	resetTokenBytes      = 32
)

// ResetTokenManager issues one-time password/PIN reset tokens. Only the
// SHA-256 digest is stored; a new token replaces any earlier one.
type ResetTokenManager struct {
	store ResetTokenStore
	ttl   time.Duration
	now   func() time.Time
}

func NewResetTokenManager(store ResetTokenStore, ttl time.Duration) *ResetTokenManager {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenManager{store: store, ttl: ttl, now: time.Now}
}

func (m *ResetTokenManager) TTL() time.Duration {
	return m.ttl
}

// CreateResetToken returns the raw token for delivery to the user.
func (m *ResetTokenManager) CreateResetToken(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", xerrors.Infra(err, "generate reset token")
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	err := m.store.Upsert(ctx, &auth.ResetToken{
		UserID:    userID,
		TokenHash: digest(raw),
		CreatedAt: m.now().UTC(),
	})
	if err != nil {
		return "", xerrors.Infra(err, "store reset token")
	}
	return raw, nil
}

// ValidateResetToken checks without consuming.
func (m *ResetTokenManager) ValidateResetToken(ctx context.Context, userID int64, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	rec, err := m.store.Find(ctx, userID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return false, nil
		}
		return false, xerrors.Infra(err, "load reset token")
	}
	if m.now().Sub(rec.CreatedAt) > m.ttl {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(digest(token))) == 1, nil
}

// ConsumeResetToken validates and deletes in one step, so of two concurrent
// redemptions at most one succeeds.
func (m *ResetTokenManager) ConsumeResetToken(ctx context.Context, userID int64, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ok, err := m.store.Consume(ctx, userID, digest(token), m.now().Add(-m.ttl).UTC())
	if err != nil {
		return false, xerrors.Infra(err, "consume reset token")
	}
	return ok, nil
}

// RedeemResetToken consumes token and then runs apply. When apply fails the
// token is written back with its original issue time, so the user can retry
// within the same window.
func (m *ResetTokenManager) RedeemResetToken(ctx context.Context, userID int64, token string, apply func() error) (bool, error) {
	if token == "" {
		return false, nil
	}
	rec, err := m.store.Find(ctx, userID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return false, nil
		}
		return false, xerrors.Infra(err, "load reset token")
	}

	ok, err := m.ConsumeResetToken(ctx, userID, token)
	if err != nil || !ok {
		return ok, err
	}

	if err := apply(); err != nil {
		restored := &auth.ResetToken{UserID: userID, TokenHash: rec.TokenHash, CreatedAt: rec.CreatedAt}
		if rerr := m.store.Upsert(ctx, restored); rerr != nil {
			return true, errors.Join(err, xerrors.Infra(rerr, "restore reset token"))
		}
		return true, err
	}
	return true, nil
}

// Invalidate drops any pending token for userID.
func (m *ResetTokenManager) Invalidate(ctx context.Context, userID int64) error {
	if err := m.store.Delete(ctx, userID); err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return xerrors.Infra(err, "delete reset token")
	}
	return nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
