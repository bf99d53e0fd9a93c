// internal/repository/postgres/reset_token_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

// ResetTokenRepository keeps at most one reset token digest per user.
type ResetTokenRepository struct {
	db Pool
}

func NewResetTokenRepository(db Pool) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// Upsert replaces any previous token for the user
func (r *ResetTokenRepository) Upsert(ctx context.Context, token *auth.ResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (user_id, token_hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at
	`
	if _, err := r.db.Exec(ctx, query, token.UserID, token.TokenHash, token.CreatedAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

// Find returns the user's current token or ErrNotFound
func (r *ResetTokenRepository) Find(ctx context.Context, userID int64) (*auth.ResetToken, error) {
	query := `
		SELECT user_id, token_hash, created_at
		FROM password_reset_tokens
		WHERE user_id = $1
	`

	var tok auth.ResetToken
	err := r.db.QueryRow(ctx, query, userID).Scan(&tok.UserID, &tok.TokenHash, &tok.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}
	return &tok, nil
}

func (r *ResetTokenRepository) Delete(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete reset token: %w", err)
	}
	return nil
}

// Consume deletes the token only if it still matches and was created at or
// after notBefore. Exactly one concurrent caller can see true.
func (r *ResetTokenRepository) Consume(ctx context.Context, userID int64, tokenHash string, notBefore time.Time) (bool, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE user_id = $1 AND token_hash = $2 AND created_at >= $3
	`
	tag, err := r.db.Exec(ctx, query, userID, tokenHash, notBefore)
	if err != nil {
		return false, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
