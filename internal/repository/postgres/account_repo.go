// internal/repository/postgres/account_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

type AccountRepository struct {
	db Pool
}

func NewAccountRepository(db Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Permissions are resolved through user_roles -> role_permissions -> permissions
// and aggregated into a text[] column.
const accountColumns = `
		SELECT u.id, u.email, u.phone, u.display_name,
		       u.password_hash, u.pin_hash, u.auth_mode,
		       u.is_active, u.is_locked_out, u.failed_login_attempts, u.locked_out_at,
		       u.last_login_at, u.is_deleted, u.created_at, u.updated_at,
		       COALESCE(ARRAY(
		           SELECT DISTINCT p.name
		           FROM user_roles ur
		           JOIN role_permissions rp ON rp.role_id = ur.role_id
		           JOIN permissions p ON p.id = rp.permission_id
		           WHERE ur.user_id = u.id
		           ORDER BY p.name
		       ), '{}') AS permissions
		FROM users u`

// ========== Lookup Methods ==========

// FindByEmail retrieves a non-deleted account by email (case-insensitive)
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*auth.UserAccount, error) {
	query := accountColumns + `
		WHERE LOWER(u.email) = LOWER($1) AND u.is_deleted = FALSE
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, email))
}

// FindByID retrieves a non-deleted account by ID
func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*auth.UserAccount, error) {
	query := accountColumns + `
		WHERE u.id = $1 AND u.is_deleted = FALSE
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*auth.UserAccount, error) {
	var (
		acct  auth.UserAccount
		mode  string
		perms []string
	)
	err := row.Scan(
		&acct.ID, &acct.Email, &acct.Phone, &acct.DisplayName,
		&acct.PasswordHash, &acct.PinHash, &mode,
		&acct.IsActive, &acct.IsLockedOut, &acct.FailedLoginAttempts, &acct.LockedOutAt,
		&acct.LastLoginAt, &acct.IsDeleted, &acct.CreatedAt, &acct.UpdatedAt,
		pq.Array(&perms),
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	acct.AuthMode = auth.AuthenticationMode(mode)
	acct.Permissions = make([]auth.Permission, 0, len(perms))
	for _, p := range perms {
		acct.Permissions = append(acct.Permissions, auth.Permission(p))
	}
	return &acct, nil
}

// ========== Lockout Methods ==========

// RecordFailedAttempt increments the failure counter and locks the account
// once the new count reaches threshold, in one statement. The row lock taken
// by the CTE serializes concurrent attempts for the same account.
func (r *AccountRepository) RecordFailedAttempt(ctx context.Context, id int64, threshold int, at time.Time) (*auth.LockoutResult, error) {
	query := `
		WITH prev AS (
			SELECT id, is_locked_out FROM users WHERE id = $1 FOR UPDATE
		)
		UPDATE users u
		SET failed_login_attempts = u.failed_login_attempts + 1,
		    is_locked_out = u.is_locked_out OR u.failed_login_attempts + 1 >= $2,
		    locked_out_at = CASE
		        WHEN NOT u.is_locked_out AND u.failed_login_attempts + 1 >= $2 THEN $3
		        ELSE u.locked_out_at
		    END,
		    updated_at = $3
		FROM prev
		WHERE u.id = prev.id
		RETURNING u.failed_login_attempts, u.is_locked_out, u.locked_out_at, prev.is_locked_out
	`

	var (
		res       auth.LockoutResult
		wasLocked bool
	)
	err := r.db.QueryRow(ctx, query, id, threshold, at).Scan(
		&res.FailedLoginAttempts, &res.IsLockedOut, &res.LockedOutAt, &wasLocked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record failed login: %w", err)
	}

	res.JustLocked = res.IsLockedOut && !wasLocked
	return &res, nil
}

// RecordSuccessfulLogin clears lockout state and stamps the login time
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, is_locked_out = FALSE, locked_out_at = NULL,
		    last_login_at = $2, updated_at = $2
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Unlock clears lockout state without touching last_login_at
func (r *AccountRepository) Unlock(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, is_locked_out = FALSE, locked_out_at = NULL, updated_at = $2
		WHERE id = $1 AND is_deleted = FALSE
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to unlock account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ========== Credential Methods ==========

// UpdateSecret stores a new hash for the given mode
func (r *AccountRepository) UpdateSecret(ctx context.Context, id int64, mode auth.AuthenticationMode, secretHash string, at time.Time) error {
	var query string
	switch mode {
	case auth.ModePassword:
		query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 AND is_deleted = FALSE`
	case auth.ModePin:
		query = `UPDATE users SET pin_hash = $2, updated_at = $3 WHERE id = $1 AND is_deleted = FALSE`
	default:
		return fmt.Errorf("%w: unknown authentication mode %q", xerrors.ErrInvalidInput, mode)
	}

	tag, err := r.db.Exec(ctx, query, id, secretHash, at)
	if err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
