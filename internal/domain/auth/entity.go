// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// AuthenticationMode is the single credential kind an account logs in with.
type AuthenticationMode string

const (
	ModePassword AuthenticationMode = "password"
	ModePin      AuthenticationMode = "pin"
)

// Valid reports whether m is a known mode.
func (m AuthenticationMode) Valid() bool {
	return m == ModePassword || m == ModePin
}

// PhoneRequired reports whether login in this mode needs the phone number.
func (m AuthenticationMode) PhoneRequired() bool {
	return m == ModePin
}

// UserAccount represents the authentication-relevant part of a user record
type UserAccount struct {
	ID                  int64              `json:"id" db:"id"`
	Email               string             `json:"email" db:"email"`
	Phone               sql.NullString     `json:"phone" db:"phone"`
	DisplayName         string             `json:"display_name" db:"display_name"`
	PasswordHash        sql.NullString     `json:"-" db:"password_hash"`
	PinHash             sql.NullString     `json:"-" db:"pin_hash"`
	AuthMode            AuthenticationMode `json:"auth_mode" db:"auth_mode"`
	IsActive            bool               `json:"is_active" db:"is_active"`
	IsLockedOut         bool               `json:"is_locked_out" db:"is_locked_out"`
	FailedLoginAttempts int                `json:"-" db:"failed_login_attempts"`
	LockedOutAt         sql.NullTime       `json:"-" db:"locked_out_at"`
	LastLoginAt         sql.NullTime       `json:"last_login_at" db:"last_login_at"`
	IsDeleted           bool               `json:"-" db:"is_deleted"`
	Permissions         []Permission       `json:"permissions" db:"-"`
	CreatedAt           time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" db:"updated_at"`
}

// SecretHash returns the stored hash for the account's active mode.
func (a *UserAccount) SecretHash() (string, bool) {
	switch a.AuthMode {
	case ModePassword:
		return a.PasswordHash.String, a.PasswordHash.Valid && a.PasswordHash.String != ""
	case ModePin:
		return a.PinHash.String, a.PinHash.Valid && a.PinHash.String != ""
	}
	return "", false
}

// PhoneMatches compares the supplied phone with the stored one.
func (a *UserAccount) PhoneMatches(phone string) bool {
	return a.Phone.Valid && a.Phone.String != "" && a.Phone.String == phone
}

// Identity builds the authenticated caller for this account.
func (a *UserAccount) Identity() *Identity {
	return NewIdentity(a.ID, a.DisplayName, a.Email, a.Phone.String, a.Permissions)
}

// LockoutState is the derived position of an account in the lockout state machine.
type LockoutState string

const (
	LockoutActive    LockoutState = "active"
	LockoutWarned    LockoutState = "warned"
	LockoutLockedOut LockoutState = "locked_out"
)

// LockoutResult is what storage reports back after counting a failed attempt.
type LockoutResult struct {
	FailedLoginAttempts int          `json:"failed_login_attempts"`
	IsLockedOut         bool         `json:"is_locked_out"`
	LockedOutAt         sql.NullTime `json:"locked_out_at"`
	// JustLocked is true only for the attempt that crossed the threshold.
	JustLocked bool `json:"just_locked"`
}

// ResetToken is the stored form of a password/PIN reset token. Only a digest
// of the token is kept.
type ResetToken struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TokenPair is an access/refresh token pair handed to a client.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
