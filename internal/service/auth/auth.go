// internal/service/auth/auth.go
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/events"
	xerrors "adminauth-service/internal/pkg/errors"
	"adminauth-service/internal/pkg/logger"

	"go.uber.org/zap"
)

// LoginOutcome is the terminal state of one login attempt.
type LoginOutcome int

const (
	OutcomeSuccess LoginOutcome = iota
	OutcomeInvalidCredentials
	OutcomeAccountInactive
	OutcomeAccountLockedOut
)

func (o LoginOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredentials:
		return "invalid_credentials"
	case OutcomeAccountInactive:
		return "account_inactive"
	case OutcomeAccountLockedOut:
		return "account_locked_out"
	}
	return "unknown"
}

// Err maps a failed outcome to its sentinel error, nil for success.
func (o LoginOutcome) Err() error {
	switch o {
	case OutcomeSuccess:
		return nil
	case OutcomeAccountInactive:
		return xerrors.ErrAccountInactive
	case OutcomeAccountLockedOut:
		return xerrors.ErrAccountLockedOut
	}
	return xerrors.ErrInvalidCredentials
}

// LoginResult carries the identity and tokens on success only.
type LoginResult struct {
	Outcome  LoginOutcome
	Identity *auth.Identity
	Tokens   *auth.TokenPair
}

type AuthService struct {
	accounts  AccountStore
	verifier  *CredentialVerifier
	lockout   *LockoutTracker
	tokens    *TokenIssuer
	resets    *ResetTokenManager
	hasher    SecretHasher
	notifier  Notifier
	publisher events.Publisher
	evaluator PermissionEvaluator
	policy    SecretPolicy
	logger    *zap.Logger
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	accounts AccountStore,
	verifier *CredentialVerifier,
	lockout *LockoutTracker,
	tokens *TokenIssuer,
	resets *ResetTokenManager,
	hasher SecretHasher,
	notifier Notifier,
	publisher events.Publisher,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop
	}
	return &AuthService{
		accounts:  accounts,
		verifier:  verifier,
		lockout:   lockout,
		tokens:    tokens,
		resets:    resets,
		hasher:    hasher,
		notifier:  notifier,
		publisher: publisher,
		policy:    DefaultSecretPolicy(),
		logger:    logger,
		now:       time.Now,
	}
}

// WithSecretPolicy overrides the default password/PIN policy.
func (s *AuthService) WithSecretPolicy(p SecretPolicy) *AuthService {
	s.policy = p
	return s
}

// ========== Login ==========

// Login runs one authentication attempt. The returned error is non-nil only
// for infrastructure failures; every business outcome is in the result.
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.Infra(err, "find account")
		}
		// Unknown email costs the same as a wrong secret.
		s.burnVerification(req.Secret)
		s.logger.Info("login failed: unknown email", logger.Email(email))
		return &LoginResult{Outcome: OutcomeInvalidCredentials}, nil
	}

	if account.AuthMode.PhoneRequired() && !account.PhoneMatches(strings.TrimSpace(req.Phone)) {
		s.burnVerification(req.Secret)
		s.logger.Info("login failed: phone mismatch", zap.Int64("user_id", account.ID))
		return &LoginResult{Outcome: OutcomeInvalidCredentials}, nil
	}

	// Check account state before touching the credential
	if !account.IsActive {
		emit(ctx, s.publisher, s.logger, s.event(auth.EventInactiveUserTriesToLogIn, account, req))
		return &LoginResult{Outcome: OutcomeAccountInactive}, nil
	}
	if s.lockout.IsLocked(account) {
		emit(ctx, s.publisher, s.logger, s.event(auth.EventLockedUserTriesToLogIn, account, req))
		return &LoginResult{Outcome: OutcomeAccountLockedOut}, nil
	}

	if !s.verifier.Verify(account, req.Secret) {
		if _, err := s.lockout.RecordFailure(ctx, account); err != nil {
			return nil, err
		}
		return &LoginResult{Outcome: OutcomeInvalidCredentials}, nil
	}

	if err := s.lockout.RecordSuccess(ctx, account); err != nil {
		return nil, err
	}

	identity := account.Identity()
	tokens, err := s.tokens.IssuePair(ctx, identity)
	if err != nil {
		return nil, err
	}

	emit(ctx, s.publisher, s.logger, s.event(auth.EventUserLoggedIn, account, req))
	s.logger.Info("user logged in",
		zap.Int64("user_id", account.ID),
		zap.String("mode", string(account.AuthMode)),
	)

	return &LoginResult{Outcome: OutcomeSuccess, Identity: identity, Tokens: tokens}, nil
}

func (s *AuthService) event(t auth.EventType, account *auth.UserAccount, req *auth.LoginRequest) auth.Event {
	ev := auth.NewEvent(t, account, s.now())
	if req != nil && (req.IPAddress != "" || req.UserAgent != "") {
		ev.Metadata = map[string]string{
			"ip_address": req.IPAddress,
			"user_agent": req.UserAgent,
		}
	}
	return ev
}

// burnVerification runs one hash check against a fixed hash so that callers
// with an unknown email wait about as long as callers with a wrong secret.
func (s *AuthService) burnVerification(secret string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equaliser")
		if err != nil {
			s.logger.Warn("failed to prepare dummy hash", zap.Error(err))
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash == "" || secret == "" {
		return
	}
	_, _ = s.hasher.Verify(secret, s.dummyHash)
}

// ========== Sessions ==========

func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*auth.TokenPair, *auth.Identity, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

func (s *AuthService) Validate(token string) (*auth.Identity, error) {
	return s.tokens.Validate(token)
}

// Logout drops the caller's refresh token. Access tokens stay valid until
// they expire.
func (s *AuthService) Logout(ctx context.Context, identity *auth.Identity) error {
	if !identity.IsAuthenticated() {
		return xerrors.ErrUnauthorized
	}
	s.tokens.Revoke(ctx, identity.UserID)
	return nil
}

// GetAccountStatusBeforeLogin tells the client how to shape the login form.
// Unknown, inactive and locked accounts all answer the same way as a normal
// account would.
func (s *AuthService) GetAccountStatusBeforeLogin(ctx context.Context, email string) (*auth.AccountStatus, error) {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return &auth.AccountStatus{PhoneRequired: false, AuthMode: auth.ModePassword}, nil
		}
		return nil, xerrors.Infra(err, "find account")
	}

	mode := account.AuthMode
	if !mode.Valid() {
		mode = auth.ModePassword
	}
	return &auth.AccountStatus{PhoneRequired: mode.PhoneRequired(), AuthMode: mode}, nil
}

// ========== Authorization ==========

func (s *AuthService) Authorize(identity *auth.Identity, pred Predicate) bool {
	return s.evaluator.Authorize(identity, pred)
}

// Check is Authorize with 401/403 sentinels.
func (s *AuthService) Check(identity *auth.Identity, pred Predicate) error {
	return s.evaluator.Check(identity, pred)
}

// ========== Password / PIN Reset ==========

// RequestReset issues a reset token and hands it to the notifier. It reports
// nothing about whether the email exists.
func (s *AuthService) RequestReset(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Info("reset requested for unknown email", logger.Email(email))
			return nil
		}
		return xerrors.Infra(err, "find account")
	}
	if !account.IsActive {
		s.logger.Info("reset requested for inactive account", zap.Int64("user_id", account.ID))
		return nil
	}

	token, err := s.resets.CreateResetToken(ctx, account.ID)
	if err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.SendResetToken(ctx, account, token); err != nil {
			s.logger.Error("failed to deliver reset token", zap.Int64("user_id", account.ID), zap.Error(err))
		}
	}
	return nil
}

// RedeemReset sets a new secret for the account's active mode using a reset
// token. Success clears any lockout and ends existing refresh sessions.
func (s *AuthService) RedeemReset(ctx context.Context, req *auth.ResetPasswordRequest) error {
	account, err := s.accounts.FindByID(ctx, req.UserID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrInvalidOrExpiredResetToken
		}
		return xerrors.Infra(err, "find account")
	}
	if !account.IsActive {
		return xerrors.ErrInvalidOrExpiredResetToken
	}

	// Reject a bad secret before burning the token
	if err := s.policy.Check(account.AuthMode, req.NewSecret); err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(req.NewSecret)
	if err != nil {
		return xerrors.Infra(err, "hash secret")
	}

	ok, err := s.resets.RedeemResetToken(ctx, account.ID, req.Token, func() error {
		return s.writeSecret(ctx, account, hashed)
	})
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.ErrInvalidOrExpiredResetToken
	}

	// Possession of the token counts as a successful authentication
	if err := s.lockout.RecordSuccess(ctx, account); err != nil {
		return err
	}
	s.tokens.Revoke(ctx, account.ID)

	emit(ctx, s.publisher, s.logger, auth.NewEvent(auth.EventUserPasswordChanged, account, s.now()))
	return nil
}

// ChangeSecret replaces the caller's secret after re-checking the current one.
// A wrong current secret counts towards lockout.
func (s *AuthService) ChangeSecret(ctx context.Context, identity *auth.Identity, req *auth.ChangeSecretRequest) error {
	if !identity.IsAuthenticated() {
		return xerrors.ErrUnauthorized
	}

	account, err := s.accounts.FindByID(ctx, identity.UserID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrUnauthorized
		}
		return xerrors.Infra(err, "find account")
	}
	if !account.IsActive {
		return xerrors.ErrAccountInactive
	}
	if account.IsLockedOut {
		return xerrors.ErrAccountLockedOut
	}

	if !s.verifier.Verify(account, req.CurrentSecret) {
		if _, err := s.lockout.RecordFailure(ctx, account); err != nil {
			return err
		}
		return xerrors.ErrInvalidCredentials
	}

	if err := s.policy.Check(account.AuthMode, req.NewSecret); err != nil {
		return err
	}
	if err := s.storeSecret(ctx, account, req.NewSecret); err != nil {
		return err
	}
	s.tokens.Revoke(ctx, account.ID)

	emit(ctx, s.publisher, s.logger, auth.NewEvent(auth.EventUserPasswordChanged, account, s.now()))
	return nil
}

func (s *AuthService) storeSecret(ctx context.Context, account *auth.UserAccount, secret string) error {
	hashed, err := s.hasher.Hash(secret)
	if err != nil {
		return xerrors.Infra(err, "hash secret")
	}
	return s.writeSecret(ctx, account, hashed)
}

func (s *AuthService) writeSecret(ctx context.Context, account *auth.UserAccount, hashed string) error {
	if err := s.accounts.UpdateSecret(ctx, account.ID, account.AuthMode, hashed, s.now()); err != nil {
		return xerrors.Infra(err, "update secret")
	}
	switch account.AuthMode {
	case auth.ModePin:
		account.PinHash.String, account.PinHash.Valid = hashed, true
	default:
		account.PasswordHash.String, account.PasswordHash.Valid = hashed, true
	}
	return nil
}

// ========== Administration ==========

// UnlockAccount clears the lockout of userID.
func (s *AuthService) UnlockAccount(ctx context.Context, userID int64) error {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrNotFound
		}
		return xerrors.Infra(err, "find account")
	}
	if err := s.lockout.Unlock(ctx, account); err != nil {
		return err
	}
	s.logger.Info("account unlocked", zap.Int64("user_id", userID))
	return nil
}
