package auth

import (
	"context"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"
	"adminauth-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

// TokenIssuer mints and checks access/refresh tokens. When a refresh store is
// configured every refresh token is single use.
type TokenIssuer struct {
	jwt      *jwt.Manager
	refresh  RefreshTokenStore
	accounts AccountStore
	logger   *zap.Logger
}

func NewTokenIssuer(manager *jwt.Manager, refresh RefreshTokenStore, accounts AccountStore, logger *zap.Logger) *TokenIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenIssuer{
		jwt:      manager,
		refresh:  refresh,
		accounts: accounts,
		logger:   logger,
	}
}

func (t *TokenIssuer) IssueAccessToken(identity *auth.Identity) (*jwt.Issued, error) {
	if !identity.IsAuthenticated() {
		return nil, xerrors.ErrUnauthorized
	}
	issued, err := t.jwt.AccessGenerator.Generate(jwt.Claims{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		Phone:       identity.Phone,
		Permissions: identity.Permissions.Strings(),
	})
	if err != nil {
		return nil, xerrors.Infra(err, "issue access token")
	}
	return issued, nil
}

func (t *TokenIssuer) IssueRefreshToken(ctx context.Context, userID int64) (*jwt.Issued, error) {
	issued, err := t.jwt.RefreshGenerator.Generate(jwt.Claims{UserID: userID})
	if err != nil {
		return nil, xerrors.Infra(err, "issue refresh token")
	}
	if t.refresh != nil {
		if err := t.refresh.Activate(ctx, userID, issued.JTI, t.jwt.RefreshGenerator.Ttl); err != nil {
			return nil, xerrors.Infra(err, "store refresh token")
		}
	}
	return issued, nil
}

// IssuePair issues both tokens; the refresh token becomes the active one.
func (t *TokenIssuer) IssuePair(ctx context.Context, identity *auth.Identity) (*auth.TokenPair, error) {
	access, err := t.IssueAccessToken(identity)
	if err != nil {
		return nil, err
	}
	refresh, err := t.IssueRefreshToken(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	return t.pair(access, refresh), nil
}

func (t *TokenIssuer) pair(access, refresh *jwt.Issued) *auth.TokenPair {
	return &auth.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		TokenType:        "Bearer",
		ExpiresIn:        int(t.jwt.AccessGenerator.Ttl.Seconds()),
		ExpiresAt:        access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}

// Validate turns an access token into an identity. Every failure is reported
// as ErrInvalidToken; the reason is only logged.
func (t *TokenIssuer) Validate(token string) (*auth.Identity, error) {
	if token == "" {
		return nil, xerrors.ErrInvalidToken
	}
	claims, err := t.jwt.AccessVerifier.Verify(token)
	if err != nil {
		t.logger.Debug("access token rejected", zap.Error(err))
		return nil, xerrors.ErrInvalidToken
	}
	perms := auth.PermissionsFromStrings(claims.Permissions).Slice()
	return auth.NewIdentity(claims.UserID, claims.DisplayName, claims.Email, claims.Phone, perms), nil
}

// Refresh exchanges a refresh token for a new pair. The account is re-read so
// permission changes and deactivation take effect on the next refresh.
func (t *TokenIssuer) Refresh(ctx context.Context, token string) (*auth.TokenPair, *auth.Identity, error) {
	if token == "" {
		return nil, nil, xerrors.ErrInvalidToken
	}
	claims, err := t.jwt.RefreshVerifier.Verify(token)
	if err != nil {
		t.logger.Debug("refresh token rejected", zap.Error(err))
		return nil, nil, xerrors.ErrInvalidToken
	}

	account, err := t.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, nil, xerrors.ErrInvalidToken
		}
		return nil, nil, xerrors.Infra(err, "load account for refresh")
	}
	if !account.IsActive || account.IsLockedOut || account.IsDeleted {
		t.Revoke(ctx, account.ID)
		return nil, nil, xerrors.ErrInvalidToken
	}

	identity := account.Identity()
	access, err := t.IssueAccessToken(identity)
	if err != nil {
		return nil, nil, err
	}
	next, err := t.jwt.RefreshGenerator.Generate(jwt.Claims{UserID: account.ID})
	if err != nil {
		return nil, nil, xerrors.Infra(err, "issue refresh token")
	}

	if t.refresh != nil {
		ok, err := t.refresh.Rotate(ctx, account.ID, claims.ID, next.JTI, t.jwt.RefreshGenerator.Ttl)
		if err != nil {
			return nil, nil, xerrors.Infra(err, "rotate refresh token")
		}
		if !ok {
			// A stale token was presented; the chain may be stolen.
			t.logger.Warn("refresh token reuse detected", zap.Int64("user_id", account.ID))
			t.Revoke(ctx, account.ID)
			return nil, nil, xerrors.ErrInvalidToken
		}
	}

	return t.pair(access, next), identity, nil
}

// Revoke drops the active refresh token for userID. Failures are logged.
func (t *TokenIssuer) Revoke(ctx context.Context, userID int64) {
	if t.refresh == nil {
		return
	}
	if err := t.refresh.Revoke(ctx, userID); err != nil {
		t.logger.Warn("failed to revoke refresh token", zap.Int64("user_id", userID), zap.Error(err))
	}
}
