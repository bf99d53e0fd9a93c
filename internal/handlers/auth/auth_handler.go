// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"
	"strconv"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/middleware"
	xerrors "adminauth-service/internal/pkg/errors"
	"adminauth-service/internal/pkg/logger"
	"adminauth-service/internal/pkg/response"
	authUsecase "adminauth-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service is the part of the auth service the HTTP layer calls.
type Service interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*authUsecase.LoginResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*auth.TokenPair, *auth.Identity, error)
	Logout(ctx context.Context, identity *auth.Identity) error
	GetAccountStatusBeforeLogin(ctx context.Context, email string) (*auth.AccountStatus, error)
	RequestReset(ctx context.Context, email string) error
	RedeemReset(ctx context.Context, req *auth.ResetPasswordRequest) error
	ChangeSecret(ctx context.Context, identity *auth.Identity, req *auth.ChangeSecretRequest) error
	UnlockAccount(ctx context.Context, userID int64) error
}

// Limiter throttles login and reset requests. A nil Limiter disables throttling.
type Limiter interface {
	CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, email string) error
	CheckPasswordResetAttempt(ctx context.Context, email string) (bool, error)
}

// LoginObserver counts login outcomes.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

type AuthHandler struct {
	authService Service
	limiter     Limiter
	metrics     LoginObserver
	logger      *zap.Logger
}

func NewAuthHandler(authService Service, limiter Limiter, metrics LoginObserver, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		limiter:     limiter,
		metrics:     metrics,
		logger:      logger,
	}
}

// ========== Login ==========

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	// Set IP and User-Agent
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	ctx := c.Request.Context()
	if h.limiter != nil {
		allowed, remaining, err := h.limiter.CheckLoginAttempt(ctx, req.IPAddress, req.Email)
		if err != nil {
			// fail open, the lockout counter still applies
			h.logger.Warn("login rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			response.TooManyRequests(c, "too many login attempts, try again later")
			return
		}
	}

	result, err := h.authService.Login(ctx, &req)
	if err != nil {
		h.logger.Error("login failed",
			logger.Email(req.Email),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		h.fail(c, err, "login failed")
		return
	}
	h.observe(result.Outcome)

	if result.Outcome != authUsecase.OutcomeSuccess {
		h.logger.Info("login rejected",
			logger.Email(req.Email),
			zap.String("ip", req.IPAddress),
			zap.Stringer("outcome", result.Outcome),
		)
		h.fail(c, result.Outcome.Err(), "login failed")
		return
	}

	if h.limiter != nil {
		if err := h.limiter.ResetLoginAttempts(ctx, req.IPAddress, req.Email); err != nil {
			h.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	h.logger.Info("user logged in", zap.Int64("user_id", result.Identity.UserID))

	response.Success(c, http.StatusOK, "login successful", auth.LoginResponse{
		TokenPair: *result.Tokens,
		User:      auth.NewUserInfo(result.Identity),
	})
}

func (h *AuthHandler) observe(outcome authUsecase.LoginOutcome) {
	if h.metrics != nil {
		h.metrics.ObserveLogin(outcome.String())
	}
}

// AccountStatus answers the pre-login probe
func (h *AuthHandler) AccountStatus(c *gin.Context) {
	var req auth.AccountStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	status, err := h.authService.GetAccountStatusBeforeLogin(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err, "failed to get account status")
		return
	}

	response.Success(c, http.StatusOK, "account status retrieved", status)
}

// ========== Sessions ==========

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	pair, identity, err := h.authService.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err, "token refresh failed")
		return
	}

	response.Success(c, http.StatusOK, "token refreshed", auth.LoginResponse{
		TokenPair: *pair,
		User:      auth.NewUserInfo(identity),
	})
}

// Logout handles user logout (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	if err := h.authService.Logout(c.Request.Context(), identity); err != nil {
		h.fail(c, err, "logout failed")
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// ========== Password / PIN Management ==========

// ChangeSecret changes the caller's password or PIN (requires auth)
func (h *AuthHandler) ChangeSecret(c *gin.Context) {
	var req auth.ChangeSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.authService.ChangeSecret(c.Request.Context(), middleware.GetIdentity(c), &req); err != nil {
		h.fail(c, err, "secret change failed")
		return
	}

	response.Success(c, http.StatusOK, "secret changed successfully", nil)
}

// ForgotPassword handles password reset request
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req auth.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	ctx := c.Request.Context()
	if h.limiter != nil {
		allowed, err := h.limiter.CheckPasswordResetAttempt(ctx, req.Email)
		if err != nil {
			h.logger.Warn("reset rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			response.TooManyRequests(c, "too many reset requests, try again later")
			return
		}
	}

	if err := h.authService.RequestReset(ctx, req.Email); err != nil {
		h.logger.Error("forgot password failed",
			logger.Email(req.Email),
			zap.Error(err),
		)
		// Don't reveal if email exists
	}

	// Always return success to prevent email enumeration
	response.Success(c, http.StatusOK, "if email exists, reset link has been sent", nil)
}

// ResetPassword completes a reset with the emailed token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req auth.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.authService.RedeemReset(c.Request.Context(), &req); err != nil {
		h.fail(c, err, "password reset failed")
		return
	}

	response.Success(c, http.StatusOK, "password reset successful", nil)
}

// ========== Profile ==========

// GetMe returns the caller as seen by the token (requires auth)
func (h *AuthHandler) GetMe(c *gin.Context) {
	response.Success(c, http.StatusOK, "profile retrieved", auth.NewUserInfo(middleware.GetIdentity(c)))
}

// ========== Admin-Only Endpoints ==========

// UnlockUser clears a lockout (requires UnlockUser)
func (h *AuthHandler) UnlockUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid user ID", nil)
		return
	}

	if err := h.authService.UnlockAccount(c.Request.Context(), userID); err != nil {
		h.fail(c, err, "failed to unlock user")
		return
	}

	h.logger.Info("user unlocked by admin",
		zap.Int64("user_id", userID),
		zap.Int64("admin_id", middleware.MustGetUserID(c)),
	)
	response.Success(c, http.StatusOK, "user unlocked", nil)
}

// PreviewUsers is the gate for the user list (requires PreviewUserList).
// Listing itself lives in the user service; this echoes the caller.
func (h *AuthHandler) PreviewUsers(c *gin.Context) {
	response.Success(c, http.StatusOK, "access granted", gin.H{
		"viewer": auth.NewUserInfo(middleware.GetIdentity(c)),
	})
}

// fail maps service errors to status codes. Infrastructure details never
// reach the client.
func (h *AuthHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case xerrors.Is(err, xerrors.ErrInfrastructure):
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c)
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, err.Error(), nil)
	case xerrors.Is(err, xerrors.ErrInvalidOrExpiredResetToken):
		response.Error(c, http.StatusBadRequest, xerrors.ErrInvalidOrExpiredResetToken.Error(), nil)
	case xerrors.Is(err, xerrors.ErrInvalidCredentials),
		xerrors.Is(err, xerrors.ErrInvalidToken),
		xerrors.Is(err, xerrors.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, err.Error(), nil)
	case xerrors.Is(err, xerrors.ErrAccountInactive),
		xerrors.Is(err, xerrors.ErrForbidden):
		response.Error(c, http.StatusForbidden, err.Error(), nil)
	case xerrors.Is(err, xerrors.ErrAccountLockedOut):
		response.Error(c, http.StatusLocked, err.Error(), nil)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, err.Error(), nil)
	case xerrors.Is(err, xerrors.ErrRateLimited):
		response.TooManyRequests(c, err.Error())
	default:
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, fallback, nil)
	}
}
