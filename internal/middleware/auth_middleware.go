// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"
	"adminauth-service/internal/pkg/response"
	authsvc "adminauth-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

// TokenValidator resolves a bearer token without touching storage.
type TokenValidator interface {
	Validate(token string) (*auth.Identity, error)
}

type AuthMiddleware struct {
	validator TokenValidator
	evaluator authsvc.PermissionEvaluator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Auth is the base authentication middleware that validates access tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		identity, err := m.validator.Validate(token)
		if err != nil {
			// Same message for every failure reason
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth never aborts; without a valid token the caller is anonymous.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := auth.Anonymous()
		if token := extractToken(c); token != "" {
			if id, err := m.validator.Validate(token); err == nil {
				identity = id
			}
		}
		setIdentity(c, identity)
		c.Next()
	}
}

// Require gates the route on an arbitrary permission predicate. Callers
// without an authenticated identity get 401 before the predicate runs.
func (m *AuthMiddleware) Require(pred authsvc.Predicate) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := m.evaluator.Check(GetIdentity(c), pred)
		switch {
		case err == nil:
			c.Next()
		case xerrors.Is(err, xerrors.ErrUnauthorized):
			response.Error(c, http.StatusUnauthorized, "authentication required", nil)
		default:
			response.Error(c, http.StatusForbidden, "insufficient permissions", nil)
		}
	}
}

// RequirePermission requires at least one of the given permissions.
// MUST be used after Auth() or OptionalAuth()
func (m *AuthMiddleware) RequirePermission(permissions ...auth.Permission) gin.HandlerFunc {
	return m.Require(authsvc.AnyOf(permissions...))
}

// RequireAllPermissions requires every given permission.
// MUST be used after Auth() or OptionalAuth()
func (m *AuthMiddleware) RequireAllPermissions(permissions ...auth.Permission) gin.HandlerFunc {
	return m.Require(authsvc.AllOf(permissions...))
}

// WithPermission returns middlewares for permission-based routes (Auth + RequirePermission)
func (m *AuthMiddleware) WithPermission(permissions ...auth.Permission) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequirePermission(permissions...),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
