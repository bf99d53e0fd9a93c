// internal/middleware/helpers.go
package middleware

import (
	"adminauth-service/internal/domain/auth"

	"github.com/gin-gonic/gin"
)

const (
	identityKey  = "identity"
	RequestIDKey = "request_id"
)

func setIdentity(c *gin.Context, identity *auth.Identity) {
	c.Set(identityKey, identity)
	if identity.IsAuthenticated() {
		c.Set("user_id", identity.UserID)
	}
}

// GetIdentity returns the caller resolved by the auth middleware, or the
// anonymous identity.
func GetIdentity(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*auth.Identity); ok && id != nil {
			return id
		}
	}
	return auth.Anonymous()
}

// GetUserID gets the authenticated user ID from context
func GetUserID(c *gin.Context) (int64, bool) {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		return 0, false
	}
	return id.UserID, true
}

// MustGetUserID gets user ID from context or panics
func MustGetUserID(c *gin.Context) int64 {
	id, ok := GetUserID(c)
	if !ok {
		panic("user_id not found in context")
	}
	return id
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	return GetIdentity(c).IsAuthenticated()
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
