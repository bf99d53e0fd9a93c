// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

// Claims represents the JWT claims. Refresh tokens carry only the user id.
type Claims struct {
	UserID         int64    `json:"uid"`
	DisplayName    string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
	SessionPurpose string   `json:"session_purpose"`
	jwt.RegisteredClaims
}

// HasPermission checks if the claims contain a specific permission
func (c *Claims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
