package auth

// Identity is the resolved caller for a single request. It is built from a
// validated access token or right after login and is never persisted.
type Identity struct {
	UserID        int64         `json:"user_id"`
	DisplayName   string        `json:"display_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	Permissions   PermissionSet `json:"permissions"`
	authenticated bool
}

// NewIdentity returns an authenticated identity.
func NewIdentity(userID int64, displayName, email, phone string, perms []Permission) *Identity {
	return &Identity{
		UserID:        userID,
		DisplayName:   displayName,
		Email:         email,
		Phone:         phone,
		Permissions:   NewPermissionSet(perms...),
		authenticated: true,
	}
}

// Anonymous returns the identity of a caller without a valid token.
func Anonymous() *Identity {
	return &Identity{Permissions: NewPermissionSet()}
}

func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.authenticated
}
