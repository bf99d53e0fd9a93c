// internal/domain/auth/dto.go
package auth

// LoginRequest for user login. Secret is the password or the PIN depending on
// the account's mode.
type LoginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
	Secret    string `json:"secret" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse successful login response
type LoginResponse struct {
	TokenPair
	User UserInfo `json:"user"`
}

// UserInfo minimal user information
type UserInfo struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	DisplayName string   `json:"display_name"`
	Permissions []string `json:"permissions"`
}

// NewUserInfo flattens an identity for responses.
func NewUserInfo(id *Identity) UserInfo {
	return UserInfo{
		UserID:      id.UserID,
		Email:       id.Email,
		Phone:       id.Phone,
		DisplayName: id.DisplayName,
		Permissions: id.Permissions.Strings(),
	}
}

// RefreshRequest exchanges a refresh token for a new pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AccountStatusRequest asks how the login form should look for an email
type AccountStatusRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AccountStatus is the pre-login probe answer. It must never carry lockout or
// activation state.
type AccountStatus struct {
	PhoneRequired bool               `json:"phone_required"`
	AuthMode      AuthenticationMode `json:"auth_mode"`
}

// ForgotPasswordRequest for password/PIN reset
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest for completing a reset
type ResetPasswordRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Token     string `json:"token" binding:"required"`
	NewSecret string `json:"new_secret" binding:"required"`
}

// ChangeSecretRequest for an authenticated password/PIN change
type ChangeSecretRequest struct {
	CurrentSecret string `json:"current_secret" binding:"required"`
	NewSecret     string `json:"new_secret" binding:"required"`
}
