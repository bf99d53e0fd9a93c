package auth

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymousIsNotAuthenticated(t *testing.T) {
	assert.False(t, Anonymous().IsAuthenticated())

	var nilID *Identity
	assert.False(t, nilID.IsAuthenticated())

	id := NewIdentity(7, "Ana", "ana@example.com", "", []Permission{EditUser})
	assert.True(t, id.IsAuthenticated())
	assert.True(t, id.Permissions.Has(EditUser))
}

func TestPermissionSetJSON(t *testing.T) {
	set := NewPermissionSet(EditUser, PreviewUserList, EditUser, "")

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["users:edit","users:preview"]`, string(data))

	var back PermissionSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, set, back)
}

func TestSecretHashFollowsMode(t *testing.T) {
	acct := &UserAccount{
		AuthMode:     ModePassword,
		PasswordHash: sql.NullString{String: "pw-hash", Valid: true},
	}
	h, ok := acct.SecretHash()
	assert.True(t, ok)
	assert.Equal(t, "pw-hash", h)

	acct.AuthMode = ModePin
	_, ok = acct.SecretHash()
	assert.False(t, ok, "pin mode without a pin hash has no secret")

	acct.AuthMode = "sso"
	_, ok = acct.SecretHash()
	assert.False(t, ok)
}

func TestModePhoneRequired(t *testing.T) {
	assert.True(t, ModePin.PhoneRequired())
	assert.False(t, ModePassword.PhoneRequired())
	assert.False(t, AuthenticationMode("x").Valid())
}
