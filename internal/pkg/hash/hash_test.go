package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon() *Argon2id {
	return NewArgon2id(Argon2Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

func TestArgon2idRoundTrip(t *testing.T) {
	a := fastArgon()

	encoded, err := a.Hash("Sup3r$ecret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "argon2id$v=19$m=8192,t=1,p=1$"))
	assert.True(t, a.Recognizes(encoded))

	ok, err := a.Verify("Sup3r$ecret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Verify("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2idRejectsMalformed(t *testing.T) {
	a := fastArgon()

	for _, encoded := range []string{
		"argon2id$v=19$m=8192,t=1$salt$hash",
		"argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		_, err := a.Verify("x", encoded)
		assert.Error(t, err, encoded)
	}
}

func TestHasherVerifiesBothFormats(t *testing.T) {
	bc := NewBcrypt(bcrypt.MinCost)
	ar := fastArgon()
	h := NewHasher(ar, bc)

	legacy, err := bc.Hash("1234")
	require.NoError(t, err)
	ok, err := h.Verify("1234", legacy)
	require.NoError(t, err)
	assert.True(t, ok)

	fresh, err := h.Hash("1234")
	require.NoError(t, err)
	assert.True(t, ar.Recognizes(fresh))
	ok, err = h.Verify("1234", fresh)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("1235", fresh)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasherUnknownFormat(t *testing.T) {
	h := NewHasher(NewBcrypt(bcrypt.MinCost))

	ok, err := h.Verify("secret", "md5:abcdef")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnknownHashFormat)

	ok, err = h.Verify("", "$2a$04$whatever")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestNewByName(t *testing.T) {
	h, err := New("argon2id")
	require.NoError(t, err)
	_, isArgon := h.preferred.(*Argon2id)
	assert.True(t, isArgon)

	h, err = New("")
	require.NoError(t, err)
	_, isBcrypt := h.preferred.(*Bcrypt)
	assert.True(t, isBcrypt)

	_, err = New("md5")
	assert.Error(t, err)
}
