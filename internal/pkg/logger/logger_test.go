package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "joh***@example.com",
		"a@b.co":               "a***@b.co",
		"no-at-sign":           "***",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+254***5678", MaskPhone("+254712345678"))
	assert.Equal(t, "***4567", MaskPhone("01-234567"))
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestNew(t *testing.T) {
	lg, err := New("development")
	require.NoError(t, err)
	assert.NotNil(t, lg)

	lg, err = New("production")
	require.NoError(t, err)
	assert.NotNil(t, lg)
}
