// Package hash wraps the password/PIN hashing algorithms the service accepts.
package hash

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrUnknownHashFormat = errors.New("hash: unknown encoded hash format")

// Algorithm hashes new secrets and checks a secret against its own encoding.
type Algorithm interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
	// Recognizes reports whether encoded was produced by this algorithm.
	Recognizes(encoded string) bool
}

// Hasher hashes with a preferred algorithm and verifies any stored hash whose
// format it recognizes, so accounts migrate lazily between algorithms.
type Hasher struct {
	preferred Algorithm
	known     []Algorithm
}

func NewHasher(preferred Algorithm, others ...Algorithm) *Hasher {
	return &Hasher{
		preferred: preferred,
		known:     append([]Algorithm{preferred}, others...),
	}
}

// New builds the default hasher for the configured algorithm name
// ("bcrypt" or "argon2id"). Both formats are always verifiable.
func New(algorithm string) (*Hasher, error) {
	bc := NewBcrypt(bcrypt.DefaultCost)
	ar := NewArgon2id(DefaultArgon2Config())

	switch strings.ToLower(algorithm) {
	case "", "bcrypt":
		return NewHasher(bc, ar), nil
	case "argon2id", "argon2":
		return NewHasher(ar, bc), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

func (h *Hasher) Hash(secret string) (string, error) {
	return h.preferred.Hash(secret)
}

func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	if secret == "" || encoded == "" {
		return false, nil
	}
	for _, alg := range h.known {
		if alg.Recognizes(encoded) {
			return alg.Verify(secret, encoded)
		}
	}
	return false, ErrUnknownHashFormat
}

// Bcrypt is the default algorithm for stored hashes.
type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(secret string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(secret, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("bcrypt: %w", err)
}

func (b *Bcrypt) Recognizes(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
