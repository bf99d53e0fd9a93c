// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	purpose  string
	Ttl      time.Duration
	now      func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid, purpose string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		purpose:  purpose,
		Ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Issued is a signed token together with its id and expiry.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Generate signs claims with this generator's purpose, audience and TTL.
// Registered claims supplied by the caller are overwritten.
func (g *Generator) Generate(claims Claims) (*Issued, error) {
	if g.priv == nil {
		return nil, fmt.Errorf("jwt generator has nil private key")
	}

	now := g.now()
	jti := ulid.Make().String()
	exp := now.Add(g.Ttl)

	claims.SessionPurpose = g.purpose
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    g.issuer,
		Subject:   fmt.Sprintf("%d", claims.UserID),
		Audience:  []string{g.audience},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        jti,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Issued{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}
