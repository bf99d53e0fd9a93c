// internal/pkg/jwt/loader.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"
)

// KeyConfig points at one RSA key pair and the audience it signs for.
type KeyConfig struct {
	PrivPath string
	PubPath  string
	Audience string
	TTL      time.Duration
	KID      string
}

// Config holds separate keys for access and refresh tokens so one can never
// be verified as the other.
type Config struct {
	Issuer  string
	Access  KeyConfig
	Refresh KeyConfig
}

type Manager struct {
	AccessGenerator  *Generator
	AccessVerifier   *Verifier
	RefreshGenerator *Generator
	RefreshVerifier  *Verifier
}

func LoadAndBuild(cfg Config) (*Manager, error) {
	accessPriv, accessPub, err := loadPair(cfg.Access)
	if err != nil {
		return nil, fmt.Errorf("access keys: %w", err)
	}
	refreshPriv, refreshPub, err := loadPair(cfg.Refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh keys: %w", err)
	}
	return NewManager(cfg, accessPriv, accessPub, refreshPriv, refreshPub)
}

// NewManager builds a Manager from already loaded keys.
func NewManager(cfg Config, accessPriv *rsa.PrivateKey, accessPub *rsa.PublicKey, refreshPriv *rsa.PrivateKey, refreshPub *rsa.PublicKey) (*Manager, error) {
	if cfg.Access.Audience == cfg.Refresh.Audience {
		return nil, fmt.Errorf("access and refresh audiences must differ")
	}

	return &Manager{
		AccessGenerator:  NewGenerator(accessPriv, cfg.Issuer, cfg.Access.Audience, cfg.Access.KID, PurposeAccess, cfg.Access.TTL),
		AccessVerifier:   NewVerifier(accessPub, cfg.Issuer, cfg.Access.Audience, PurposeAccess),
		RefreshGenerator: NewGenerator(refreshPriv, cfg.Issuer, cfg.Refresh.Audience, cfg.Refresh.KID, PurposeRefresh, cfg.Refresh.TTL),
		RefreshVerifier:  NewVerifier(refreshPub, cfg.Issuer, cfg.Refresh.Audience, PurposeRefresh),
	}, nil
}

// WithClock sets the time source on all four parts.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.AccessGenerator.WithClock(now)
	m.AccessVerifier.WithClock(now)
	m.RefreshGenerator.WithClock(now)
	m.RefreshVerifier.WithClock(now)
	return m
}

func loadPair(kc KeyConfig) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	priv, err := LoadRSAPrivateKeyFromPEM(kc.PrivPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load private key from %s: %w", kc.PrivPath, err)
	}

	pub, err := LoadRSAPublicKeyFromPEM(kc.PubPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load public key from %s: %w", kc.PubPath, err)
	}
	return priv, pub, nil
}
