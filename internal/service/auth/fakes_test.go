package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"
	"adminauth-service/internal/pkg/hash"
	"adminauth-service/internal/pkg/jwt"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ---- accounts ----

type memAccounts struct {
	mu       sync.Mutex
	byID     map[int64]*auth.UserAccount
	findErr   error
	writeErr  error
	secretErr error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[int64]*auth.UserAccount{}}
}

func cloneAccount(a *auth.UserAccount) *auth.UserAccount {
	c := *a
	c.Permissions = append([]auth.Permission(nil), a.Permissions...)
	return &c
}

func (m *memAccounts) put(a *auth.UserAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = cloneAccount(a)
}

func (m *memAccounts) get(id int64) *auth.UserAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAccount(m.byID[id])
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*auth.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, email) && !a.IsDeleted {
			return cloneAccount(a), nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m *memAccounts) FindByID(_ context.Context, id int64) (*auth.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.byID[id]
	if !ok || a.IsDeleted {
		return nil, xerrors.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (m *memAccounts) RecordFailedAttempt(_ context.Context, id int64, threshold int, at time.Time) (*auth.LockoutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	wasLocked := a.IsLockedOut
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= threshold && !wasLocked {
		a.IsLockedOut = true
		a.LockedOutAt = sql.NullTime{Time: at, Valid: true}
	}
	return &auth.LockoutResult{
		FailedLoginAttempts: a.FailedLoginAttempts,
		IsLockedOut:         a.IsLockedOut,
		LockedOutAt:         a.LockedOutAt,
		JustLocked:          a.IsLockedOut && !wasLocked,
	}, nil
}

func (m *memAccounts) RecordSuccessfulLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	a, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	a.FailedLoginAttempts = 0
	a.IsLockedOut = false
	a.LockedOutAt = sql.NullTime{}
	a.LastLoginAt = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (m *memAccounts) Unlock(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	a.FailedLoginAttempts = 0
	a.IsLockedOut = false
	a.LockedOutAt = sql.NullTime{}
	return nil
}

func (m *memAccounts) UpdateSecret(_ context.Context, id int64, mode auth.AuthenticationMode, secretHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secretErr != nil {
		return m.secretErr
	}
	a, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	switch mode {
	case auth.ModePassword:
		a.PasswordHash = sql.NullString{String: secretHash, Valid: true}
	case auth.ModePin:
		a.PinHash = sql.NullString{String: secretHash, Valid: true}
	default:
		return xerrors.ErrInvalidInput
	}
	a.UpdatedAt = at
	return nil
}

// ---- reset tokens ----

type memResets struct {
	mu   sync.Mutex
	recs map[int64]auth.ResetToken
}

func newMemResets() *memResets {
	return &memResets{recs: map[int64]auth.ResetToken{}}
}

func (m *memResets) Upsert(_ context.Context, token *auth.ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[token.UserID] = *token
	return nil
}

func (m *memResets) Find(_ context.Context, userID int64) (*auth.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &rec, nil
}

func (m *memResets) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, userID)
	return nil
}

func (m *memResets) Consume(_ context.Context, userID int64, tokenHash string, notBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[userID]
	if !ok || rec.TokenHash != tokenHash || rec.CreatedAt.Before(notBefore) {
		return false, nil
	}
	delete(m.recs, userID)
	return true, nil
}

// ---- refresh tokens ----

type memRefresh struct {
	mu     sync.Mutex
	active map[int64]string
}

func newMemRefresh() *memRefresh {
	return &memRefresh{active: map[int64]string{}}
}

func (m *memRefresh) Activate(_ context.Context, userID int64, jti string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[userID] = jti
	return nil
}

func (m *memRefresh) Rotate(_ context.Context, userID int64, presented, next string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[userID]; !ok || cur != presented {
		return false, nil
	}
	m.active[userID] = next
	return true, nil
}

func (m *memRefresh) Revoke(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, userID)
	return nil
}

func (m *memRefresh) activeFor(userID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jti, ok := m.active[userID]
	return jti, ok
}

// ---- events / notifications ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []auth.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev auth.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []auth.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]auth.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) count(t auth.EventType) int {
	n := 0
	for _, got := range p.types() {
		if got == t {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens map[int64]string
	err    error
}

func (n *recordingNotifier) SendResetToken(_ context.Context, account *auth.UserAccount, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = map[int64]string{}
	}
	n.tokens[account.ID] = token
	return n.err
}

func (n *recordingNotifier) last(userID int64) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[userID]
}

// ---- clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ---- fixture ----

var (
	keysOnce   sync.Once
	accessKey  *rsa.PrivateKey
	refreshKey *rsa.PrivateKey
	keysErr    error
)

func testManager(t *testing.T, clock *fakeClock) *jwt.Manager {
	t.Helper()
	keysOnce.Do(func() {
		accessKey, keysErr = rsa.GenerateKey(rand.Reader, 2048)
		if keysErr != nil {
			return
		}
		refreshKey, keysErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keysErr)

	cfg := jwt.Config{
		Issuer:  "adminauth",
		Access:  jwt.KeyConfig{Audience: "admin-api", TTL: 15 * time.Minute, KID: "access-1"},
		Refresh: jwt.KeyConfig{Audience: "admin-refresh", TTL: 24 * time.Hour, KID: "refresh-1"},
	}
	m, err := jwt.NewManager(cfg, accessKey, &accessKey.PublicKey, refreshKey, &refreshKey.PublicKey)
	require.NoError(t, err)
	return m.WithClock(clock.Now)
}

type fixture struct {
	clock      *fakeClock
	accounts   *memAccounts
	resetStore *memResets
	refresh    *memRefresh
	pub        *recordingPublisher
	notifier   *recordingNotifier
	hasher     *hash.Hasher

	verifier *CredentialVerifier
	lockout  *LockoutTracker
	tokens   *TokenIssuer
	resets   *ResetTokenManager
	svc      *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)

	f := &fixture{
		clock:      newFakeClock(),
		accounts:   newMemAccounts(),
		resetStore: newMemResets(),
		refresh:    newMemRefresh(),
		pub:        &recordingPublisher{},
		notifier:   &recordingNotifier{},
		hasher:     hash.NewHasher(hash.NewBcrypt(4)),
	}

	f.verifier = NewCredentialVerifier(f.hasher, log)
	f.lockout = NewLockoutTracker(f.accounts, f.pub, 3, log)
	f.lockout.now = f.clock.Now
	f.tokens = NewTokenIssuer(testManager(t, f.clock), f.refresh, f.accounts, log)
	f.resets = NewResetTokenManager(f.resetStore, time.Hour)
	f.resets.now = f.clock.Now
	f.svc = NewAuthService(f.accounts, f.verifier, f.lockout, f.tokens, f.resets, f.hasher, f.notifier, f.pub, log)
	f.svc.now = f.clock.Now
	return f
}

func (f *fixture) addPasswordAccount(t *testing.T, id int64, email, password string, perms ...auth.Permission) *auth.UserAccount {
	t.Helper()
	h, err := f.hasher.Hash(password)
	require.NoError(t, err)

	a := &auth.UserAccount{
		ID:           id,
		Email:        email,
		DisplayName:  "User " + email,
		PasswordHash: sql.NullString{String: h, Valid: true},
		AuthMode:     auth.ModePassword,
		IsActive:     true,
		Permissions:  perms,
	}
	f.accounts.put(a)
	return cloneAccount(a)
}

func (f *fixture) addPinAccount(t *testing.T, id int64, email, phone, pin string) *auth.UserAccount {
	t.Helper()
	h, err := f.hasher.Hash(pin)
	require.NoError(t, err)

	a := &auth.UserAccount{
		ID:          id,
		Email:       email,
		Phone:       sql.NullString{String: phone, Valid: true},
		DisplayName: "Pin " + email,
		PinHash:     sql.NullString{String: h, Valid: true},
		AuthMode:    auth.ModePin,
		IsActive:    true,
	}
	f.accounts.put(a)
	return cloneAccount(a)
}

func (f *fixture) login(t *testing.T, email, secret string) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), &auth.LoginRequest{Email: email, Secret: secret})
	require.NoError(t, err)
	return res
}
