package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse", auth.PreviewUserList)

	res, err := f.svc.Login(context.Background(), &auth.LoginRequest{
		Email:     "ANA@example.com",
		Secret:    "correct-horse",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.NoError(t, res.Outcome.Err())
	assert.Equal(t, int64(1), res.Identity.UserID)
	assert.True(t, res.Identity.Permissions.Has(auth.PreviewUserList))
	require.NotNil(t, res.Tokens)

	validated, err := f.svc.Validate(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Identity.Permissions, validated.Permissions)

	assert.Equal(t, []auth.EventType{auth.EventUserLoggedIn}, f.pub.types())
	assert.Equal(t, "10.0.0.1", f.pub.events[0].Metadata["ip_address"])
	assert.True(t, f.accounts.get(1).LastLoginAt.Valid)
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	unknown := f.login(t, "nobody@example.com", "correct-horse")
	wrong := f.login(t, "ana@example.com", "wrong-horse")

	assert.Equal(t, OutcomeInvalidCredentials, unknown.Outcome)
	assert.Equal(t, OutcomeInvalidCredentials, wrong.Outcome)
	assert.ErrorIs(t, unknown.Outcome.Err(), xerrors.ErrInvalidCredentials)
	assert.Nil(t, unknown.Tokens)
	assert.Nil(t, unknown.Identity)

	// only the known account gets a counted failure
	assert.Equal(t, 1, f.pub.count(auth.EventFailedLoginAttempt))
	assert.Equal(t, 1, f.accounts.get(1).FailedLoginAttempts)
}

func TestLoginLockedAfterThreshold(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	for i := 0; i < 3; i++ {
		res := f.login(t, "ana@example.com", "wrong-horse")
		assert.Equal(t, OutcomeInvalidCredentials, res.Outcome)
	}

	// the right password no longer helps
	res := f.login(t, "ana@example.com", "correct-horse")
	assert.Equal(t, OutcomeAccountLockedOut, res.Outcome)
	assert.ErrorIs(t, res.Outcome.Err(), xerrors.ErrAccountLockedOut)
	assert.Nil(t, res.Tokens)

	assert.Equal(t, 3, f.pub.count(auth.EventFailedLoginAttempt))
	assert.Equal(t, 1, f.pub.count(auth.EventUserLockedOut))
	assert.Equal(t, 1, f.pub.count(auth.EventLockedUserTriesToLogIn))
	assert.Zero(t, f.pub.count(auth.EventUserLoggedIn))

	// a locked attempt is not counted again
	assert.Equal(t, 3, f.accounts.get(1).FailedLoginAttempts)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	f.login(t, "ana@example.com", "wrong-horse")
	f.login(t, "ana@example.com", "wrong-horse")
	require.Equal(t, 2, f.accounts.get(1).FailedLoginAttempts)

	res := f.login(t, "ana@example.com", "correct-horse")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, f.accounts.get(1).FailedLoginAttempts)

	// the counter starts over
	f.login(t, "ana@example.com", "wrong-horse")
	f.login(t, "ana@example.com", "wrong-horse")
	assert.False(t, f.accounts.get(1).IsLockedOut)
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	acc := f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")
	acc.IsActive = false
	f.accounts.put(acc)

	res := f.login(t, "ana@example.com", "wrong-horse")
	assert.Equal(t, OutcomeAccountInactive, res.Outcome)
	assert.ErrorIs(t, res.Outcome.Err(), xerrors.ErrAccountInactive)
	assert.Equal(t, []auth.EventType{auth.EventInactiveUserTriesToLogIn}, f.pub.types())
	assert.Equal(t, 0, f.accounts.get(1).FailedLoginAttempts)
}

func TestLoginPinModeRequiresPhone(t *testing.T) {
	f := newFixture(t)
	f.addPinAccount(t, 2, "pin@example.com", "+254700000001", "4821")
	ctx := context.Background()

	res, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "pin@example.com", Secret: "4821"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidCredentials, res.Outcome)

	res, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "pin@example.com", Phone: "+254700000009", Secret: "4821"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidCredentials, res.Outcome)
	assert.Equal(t, 0, f.accounts.get(2).FailedLoginAttempts)

	res, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "pin@example.com", Phone: "+254700000001", Secret: "4821"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "+254700000001", res.Identity.Phone)
}

func TestLoginDeletedAccountIsUnknown(t *testing.T) {
	f := newFixture(t)
	acc := f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")
	acc.IsDeleted = true
	f.accounts.put(acc)

	res := f.login(t, "ana@example.com", "correct-horse")
	assert.Equal(t, OutcomeInvalidCredentials, res.Outcome)
	assert.Empty(t, f.pub.types())
}

func TestLoginPublisherFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")
	f.pub.err = errors.New("broker unavailable")

	res := f.login(t, "ana@example.com", "correct-horse")
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	for i := 0; i < 3; i++ {
		f.login(t, "ana@example.com", "wrong-horse")
	}
	assert.True(t, f.accounts.get(1).IsLockedOut)
}

func TestLoginInfrastructureFailure(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	f.accounts.findErr = errors.New("connection refused")
	_, err := f.svc.Login(context.Background(), &auth.LoginRequest{Email: "ana@example.com", Secret: "correct-horse"})
	assert.ErrorIs(t, err, xerrors.ErrInfrastructure)

	f.accounts.findErr = nil
	f.accounts.writeErr = errors.New("disk full")
	_, err = f.svc.Login(context.Background(), &auth.LoginRequest{Email: "ana@example.com", Secret: "wrong-horse"})
	assert.ErrorIs(t, err, xerrors.ErrInfrastructure)
}

func TestLoginConcurrentFailures(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	const attempts = 10
	var wg sync.WaitGroup
	outcomes := make(chan LoginOutcome, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Login(context.Background(), &auth.LoginRequest{Email: "ana@example.com", Secret: "wrong-horse"})
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		assert.Contains(t, []LoginOutcome{OutcomeInvalidCredentials, OutcomeAccountLockedOut}, o)
	}

	stored := f.accounts.get(1)
	assert.True(t, stored.IsLockedOut)
	assert.GreaterOrEqual(t, stored.FailedLoginAttempts, 3)
	assert.Equal(t, 1, f.pub.count(auth.EventUserLockedOut))
}

func TestAccountStatusDoesNotLeakLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPasswordAccount(t, 1, "active@example.com", "correct-horse")
	locked := f.addPasswordAccount(t, 2, "locked@example.com", "correct-horse")
	locked.IsLockedOut = true
	locked.FailedLoginAttempts = 3
	f.accounts.put(locked)
	inactive := f.addPasswordAccount(t, 3, "inactive@example.com", "correct-horse")
	inactive.IsActive = false
	f.accounts.put(inactive)
	f.addPinAccount(t, 4, "pin@example.com", "+254700000001", "4821")

	active, err := f.svc.GetAccountStatusBeforeLogin(ctx, "active@example.com")
	require.NoError(t, err)

	for _, email := range []string{"locked@example.com", "inactive@example.com", "missing@example.com"} {
		got, err := f.svc.GetAccountStatusBeforeLogin(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, active, got, email)
	}

	pin, err := f.svc.GetAccountStatusBeforeLogin(ctx, "pin@example.com")
	require.NoError(t, err)
	assert.Equal(t, &auth.AccountStatus{PhoneRequired: true, AuthMode: auth.ModePin}, pin)
	assert.Empty(t, f.pub.types())
}

func TestRefreshSession(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	res := f.login(t, "ana@example.com", "correct-horse")
	pair, identity, err := f.svc.RefreshSession(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.UserID)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	require.NoError(t, f.svc.Logout(context.Background(), identity))
	_, _, err = f.svc.RefreshSession(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	assert.ErrorIs(t, f.svc.Logout(context.Background(), auth.Anonymous()), xerrors.ErrUnauthorized)
}

func TestResetFlowClearsLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	session := f.login(t, "ana@example.com", "correct-horse")
	for i := 0; i < 3; i++ {
		f.login(t, "ana@example.com", "wrong-horse")
	}
	require.True(t, f.accounts.get(1).IsLockedOut)

	require.NoError(t, f.svc.RequestReset(ctx, "ana@example.com"))
	token := f.notifier.last(1)
	require.NotEmpty(t, token)

	// a policy violation leaves the token usable
	err := f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: token, NewSecret: "short"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	require.NoError(t, f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: token, NewSecret: "battery-staple"}))

	stored := f.accounts.get(1)
	assert.False(t, stored.IsLockedOut)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Equal(t, 1, f.pub.count(auth.EventUserPasswordChanged))

	// the earlier session cannot be refreshed any more
	_, _, err = f.svc.RefreshSession(ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	assert.Equal(t, OutcomeInvalidCredentials, f.login(t, "ana@example.com", "correct-horse").Outcome)
	assert.Equal(t, OutcomeSuccess, f.login(t, "ana@example.com", "battery-staple").Outcome)

	// single use
	err = f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: token, NewSecret: "another-secret"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidOrExpiredResetToken)
}

func TestRequestResetIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")
	acc.IsActive = false
	f.accounts.put(acc)

	assert.NoError(t, f.svc.RequestReset(ctx, "missing@example.com"))
	assert.NoError(t, f.svc.RequestReset(ctx, "ana@example.com"))
	assert.Empty(t, f.notifier.last(1))

	_, err := f.resetStore.Find(ctx, 1)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRequestResetNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")
	f.notifier.err = errors.New("smtp timeout")

	assert.NoError(t, f.svc.RequestReset(context.Background(), "ana@example.com"))
}

func TestRedeemResetRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	err := f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: "made-up", NewSecret: "battery-staple"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidOrExpiredResetToken)

	err = f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 99, Token: "made-up", NewSecret: "battery-staple"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidOrExpiredResetToken)

	require.NoError(t, f.svc.RequestReset(ctx, "ana@example.com"))
	token := f.notifier.last(1)
	f.clock.Advance(61 * time.Minute)

	err = f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: token, NewSecret: "battery-staple"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidOrExpiredResetToken)
}

func TestRedeemResetKeepsTokenWhenWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	require.NoError(t, f.svc.RequestReset(ctx, "ana@example.com"))
	token := f.notifier.last(1)
	issued, err := f.resetStore.Find(ctx, 1)
	require.NoError(t, err)

	f.accounts.secretErr = errors.New("connection reset")
	err = f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: token, NewSecret: "battery-staple"})
	assert.ErrorIs(t, err, xerrors.ErrInfrastructure)
	assert.Zero(t, f.pub.count(auth.EventUserPasswordChanged))

	// put back with the original issue time, not a fresh window
	kept, err := f.resetStore.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, issued.TokenHash, kept.TokenHash)
	assert.True(t, issued.CreatedAt.Equal(kept.CreatedAt))

	f.accounts.secretErr = nil
	require.NoError(t, f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 1, Token: token, NewSecret: "battery-staple"}))
	assert.Equal(t, OutcomeSuccess, f.login(t, "ana@example.com", "battery-staple").Outcome)
}

func TestRedeemResetForPinAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPinAccount(t, 2, "pin@example.com", "+254700000001", "4821")

	require.NoError(t, f.svc.RequestReset(ctx, "pin@example.com"))
	token := f.notifier.last(2)

	err := f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 2, Token: token, NewSecret: "not-a-pin"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	require.NoError(t, f.svc.RedeemReset(ctx, &auth.ResetPasswordRequest{UserID: 2, Token: token, NewSecret: "9034"}))

	res, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "pin@example.com", Phone: "+254700000001", Secret: "9034"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
}

func TestChangeSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")
	identity := acc.Identity()

	err := f.svc.ChangeSecret(ctx, auth.Anonymous(), &auth.ChangeSecretRequest{CurrentSecret: "correct-horse", NewSecret: "battery-staple"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	err = f.svc.ChangeSecret(ctx, identity, &auth.ChangeSecretRequest{CurrentSecret: "wrong-horse", NewSecret: "battery-staple"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidCredentials)
	assert.Equal(t, 1, f.accounts.get(1).FailedLoginAttempts)

	err = f.svc.ChangeSecret(ctx, identity, &auth.ChangeSecretRequest{CurrentSecret: "correct-horse", NewSecret: "short"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	require.NoError(t, f.svc.ChangeSecret(ctx, identity, &auth.ChangeSecretRequest{CurrentSecret: "correct-horse", NewSecret: "battery-staple"}))
	assert.Equal(t, 1, f.pub.count(auth.EventUserPasswordChanged))
	assert.Equal(t, OutcomeSuccess, f.login(t, "ana@example.com", "battery-staple").Outcome)
}

func TestUnlockAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse")

	for i := 0; i < 3; i++ {
		f.login(t, "ana@example.com", "wrong-horse")
	}
	require.Equal(t, OutcomeAccountLockedOut, f.login(t, "ana@example.com", "correct-horse").Outcome)

	require.NoError(t, f.svc.UnlockAccount(ctx, 1))
	assert.Equal(t, OutcomeSuccess, f.login(t, "ana@example.com", "correct-horse").Outcome)
	assert.Equal(t, 1, f.pub.count(auth.EventUserUnlocked))

	assert.ErrorIs(t, f.svc.UnlockAccount(ctx, 404), xerrors.ErrNotFound)
}

func TestServiceAuthorize(t *testing.T) {
	f := newFixture(t)
	f.addPasswordAccount(t, 1, "ana@example.com", "correct-horse", auth.PreviewUserList)

	res := f.login(t, "ana@example.com", "correct-horse")
	identity, err := f.svc.Validate(res.Tokens.AccessToken)
	require.NoError(t, err)

	assert.True(t, f.svc.Authorize(identity, Requires(auth.PreviewUserList)))
	assert.False(t, f.svc.Authorize(identity, Requires(auth.EditUser)))
	assert.ErrorIs(t, f.svc.Check(identity, Requires(auth.EditUser)), xerrors.ErrForbidden)
	assert.ErrorIs(t, f.svc.Check(auth.Anonymous(), Requires(auth.PreviewUserList)), xerrors.ErrUnauthorized)
}

func TestLoginOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "account_locked_out", OutcomeAccountLockedOut.String())
	assert.Equal(t, "unknown", LoginOutcome(42).String())
}
