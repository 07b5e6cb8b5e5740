package service

import (
	"context"
	"testing"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newLoginService(t *testing.T) (*LoginService, store.Store) {
	t.Helper()
	st := newTestStore(t)
	policies := &PolicyService{Store: st}
	return &LoginService{
		Store:    st,
		Lockout:  &LockoutService{Store: st},
		Sessions: &SessionService{Store: st, Policies: policies},
		MFA:      &MFAService{Store: st, Issuer: "TenantGuard"},
		Policies: policies,
		Audit:    &AuditService{Store: st},
	}, st
}

func TestLogin(t *testing.T) {
	svc, st := newLoginService(t)
	ctx := context.Background()

	const password = "Sup3rSecret!pass"
	owner := seedAccount(t, st, domain.KindOwner, "login@example.com", password)

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{Kind: domain.KindOwner, Email: "login@example.com"})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: "ghost@example.com", Password: password,
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: "login@example.com", Password: "wrong",
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("success issues a session and clears failures", func(t *testing.T) {
		res, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: "login@example.com", Password: password,
		})
		require.NoError(t, err)
		require.Equal(t, owner.ID, res.Account.ID)
		require.NotEmpty(t, res.Session.ID)
		require.Equal(t, domain.CallerOwner, res.Session.Kind)

		count, err := st.LoginAttempts().CountAttemptsSince(ctx, domain.KindOwner,
			"login@example.com", time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("kind scoping keeps admin and owner apart", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindAdmin, Email: "login@example.com", Password: password,
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("suspended account rejected after password check", func(t *testing.T) {
		suspended := seedAccount(t, st, domain.KindOwner, "suspended@example.com", password)
		require.NoError(t, st.Accounts().UpdateAccountStatus(ctx, suspended.ID, domain.StatusSuspended))

		_, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: "suspended@example.com", Password: password,
		})
		require.ErrorIs(t, err, ErrAccountInactive)
	})
}

func TestLoginLockout(t *testing.T) {
	svc, _ := newLoginService(t)
	ctx := context.Background()

	const password = "Sup3rSecret!pass"
	const email = "bruteforce@example.com"
	seedAccount(t, svc.Store, domain.KindOwner, email, password)

	// Five wrong passwords trip the lock; the fifth failure reports it.
	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: email, Password: "wrong",
		})
	}
	require.ErrorIs(t, lastErr, ErrAccountLocked)

	// The sixth attempt with the CORRECT password is still rejected.
	_, err := svc.Login(ctx, LoginRequest{
		Kind: domain.KindOwner, Email: email, Password: password,
	})
	require.ErrorIs(t, err, ErrAccountLocked)

	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	require.Greater(t, locked.RemainingMinutes, 0)
}

func TestLoginWithMFA(t *testing.T) {
	svc, st := newLoginService(t)
	ctx := context.Background()

	const password = "Sup3rSecret!pass"
	acct := seedAccount(t, st, domain.KindOwner, "mfa-login@example.com", password)

	setup, err := svc.MFA.Setup(ctx, acct.ID, acct.Email)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, svc.MFA.Enable(ctx, acct.ID, code))

	t.Run("password alone challenges for mfa", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: password,
		})
		require.ErrorIs(t, err, ErrMFARequired)
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: password, MFACode: "000000",
		})
		require.ErrorIs(t, err, ErrInvalidMFACode)
	})

	t.Run("valid totp code admits", func(t *testing.T) {
		code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
		require.NoError(t, err)

		res, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: password, MFACode: code,
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Session.ID)
	})

	t.Run("backup code admits once", func(t *testing.T) {
		backup := setup.BackupCodes[0]

		res, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: password, MFACode: backup,
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Session.ID)

		_, err = svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: password, MFACode: backup,
		})
		require.ErrorIs(t, err, ErrInvalidMFACode)
	})
}

func TestImpersonation(t *testing.T) {
	svc, st := newLoginService(t)
	ctx := context.Background()

	const password = "Sup3rSecret!pass"
	admin := seedAccount(t, st, domain.KindAdmin, "imp-admin@example.com", password)
	plain := seedAccount(t, st, domain.KindAdmin, "imp-plain@example.com", password)
	facility := seedFacility(t, st, nil, domain.ClaimUnclaimed)

	grantImpersonation(t, st, admin.ID)

	adminRes, err := svc.Login(ctx, LoginRequest{
		Kind: domain.KindAdmin, Email: admin.Email, Password: password,
	})
	require.NoError(t, err)
	plainRes, err := svc.Login(ctx, LoginRequest{
		Kind: domain.KindAdmin, Email: plain.Email, Password: password,
	})
	require.NoError(t, err)

	adminCaller := domain.PlatformAdmin(admin.ID, adminRes.Session.ID, nil)
	plainCaller := domain.PlatformAdmin(plain.ID, plainRes.Session.ID, nil)

	t.Run("requires the impersonation grant", func(t *testing.T) {
		err := svc.StartImpersonation(ctx, plainCaller, facility.ID, AttemptMeta{})
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("requires an existing facility", func(t *testing.T) {
		err := svc.StartImpersonation(ctx, adminCaller, "gone", AttemptMeta{})
		require.ErrorIs(t, err, ErrFacilityNotFound)
	})

	t.Run("start sets the session override", func(t *testing.T) {
		require.NoError(t, svc.StartImpersonation(ctx, adminCaller, facility.ID, AttemptMeta{}))

		sess, err := st.Sessions().GetSession(ctx, adminRes.Session.ID)
		require.NoError(t, err)
		require.NotNil(t, sess.ImpersonatedFacilityID)
		require.Equal(t, facility.ID, *sess.ImpersonatedFacilityID)
	})

	t.Run("stop clears the override", func(t *testing.T) {
		require.NoError(t, svc.StopImpersonation(ctx, adminCaller, AttemptMeta{}))

		sess, err := st.Sessions().GetSession(ctx, adminRes.Session.ID)
		require.NoError(t, err)
		require.Nil(t, sess.ImpersonatedFacilityID)
	})

	t.Run("owners cannot impersonate", func(t *testing.T) {
		owner := domain.TenantOwner("owner-1", "sess-x")
		err := svc.StartImpersonation(ctx, owner, facility.ID, AttemptMeta{})
		require.ErrorIs(t, err, ErrForbidden)
	})
}

func TestChangePassword(t *testing.T) {
	svc, st := newLoginService(t)
	ctx := context.Background()

	const oldPassword = "Sup3rSecret!pass"
	const newPassword = "An0ther!Secret#99"
	acct := seedAccount(t, st, domain.KindOwner, "rotate@example.com", oldPassword)

	t.Run("wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, acct.ID, "nope", newPassword, AttemptMeta{})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("weak replacement rejected with all violations", func(t *testing.T) {
		err := svc.ChangePassword(ctx, acct.ID, oldPassword, "short", AttemptMeta{})
		require.ErrorIs(t, err, ErrPasswordPolicy)

		var pperr *PasswordPolicyError
		require.ErrorAs(t, err, &pperr)
		require.NotEmpty(t, pperr.Violations)
	})

	t.Run("same password rejected as reuse", func(t *testing.T) {
		err := svc.ChangePassword(ctx, acct.ID, oldPassword, oldPassword, AttemptMeta{})
		require.ErrorIs(t, err, ErrPasswordReused)
	})

	t.Run("rotation succeeds and kills sessions", func(t *testing.T) {
		res, err := svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: oldPassword,
		})
		require.NoError(t, err)

		require.NoError(t, svc.ChangePassword(ctx, acct.ID, oldPassword, newPassword, AttemptMeta{}))

		active, err := st.Sessions().ListActiveSessionsByAccount(ctx, acct.ID, time.Now().UTC())
		require.NoError(t, err)
		require.Empty(t, active)
		_ = res

		_, err = svc.Login(ctx, LoginRequest{
			Kind: domain.KindOwner, Email: acct.Email, Password: newPassword,
		})
		require.NoError(t, err)
	})

	t.Run("old password rejected as reuse after rotation", func(t *testing.T) {
		err := svc.ChangePassword(ctx, acct.ID, newPassword, oldPassword, AttemptMeta{})
		require.ErrorIs(t, err, ErrPasswordReused)
	})
}
