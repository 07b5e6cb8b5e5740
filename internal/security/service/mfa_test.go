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

func newMFAService(t *testing.T) (*MFAService, store.Store) {
	t.Helper()
	st := newTestStore(t)
	return &MFAService{Store: st, Issuer: "TenantGuard"}, st
}

func totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return code
}

func TestMFASetupAndEnable(t *testing.T) {
	svc, st := newMFAService(t)
	ctx := context.Background()

	acct := seedAccount(t, st, domain.KindOwner, "mfa@example.com", "Sup3rSecret!pass")

	setup, err := svc.Setup(ctx, acct.ID, acct.Email)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.QRPayload, "otpauth://")
	require.Len(t, setup.BackupCodes, backupCodeCount)

	t.Run("setup does not enable", func(t *testing.T) {
		enabled, err := svc.IsEnabled(ctx, acct.ID)
		require.NoError(t, err)
		require.False(t, enabled)
	})

	t.Run("enable rejects a code from an unrelated secret", func(t *testing.T) {
		other, err := totp.Generate(totp.GenerateOpts{Issuer: "x", AccountName: "y"})
		require.NoError(t, err)

		err = svc.Enable(ctx, acct.ID, totpCode(t, other.Secret()))
		require.ErrorIs(t, err, ErrInvalidTOTPCode)
	})

	t.Run("enable with a valid code flips enforcement on", func(t *testing.T) {
		require.NoError(t, svc.Enable(ctx, acct.ID, totpCode(t, setup.Secret)))

		enabled, err := svc.IsEnabled(ctx, acct.ID)
		require.NoError(t, err)
		require.True(t, enabled)
	})

	t.Run("enable twice fails", func(t *testing.T) {
		err := svc.Enable(ctx, acct.ID, totpCode(t, setup.Secret))
		require.ErrorIs(t, err, ErrMFAEnabled)
	})

	t.Run("setup again while enabled fails", func(t *testing.T) {
		_, err := svc.Setup(ctx, acct.ID, acct.Email)
		require.ErrorIs(t, err, ErrMFAEnabled)
	})
}

func TestMFAVerifyLogin(t *testing.T) {
	svc, st := newMFAService(t)
	ctx := context.Background()

	acct := seedAccount(t, st, domain.KindOwner, "verify@example.com", "Sup3rSecret!pass")

	t.Run("no enrolment passes trivially", func(t *testing.T) {
		ok, err := svc.VerifyLogin(ctx, acct.ID, "")
		require.NoError(t, err)
		require.True(t, ok)
	})

	setup, err := svc.Setup(ctx, acct.ID, acct.Email)
	require.NoError(t, err)

	t.Run("unconfirmed enrolment still passes trivially", func(t *testing.T) {
		ok, err := svc.VerifyLogin(ctx, acct.ID, "")
		require.NoError(t, err)
		require.True(t, ok)
	})

	require.NoError(t, svc.Enable(ctx, acct.ID, totpCode(t, setup.Secret)))

	t.Run("fresh code from the enrolled secret verifies", func(t *testing.T) {
		ok, err := svc.VerifyLogin(ctx, acct.ID, totpCode(t, setup.Secret))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("code from a different secret fails and counts", func(t *testing.T) {
		other, err := totp.Generate(totp.GenerateOpts{Issuer: "x", AccountName: "y"})
		require.NoError(t, err)

		ok, err := svc.VerifyLogin(ctx, acct.ID, totpCode(t, other.Secret()))
		require.NoError(t, err)
		require.False(t, ok)

		cred, err := st.MFA().GetMFACredential(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, 1, cred.FailedAttempts)
	})
}

func TestMFABackupCodes(t *testing.T) {
	svc, st := newMFAService(t)
	ctx := context.Background()

	acct := seedAccount(t, st, domain.KindOwner, "backup@example.com", "Sup3rSecret!pass")
	setup, err := svc.Setup(ctx, acct.ID, acct.Email)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, acct.ID, totpCode(t, setup.Secret)))

	code := setup.BackupCodes[0]

	t.Run("first use consumes", func(t *testing.T) {
		ok, err := svc.VerifyBackupCode(ctx, acct.ID, code)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("second use of the same code fails", func(t *testing.T) {
		ok, err := svc.VerifyBackupCode(ctx, acct.ID, code)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("remaining codes untouched", func(t *testing.T) {
		count, err := st.BackupCodes().CountBackupCodes(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, backupCodeCount-1, count)
	})
}

func TestMFADisable(t *testing.T) {
	svc, st := newMFAService(t)
	ctx := context.Background()

	acct := seedAccount(t, st, domain.KindOwner, "disable@example.com", "Sup3rSecret!pass")
	setup, err := svc.Setup(ctx, acct.ID, acct.Email)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(ctx, acct.ID, totpCode(t, setup.Secret)))

	t.Run("disable requires a valid code while enabled", func(t *testing.T) {
		err := svc.Disable(ctx, acct.ID, "000000")
		require.ErrorIs(t, err, ErrInvalidTOTPCode)
	})

	t.Run("disable wipes credential and backup codes", func(t *testing.T) {
		require.NoError(t, svc.Disable(ctx, acct.ID, totpCode(t, setup.Secret)))

		enabled, err := svc.IsEnabled(ctx, acct.ID)
		require.NoError(t, err)
		require.False(t, enabled)

		count, err := st.BackupCodes().CountBackupCodes(ctx, acct.ID)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}
