package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return code
}

func TestMFALifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, domain.KindOwner, "owner@example.com", "Sup3r-Secret-Pass!")
	token := env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!", "")

	var setup struct {
		Secret      string   `json:"secret"`
		QRPayload   string   `json:"qr_payload"`
		BackupCodes []string `json:"backup_codes"`
	}

	t.Run("setup issues secret and backup codes", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/mfa/totp/setup", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		decodeJSON(t, rec, &setup)
		require.NotEmpty(t, setup.Secret)
		require.Contains(t, setup.QRPayload, "otpauth://")
		require.Len(t, setup.BackupCodes, 8)
	})

	t.Run("enable requires a valid code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/mfa/totp/enable", token,
			map[string]string{"code": "000000"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, http.MethodPost, "/v1/mfa/totp/enable", token,
			map[string]string{"code": totpCode(t, setup.Secret)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("login now demands a code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/owners/login", "", map[string]string{
			"email":    "owner@example.com",
			"password": "Sup3r-Secret-Pass!",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "mfa_required", errorCode(t, rec))

		env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!",
			totpCode(t, setup.Secret))
	})

	t.Run("backup code is consumed on use", func(t *testing.T) {
		env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!",
			setup.BackupCodes[0])

		// The used code is gone; reuse is covered at the service layer.
		acct, err := env.store.Accounts().GetAccountByEmail(t.Context(), domain.KindOwner, "owner@example.com")
		require.NoError(t, err)
		remaining, err := env.store.BackupCodes().CountBackupCodes(t.Context(), acct.ID)
		require.NoError(t, err)
		require.Equal(t, 7, remaining)
	})

	t.Run("mid-session verify accepts a fresh code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/mfa/totp/verify", token,
			map[string]string{"code": totpCode(t, setup.Secret)})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPost, "/v1/mfa/totp/verify", token,
			map[string]string{"code": "999999"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disable restores password-only login", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/mfa/totp", token,
			map[string]string{"code": totpCode(t, setup.Secret)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!", "")
	})
}
