package http

import (
	"net/http"
	"testing"

	"github.com/okapicare/tenantguard/internal/security/domain"

	"github.com/stretchr/testify/require"
)

func TestOwnerLoginAndFacilityScope(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedAccount(t, domain.KindOwner, "owner@example.com", "Sup3r-Secret-Pass!")
	facility := env.seedFacility(t, &owner.ID, domain.ClaimClaimed)
	other := env.seedFacility(t, nil, domain.ClaimUnclaimed)

	token := env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!", "")

	t.Run("own facility is accessible", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/facilities/"+facility.ID+"/staff", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("foreign facility is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/facilities/"+other.ID+"/staff", token, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "forbidden", errorCode(t, rec))
	})

	t.Run("denial is recorded as a security event", func(t *testing.T) {
		entries, err := env.router.AuditService.Query(t.Context(), domain.AuditFilter{SecurityOnly: true})
		require.NoError(t, err)

		var found bool
		for _, e := range entries {
			if e.SecurityEventType != nil && *e.SecurityEventType == "cross_tenant_access_attempt" {
				found = true
			}
		}
		require.True(t, found)
	})

	t.Run("no token is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/facilities/"+facility.ID+"/staff", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "not_authenticated", errorCode(t, rec))
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/facilities/"+facility.ID+"/staff", "not-a-token", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginFailuresAndLockout(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, domain.KindOwner, "owner@example.com", "Sup3r-Secret-Pass!")

	badLogin := func() int {
		rec := env.do(t, http.MethodPost, "/v1/owners/login", "", map[string]string{
			"email":    "owner@example.com",
			"password": "wrong-password",
		})
		return rec.Code
	}

	// First failures are plain 401s, indistinguishable from an unknown email.
	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusUnauthorized, badLogin())
	}

	// The fifth failure trips the default threshold.
	rec := env.do(t, http.MethodPost, "/v1/owners/login", "", map[string]string{
		"email":    "owner@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body struct {
		Error             string `json:"error"`
		RetryAfterMinutes int    `json:"retry_after_minutes"`
	}
	decodeJSON(t, rec, &body)
	require.Equal(t, "account_locked", body.Error)
	require.Greater(t, body.RetryAfterMinutes, 0)
}

func TestAdminImpersonation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAccount(t, domain.KindAdmin, "admin@example.com", "Sup3r-Secret-Pass!")
	require.NoError(t, env.store.Accounts().SetCanImpersonate(t.Context(), admin.ID, true))
	facility := env.seedFacility(t, nil, domain.ClaimUnclaimed)

	token := env.login(t, "/v1/admins/login", "admin@example.com", "Sup3r-Secret-Pass!", "")

	t.Run("unknown facility", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/admins/impersonate", token,
			map[string]string{"facility_id": "no-such-facility"})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("start and stop", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/admins/impersonate", token,
			map[string]string{"facility_id": facility.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// While impersonating, the admin acts within the facility scope.
		rec = env.do(t, http.MethodGet, "/v1/facilities/"+facility.ID+"/staff", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodDelete, "/v1/admins/impersonate", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("owners may not impersonate", func(t *testing.T) {
		env.seedAccount(t, domain.KindOwner, "owner@example.com", "Sup3r-Secret-Pass!")
		ownerToken := env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!", "")

		rec := env.do(t, http.MethodPost, "/v1/admins/impersonate", ownerToken,
			map[string]string{"facility_id": facility.ID})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, domain.KindOwner, "owner@example.com", "Sup3r-Secret-Pass!")
	token := env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!", "")

	t.Run("weak password rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password", token, map[string]string{
			"current_password": "Sup3r-Secret-Pass!",
			"new_password":     "short",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "validation_failed", errorCode(t, rec))
	})

	t.Run("wrong current password rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password", token, map[string]string{
			"current_password": "not-my-password",
			"new_password":     "An0ther-Secret-Pass!",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("success invalidates the session", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/password", token, map[string]string{
			"current_password": "Sup3r-Secret-Pass!",
			"new_password":     "An0ther-Secret-Pass!",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodPost, "/v1/owners/logout", token, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// The new credential works.
		env.login(t, "/v1/owners/login", "owner@example.com", "An0ther-Secret-Pass!", "")
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedAccount(t, domain.KindOwner, "owner@example.com", "Sup3r-Secret-Pass!")
	facility := env.seedFacility(t, &owner.ID, domain.ClaimClaimed)
	token := env.login(t, "/v1/owners/login", "owner@example.com", "Sup3r-Secret-Pass!", "")

	rec := env.do(t, http.MethodPost, "/v1/owners/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/facilities/"+facility.ID+"/staff", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
