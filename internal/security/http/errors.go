package http

import (
	"errors"
	"net/http"

	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/httpx"
	"github.com/okapicare/tenantguard/pkg/slogx"
)

// writeServiceError maps the service error taxonomy onto the HTTP status
// contract: 401 not authenticated (with a distinct session_timeout code), 403
// forbidden, 423 locked with retry-after minutes, 400 malformed input, 404
// not found, 500 for everything infrastructure-shaped. Store detail never
// leaks to the caller.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *service.LockedError
	if errors.As(err, &locked) {
		w.Header().Set("Retry-After", "60")
		httpx.WriteJSON(w, http.StatusLocked, httpx.ErrorResponse{
			Error:             "account_locked",
			Message:           locked.Error(),
			RetryAfterMinutes: locked.RemainingMinutes,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrPasswordPolicy),
		errors.Is(err, service.ErrPasswordReused),
		errors.Is(err, service.ErrMFAEnabled),
		errors.Is(err, service.ErrMFANotEnrolled):
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case errors.Is(err, service.ErrSessionExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "session_timeout",
			"session expired from inactivity, log in again")

	case errors.Is(err, service.ErrInvalidSession):
		httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated",
			"authentication required")

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidPIN),
		errors.Is(err, service.ErrInvalidMFACode),
		errors.Is(err, service.ErrInvalidTOTPCode):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
			"authentication failed")

	case errors.Is(err, service.ErrMFARequired):
		httpx.WriteError(w, http.StatusUnauthorized, "mfa_required",
			"a multi-factor code is required")

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrFacilityNotClaimed),
		errors.Is(err, service.ErrDeviceUntrusted),
		errors.Is(err, service.ErrAccountInactive):
		httpx.WriteError(w, http.StatusForbidden, forbiddenCode(err),
			"not authorized")

	case errors.Is(err, service.ErrMissingFacilityID):
		httpx.WriteError(w, http.StatusBadRequest, "missing_facility_id",
			"a facility id is required")

	case errors.Is(err, service.ErrFacilityNotFound),
		errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "resource not found")

	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"an internal error occurred")
	}
}

func forbiddenCode(err error) string {
	switch {
	case errors.Is(err, service.ErrFacilityNotClaimed):
		return "facility_not_claimed"
	case errors.Is(err, service.ErrDeviceUntrusted):
		return "device_untrusted"
	case errors.Is(err, service.ErrAccountInactive):
		return "account_inactive"
	default:
		return "forbidden"
	}
}
