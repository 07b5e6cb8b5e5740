package http

import (
	"encoding/json"
	"net/http"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/pkg/httpx"
)

// PolicyHandler serves the facility security-policy endpoints.
type PolicyHandler struct {
	PolicyService *service.PolicyService
	AuditService  *service.AuditService
}

type policyPayload struct {
	SessionTimeoutMinutes  int  `json:"session_timeout_minutes"`
	MaxFailedLoginAttempts int  `json:"max_failed_login_attempts"`
	LockoutDurationMinutes int  `json:"lockout_duration_minutes"`
	MaxConcurrentSessions  int  `json:"max_concurrent_sessions"`
	MinPasswordLength      int  `json:"min_password_length"`
	RequireUppercase       bool `json:"require_uppercase"`
	RequireLowercase       bool `json:"require_lowercase"`
	RequireNumbers         bool `json:"require_numbers"`
	RequireSpecialChars    bool `json:"require_special_chars"`
	PasswordExpiryDays     int  `json:"password_expiry_days"`
	PasswordHistoryCount   int  `json:"password_history_count"`
	RequireDeviceTrust     bool `json:"require_device_trust"`
}

func toPolicyPayload(p domain.SecurityPolicy) policyPayload {
	return policyPayload{
		SessionTimeoutMinutes:  p.SessionTimeoutMinutes,
		MaxFailedLoginAttempts: p.MaxFailedLoginAttempts,
		LockoutDurationMinutes: p.LockoutDurationMinutes,
		MaxConcurrentSessions:  p.MaxConcurrentSessions,
		MinPasswordLength:      p.MinPasswordLength,
		RequireUppercase:       p.RequireUppercase,
		RequireLowercase:       p.RequireLowercase,
		RequireNumbers:         p.RequireNumbers,
		RequireSpecialChars:    p.RequireSpecialChars,
		PasswordExpiryDays:     p.PasswordExpiryDays,
		PasswordHistoryCount:   p.PasswordHistoryCount,
		RequireDeviceTrust:     p.RequireDeviceTrust,
	}
}

// HandleGet handles GET /v1/facilities/{facility}/policy. A facility with no
// stored override sees the platform defaults.
func (h *PolicyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())

	policy, err := h.PolicyService.Get(r.Context(), facilityID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPolicyPayload(policy))
}

// HandleUpdate handles PUT /v1/facilities/{facility}/policy. The previous and
// new thresholds are recorded on the audit trail.
func (h *PolicyHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())
	caller := CallerFromContext(r.Context())

	var req policyPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	previous, err := h.PolicyService.Get(r.Context(), facilityID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated := domain.SecurityPolicy{
		FacilityID:             facilityID,
		SessionTimeoutMinutes:  req.SessionTimeoutMinutes,
		MaxFailedLoginAttempts: req.MaxFailedLoginAttempts,
		LockoutDurationMinutes: req.LockoutDurationMinutes,
		MaxConcurrentSessions:  req.MaxConcurrentSessions,
		MinPasswordLength:      req.MinPasswordLength,
		RequireUppercase:       req.RequireUppercase,
		RequireLowercase:       req.RequireLowercase,
		RequireNumbers:         req.RequireNumbers,
		RequireSpecialChars:    req.RequireSpecialChars,
		PasswordExpiryDays:     req.PasswordExpiryDays,
		PasswordHistoryCount:   req.PasswordHistoryCount,
		RequireDeviceTrust:     req.RequireDeviceTrust,
	}
	if err := h.PolicyService.Update(r.Context(), updated); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	prevJSON, _ := json.Marshal(toPolicyPayload(previous))
	newJSON, _ := json.Marshal(req)
	actorID := caller.AccountID
	h.AuditService.LogSecurityEvent(r.Context(), service.EventPolicyChanged, domain.AuditEntry{
		ActorID:        &actorID,
		ActorKind:      caller.Kind,
		ResourceType:   "security_policy",
		ResourceID:     &facilityID,
		FacilityID:     &facilityID,
		PreviousValues: prevJSON,
		NewValues:      newJSON,
		IPAddress:      httpx.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})

	httpx.WriteJSON(w, http.StatusOK, req)
}
