package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/pkg/httpx"
	"github.com/okapicare/tenantguard/pkg/sessiontoken"
	"github.com/okapicare/tenantguard/pkg/slogx"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
)

// StaffHandler serves the staff PIN login endpoint and the owner-facing
// staff credential management endpoints.
type StaffHandler struct {
	PINService     *service.PINService
	SessionService *service.SessionService
	AuditService   *service.AuditService
	Codec          *sessiontoken.Codec
	TokenTTL       time.Duration
	Secure         bool
}

type pinLoginRequest struct {
	FacilityID string `json:"facility_id"`
	PIN        string `json:"pin"`
	DeviceID   string `json:"device_id"`
}

type pinLoginResponse struct {
	StaffID   string `json:"staff_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// HandlePINLogin handles POST /v1/staff/pin-login.
func (h *StaffHandler) HandlePINLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req pinLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}
	if req.FacilityID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "facility_id is required")
		return
	}

	staff, err := h.PINService.Authenticate(ctx, req.FacilityID, req.PIN, service.AttemptMeta{
		DeviceID:  req.DeviceID,
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ua := useragent.Parse(r.UserAgent())
	sess, err := h.SessionService.Create(ctx, domain.Session{
		ID:          uuid.NewString(),
		AccountID:   staff.ID,
		Kind:        domain.CallerStaff,
		FacilityID:  &req.FacilityID,
		IPAddress:   httpx.ClientIP(r),
		UserAgent:   r.UserAgent(),
		DeviceLabel: deviceLabel(ua),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.Codec.Mint(sess.ID, h.TokenTTL)
	if err != nil {
		log.Error("failed to mint session token", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
		return
	}

	h.AuditService.LogAccess(ctx, domain.AuditEntry{
		ActorID:      &staff.ID,
		ActorKind:    domain.CallerStaff,
		Action:       domain.ActionLogin,
		ResourceType: "staff_credential",
		ResourceID:   &staff.ID,
		FacilityID:   &req.FacilityID,
		IPAddress:    httpx.ClientIP(r),
		UserAgent:    r.UserAgent(),
		SessionID:    &sess.ID,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, pinLoginResponse{
		StaffID:   staff.ID,
		Name:      staff.DisplayName(),
		Role:      staff.Role,
		Token:     token,
		ExpiresIn: int(h.TokenTTL.Seconds()),
	})
}

type createStaffRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type staffResponse struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	Active    bool       `json:"active"`
	Locked    bool       `json:"locked"`
	LastLogin *time.Time `json:"last_login_at,omitempty"`

	// PIN is present only in the creation/reset response.
	PIN string `json:"pin,omitempty"`
}

func toStaffResponse(s domain.StaffCredential, pin string) staffResponse {
	return staffResponse{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Role:      s.Role,
		Active:    s.Active,
		Locked:    s.LockedUntil != nil && s.LockedUntil.After(time.Now().UTC()),
		LastLogin: s.LastLoginAt,
		PIN:       pin,
	}
}

// HandleCreateStaff handles POST /v1/facilities/{facility}/staff. The
// generated PIN appears in this response only.
func (h *StaffHandler) HandleCreateStaff(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())

	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	staff, pin, err := h.PINService.CreateStaff(r.Context(), facilityID, req.FirstName, req.LastName, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	caller := CallerFromContext(r.Context())
	actorID := caller.AccountID
	h.AuditService.LogAccess(r.Context(), domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    caller.Kind,
		Action:       domain.ActionCreate,
		ResourceType: "staff_credential",
		ResourceID:   &staff.ID,
		FacilityID:   &facilityID,
		IPAddress:    httpx.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})

	httpx.WriteJSON(w, http.StatusCreated, toStaffResponse(staff, pin))
}

// HandleListStaff handles GET /v1/facilities/{facility}/staff.
func (h *StaffHandler) HandleListStaff(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())

	staff, err := h.PINService.ListStaff(r.Context(), facilityID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]staffResponse, 0, len(staff))
	for _, s := range staff {
		out = append(out, toStaffResponse(s, ""))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"staff": out})
}

// HandleResetPIN handles POST /v1/facilities/{facility}/staff/{id}/pin.
func (h *StaffHandler) HandleResetPIN(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())
	staffID := r.PathValue("id")

	if err := h.requireStaffInFacility(r, staffID, facilityID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pin, err := h.PINService.ResetPIN(r.Context(), staffID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	caller := CallerFromContext(r.Context())
	actorID := caller.AccountID
	h.AuditService.LogSecurityEvent(r.Context(), service.EventStaffPINReset, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    caller.Kind,
		ResourceType: "staff_credential",
		ResourceID:   &staffID,
		FacilityID:   &facilityID,
		IPAddress:    httpx.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"pin": pin})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// HandleSetStaffActive handles PUT /v1/facilities/{facility}/staff/{id}/active.
func (h *StaffHandler) HandleSetStaffActive(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())
	staffID := r.PathValue("id")

	if err := h.requireStaffInFacility(r, staffID, facilityID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	if err := h.PINService.SetActive(r.Context(), staffID, req.Active); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// requireStaffInFacility stops a caller scoped to one facility from touching
// another facility's staff by guessing ids.
func (h *StaffHandler) requireStaffInFacility(r *http.Request, staffID, facilityID string) error {
	staff, err := h.PINService.Store.Staff().GetStaffByID(r.Context(), staffID)
	if err != nil {
		return err
	}
	if staff.FacilityID != facilityID {
		return service.ErrForbidden
	}
	return nil
}
