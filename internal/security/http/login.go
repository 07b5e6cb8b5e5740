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

	"github.com/mileusna/useragent"
)

// LoginHandler serves the owner and administrator password login endpoints
// plus logout and password change.
type LoginHandler struct {
	LoginService *service.LoginService
	Codec        *sessiontoken.Codec
	TokenTTL     time.Duration
	Secure       bool // Secure flag on the session cookie
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type loginResponse struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// HandleOwnerLogin handles POST /v1/owners/login.
func (h *LoginHandler) HandleOwnerLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, domain.KindOwner)
}

// HandleAdminLogin handles POST /v1/admins/login.
func (h *LoginHandler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, domain.KindAdmin)
}

func (h *LoginHandler) handleLogin(w http.ResponseWriter, r *http.Request, kind domain.AccountKind) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	ua := useragent.Parse(r.UserAgent())
	res, err := h.LoginService.Login(ctx, service.LoginRequest{
		Kind:        kind,
		Email:       req.Email,
		Password:    req.Password,
		MFACode:     req.MFACode,
		IPAddress:   httpx.ClientIP(r),
		UserAgent:   r.UserAgent(),
		DeviceLabel: deviceLabel(ua),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.Codec.Mint(res.Session.ID, h.TokenTTL)
	if err != nil {
		log.Error("failed to mint session token", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
		return
	}

	h.setSessionCookie(w, token)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccountID: res.Account.ID,
		Name:      res.Account.Name,
		Kind:      string(res.Account.Kind),
		Token:     token,
		ExpiresIn: int(h.TokenTTL.Seconds()),
	})
}

// HandleLogout serves the logout endpoints; the same handler backs the
// owner, admin, and staff routes since the session says who is leaving.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())
	if err := h.LoginService.Logout(r.Context(), caller, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword handles POST /v1/password. Success invalidates every
// session for the account, the caller's included; the client must log in
// again.
func (h *LoginHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed",
			"current_password and new_password are required")
		return
	}

	err := h.LoginService.ChangePassword(r.Context(), caller.AccountID,
		req.CurrentPassword, req.NewPassword, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.clearSessionCookie(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

type impersonateRequest struct {
	FacilityID string `json:"facility_id"`
}

// HandleStartImpersonation handles POST /v1/admins/impersonate.
func (h *LoginHandler) HandleStartImpersonation(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	var req impersonateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FacilityID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "facility_id is required")
		return
	}

	if err := h.LoginService.StartImpersonation(r.Context(), caller, req.FacilityID, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "impersonating",
		"facility_id": req.FacilityID,
	})
}

// HandleStopImpersonation handles DELETE /v1/admins/impersonate.
func (h *LoginHandler) HandleStopImpersonation(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())
	if err := h.LoginService.StopImpersonation(r.Context(), caller, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *LoginHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *LoginHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func requestMeta(r *http.Request) service.AttemptMeta {
	return service.AttemptMeta{
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// deviceLabel condenses a parsed user agent into the short label stored on
// the session record.
func deviceLabel(ua useragent.UserAgent) string {
	label := ua.Name
	if ua.OS != "" {
		label += " on " + ua.OS
	}
	switch {
	case ua.Tablet:
		label += " (tablet)"
	case ua.Mobile:
		label += " (mobile)"
	}
	return label
}
