package http

import (
	"encoding/json"
	"net/http"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/pkg/httpx"
	"github.com/okapicare/tenantguard/pkg/slogx"
)

// MFAHandler serves TOTP enrolment and lifecycle endpoints for the
// authenticated account.
type MFAHandler struct {
	MFAService   *service.MFAService
	LoginService *service.LoginService
	AuditService *service.AuditService
}

type mfaSetupResponse struct {
	Secret      string   `json:"secret"`
	QRPayload   string   `json:"qr_payload"`
	BackupCodes []string `json:"backup_codes"`
}

// HandleSetup handles POST /v1/mfa/totp/setup. The secret and backup codes
// appear in this response only; they are never retrievable again.
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerFromContext(ctx)

	email := caller.AccountID
	if account, err := h.LoginService.Store.Accounts().GetAccountByID(ctx, caller.AccountID); err == nil {
		email = account.Email
	} else {
		slogx.FromContext(ctx).Warn("failed to load account for mfa setup",
			"account_id", caller.AccountID, "error", err)
	}

	setup, err := h.MFAService.Setup(ctx, caller.AccountID, email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, mfaSetupResponse{
		Secret:      setup.Secret,
		QRPayload:   setup.QRPayload,
		BackupCodes: setup.BackupCodes,
	})
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

// HandleEnable handles POST /v1/mfa/totp/enable.
func (h *MFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerFromContext(ctx)

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "code is required")
		return
	}

	if err := h.MFAService.Enable(ctx, caller.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	actorID := caller.AccountID
	h.AuditService.LogSecurityEvent(ctx, service.EventMFAEnabled, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    caller.Kind,
		ResourceType: "account",
		ResourceID:   &actorID,
		IPAddress:    httpx.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// HandleVerify handles POST /v1/mfa/totp/verify, a standalone check used by
// sensitive flows that re-prompt for a code mid-session.
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerFromContext(ctx)

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "code is required")
		return
	}

	ok, err := h.MFAService.VerifyLogin(ctx, caller.AccountID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		ok, err = h.MFAService.VerifyBackupCode(ctx, caller.AccountID, req.Code)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if !ok {
		writeServiceError(w, r, service.ErrInvalidMFACode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// HandleDisable handles DELETE /v1/mfa/totp. A valid current code is
// required while MFA is enabled.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerFromContext(ctx)

	var req mfaCodeRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // optional body for unconfirmed enrolments

	if err := h.MFAService.Disable(ctx, caller.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	actorID := caller.AccountID
	h.AuditService.LogSecurityEvent(ctx, service.EventMFADisabled, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    caller.Kind,
		ResourceType: "account",
		ResourceID:   &actorID,
		IPAddress:    httpx.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}
