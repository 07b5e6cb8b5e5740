package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/pkg/httpx"

	"github.com/mileusna/useragent"
)

// DeviceHandler serves the facility trusted-device allow-list endpoints.
type DeviceHandler struct {
	DeviceService *service.DeviceService
}

type authorizeDeviceRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Class    string `json:"class,omitempty"`
}

type deviceResponse struct {
	DeviceID     string     `json:"device_id"`
	Name         string     `json:"name"`
	Class        string     `json:"class"`
	Active       bool       `json:"active"`
	AuthorizedBy string     `json:"authorized_by"`
	AuthorizedAt time.Time  `json:"authorized_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// HandleAuthorize handles POST /v1/facilities/{facility}/devices. When the
// request omits a class, it is inferred from the authorizing browser's user
// agent, which is usually the device being enrolled.
func (h *DeviceHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())
	caller := CallerFromContext(r.Context())

	var req authorizeDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	class := req.Class
	if class == "" {
		class = deviceClass(useragent.Parse(r.UserAgent()))
	}

	err := h.DeviceService.Authorize(r.Context(), domain.TrustedDevice{
		FacilityID:   facilityID,
		DeviceID:     req.DeviceID,
		Name:         req.Name,
		Class:        class,
		AuthorizedBy: caller.AccountID,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"device_id": req.DeviceID,
		"status":    "authorized",
	})
}

// HandleRevoke handles DELETE /v1/facilities/{facility}/devices/{id}.
func (h *DeviceHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())
	caller := CallerFromContext(r.Context())
	deviceID := r.PathValue("id")

	err := h.DeviceService.Revoke(r.Context(), facilityID, deviceID, caller.AccountID, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"device_id": deviceID,
		"status":    "revoked",
	})
}

// HandleList handles GET /v1/facilities/{facility}/devices.
func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	facilityID := FacilityFromContext(r.Context())

	devices, err := h.DeviceService.List(r.Context(), facilityID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceResponse{
			DeviceID:     d.DeviceID,
			Name:         d.Name,
			Class:        d.Class,
			Active:       d.Active,
			AuthorizedBy: d.AuthorizedBy,
			AuthorizedAt: d.AuthorizedAt,
			LastUsedAt:   d.LastUsedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"devices": out})
}

func deviceClass(ua useragent.UserAgent) string {
	switch {
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}
