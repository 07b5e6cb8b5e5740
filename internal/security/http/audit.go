package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/pkg/httpx"
)

// AuditHandler serves the administrator audit-log query endpoint.
type AuditHandler struct {
	AuditService *service.AuditService
}

type auditEntryResponse struct {
	ID                string          `json:"id"`
	ActorID           *string         `json:"actor_id,omitempty"`
	ActorKind         string          `json:"actor_kind"`
	Action            string          `json:"action"`
	ResourceType      string          `json:"resource_type"`
	ResourceID        *string         `json:"resource_id,omitempty"`
	FacilityID        *string         `json:"facility_id,omitempty"`
	Description       string          `json:"description,omitempty"`
	PreviousValues    json.RawMessage `json:"previous_values,omitempty"`
	NewValues         json.RawMessage `json:"new_values,omitempty"`
	IPAddress         string          `json:"ip_address,omitempty"`
	UserAgent         string          `json:"user_agent,omitempty"`
	SessionID         *string         `json:"session_id,omitempty"`
	SecurityEvent     bool            `json:"security_event"`
	SecurityEventType *string         `json:"security_event_type,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// HandleQuery handles GET /v1/audit. Filters come in as query parameters:
// facility_id, actor_id, action, resource_type, security_only, from, to
// (RFC 3339) and limit.
func (h *AuditHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseAuditFilter(w, r)
	if !ok {
		return
	}
	h.serve(w, r, filter)
}

// HandleSecurityEvents handles GET /v1/audit/security-events, the same query
// surface restricted to security events.
func (h *AuditHandler) HandleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseAuditFilter(w, r)
	if !ok {
		return
	}
	filter.SecurityOnly = true
	h.serve(w, r, filter)
}

// parseAuditFilter reads the filter query parameters, writing the error
// response itself when one is malformed.
func parseAuditFilter(w http.ResponseWriter, r *http.Request) (domain.AuditFilter, bool) {
	q := r.URL.Query()

	var filter domain.AuditFilter
	if v := q.Get("facility_id"); v != "" {
		filter.FacilityID = &v
	}
	if v := q.Get("actor_id"); v != "" {
		filter.ActorID = &v
	}
	if v := q.Get("action"); v != "" {
		action := domain.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("resource_type"); v != "" {
		filter.ResourceType = &v
	}
	filter.SecurityOnly = q.Get("security_only") == "true"

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "from must be RFC 3339")
			return domain.AuditFilter{}, false
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "to must be RFC 3339")
			return domain.AuditFilter{}, false
		}
		filter.To = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return domain.AuditFilter{}, false
		}
		filter.Limit = n
	}

	return filter, true
}

func (h *AuditHandler) serve(w http.ResponseWriter, r *http.Request, filter domain.AuditFilter) {
	entries, err := h.AuditService.Query(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:                e.ID,
			ActorID:           e.ActorID,
			ActorKind:         string(e.ActorKind),
			Action:            string(e.Action),
			ResourceType:      e.ResourceType,
			ResourceID:        e.ResourceID,
			FacilityID:        e.FacilityID,
			Description:       e.Description,
			PreviousValues:    e.PreviousValues,
			NewValues:         e.NewValues,
			IPAddress:         e.IPAddress,
			UserAgent:         e.UserAgent,
			SessionID:         e.SessionID,
			SecurityEvent:     e.SecurityEvent,
			SecurityEventType: e.SecurityEventType,
			CreatedAt:         e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}
