package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/metricsx"
	"github.com/okapicare/tenantguard/pkg/slogx"
)

// Security event type tags. Free text by design, but the well-known ones are
// named so queries and dashboards agree on spelling.
const (
	EventLoginFailed            = "login_failed"
	EventAccountLocked          = "account_locked"
	EventPINAuthFailed          = "pin_auth_failed"
	EventDeviceUntrusted        = "pin_device_untrusted"
	EventCrossTenantAttempt     = "cross_tenant_access_attempt"
	EventMFAEnabled             = "mfa_enabled"
	EventMFADisabled            = "mfa_disabled"
	EventMFAFailed              = "mfa_verification_failed"
	EventImpersonationStarted   = "impersonation_started"
	EventImpersonationStopped   = "impersonation_stopped"
	EventPasswordChanged        = "password_changed"
	EventSessionTimeout         = "session_timeout"
	EventDeviceAuthorized       = "device_authorized"
	EventDeviceRevoked          = "device_revoked"
	EventPolicyChanged          = "security_policy_changed"
	EventStaffPINReset          = "staff_pin_reset"
	EventConcurrentSessionLimit = "concurrent_session_evicted"
)

// AuditService records protected-data access and security events. Writes are
// best-effort: a failed audit insert is reported to the operational log and
// metrics but never fails the operation being audited.
type AuditService struct {
	Store store.Store
}

// LogAccess appends one access entry. Errors are swallowed; the audit trail
// must never take down the request it describes.
func (s *AuditService) LogAccess(ctx context.Context, e domain.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := s.Store.Audit().InsertAuditEntry(ctx, e); err != nil {
		metricsx.ObserveAuditWriteFailure()
		slogx.FromContext(ctx).Error("audit write failed",
			"action", e.Action, "resource_type", e.ResourceType, "error", err)
	}
}

// LogSecurityEvent appends one flagged security entry with the given event
// type tag. Same best-effort contract as LogAccess.
func (s *AuditService) LogSecurityEvent(ctx context.Context, eventType string, e domain.AuditEntry) {
	e.Action = domain.ActionSecurityEvent
	e.SecurityEvent = true
	e.SecurityEventType = &eventType
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	metricsx.ObserveSecurityEvent(eventType)
	if err := s.Store.Audit().InsertAuditEntry(ctx, e); err != nil {
		metricsx.ObserveAuditWriteFailure()
		slogx.FromContext(ctx).Error("security event write failed",
			"event_type", eventType, "error", err)
	}
}

// Query returns audit entries matching the filter, newest first.
func (s *AuditService) Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	entries, err := s.Store.Audit().QueryAuditEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return entries, nil
}

// ActionForMethod infers the access taxonomy tag from an HTTP verb when the
// caller does not supply one explicitly.
func ActionForMethod(method string) domain.AuditAction {
	switch method {
	case http.MethodGet, http.MethodHead:
		return domain.ActionView
	case http.MethodPost:
		return domain.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return domain.ActionUpdate
	case http.MethodDelete:
		return domain.ActionDelete
	default:
		return domain.ActionView
	}
}
