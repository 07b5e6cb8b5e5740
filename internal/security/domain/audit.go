package domain

import (
	"encoding/json"
	"time"
)

// AuditAction is the taxonomy tag for protected-data access entries.
type AuditAction string

const (
	ActionView   AuditAction = "view"
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"
	ActionExport AuditAction = "export"

	// ActionSecurityEvent marks entries written through the security-event
	// path rather than the access path.
	ActionSecurityEvent AuditAction = "security_event"
)

// AuditEntry is one immutable access/security record. The running system only
// ever inserts these; retention is an external concern.
type AuditEntry struct {
	ID string

	ActorID   *string
	ActorKind CallerKind

	Action       AuditAction
	ResourceType string
	ResourceID   *string
	FacilityID   *string
	Description  string

	PreviousValues json.RawMessage
	NewValues      json.RawMessage

	IPAddress string
	UserAgent string
	SessionID *string

	SecurityEvent     bool
	SecurityEventType *string

	CreatedAt time.Time
}

// AuditFilter selects audit entries for the admin query surface.
type AuditFilter struct {
	FacilityID   *string
	ActorID      *string
	Action       *AuditAction
	ResourceType *string
	SecurityOnly bool
	From         *time.Time
	To           *time.Time
	Limit        int
}
