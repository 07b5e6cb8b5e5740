package domain

import "time"

// Session is the durable server-side session record. It is keyed by an opaque
// session id distinct from the transport token; invalidating the record kills
// the session regardless of what tokens are still circulating.
type Session struct {
	ID        string
	AccountID string
	Kind      CallerKind

	// FacilityID is the staff member's facility for PIN sessions, nil for
	// owners and administrators (their facility is resolved per request).
	FacilityID *string

	// ImpersonatedFacilityID is the administrator's chosen impersonation
	// target, nil otherwise. Cleared only by an explicit stop call.
	ImpersonatedFacilityID *string

	IPAddress      string
	UserAgent      string
	DeviceLabel    string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	Valid          bool
}
