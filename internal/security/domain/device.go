package domain

import "time"

// TrustedDevice is a facility's allow-list entry for staff PIN logins, keyed
// by (facility id, device id). Revocation flips the active flag; records are
// never deleted so the authorization trail survives.
type TrustedDevice struct {
	FacilityID   string
	DeviceID     string
	Name         string
	Class        string // e.g. "tablet", "desktop", "mobile"
	AuthorizedBy string
	Active       bool
	AuthorizedAt time.Time
	LastUsedAt   *time.Time
}
