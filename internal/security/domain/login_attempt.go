package domain

import "time"

// FailedLogin is one failed credential comparison. Records are insert-only and
// bulk-deleted after a verified successful login; the lockout engine only ever
// reads them in aggregate over a trailing window.
type FailedLogin struct {
	ID string

	// Email identifies owner/admin attempts; StaffName identifies staff PIN
	// attempts. Exactly one is set per record.
	Email     *string
	StaffName *string

	Kind        AccountKind
	FacilityID  *string
	IPAddress   string
	UserAgent   string
	AttemptedAt time.Time
}

// LockStatus is the lockout engine's decision for one identifier.
type LockStatus struct {
	Locked           bool
	LockedUntil      *time.Time
	RemainingMinutes int
}
