package domain

import "time"

// StaffCredential authenticates one facility staff member by a short numeric
// PIN. Staff are not platform accounts; a PIN is only meaningful within its
// facility's active credential set.
type StaffCredential struct {
	ID         string
	FacilityID string
	FirstName  string
	LastName   string
	Role       string
	PINHash    string
	Active     bool

	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is the identifier used in failed-login records for staff.
func (s StaffCredential) DisplayName() string {
	return s.FirstName + " " + s.LastName
}
