package domain

import "time"

// AccountKind distinguishes the two platform account populations. Facility
// staff are not accounts; they authenticate with facility-scoped PINs.
type AccountKind string

const (
	KindOwner AccountKind = "owner"
	KindAdmin AccountKind = "admin"

	// KindStaff never appears on an Account; it tags failed-login records for
	// staff PIN attempts so the lockout engine can scope its counting.
	KindStaff AccountKind = "staff"
)

// AccountStatus is the soft lifecycle state; accounts are never hard-deleted.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusSuspended           AccountStatus = "suspended"
)

// Account is a platform login identity: a facility owner or a platform
// administrator.
type Account struct {
	ID           string
	Kind         AccountKind
	Email        string
	Name         string
	PasswordHash string
	Status       AccountStatus

	// CanImpersonate applies to administrators only.
	CanImpersonate bool

	PasswordChangedAt *time.Time
	LastLoginAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PasswordHistoryEntry is a retired password hash kept for re-use checks.
type PasswordHistoryEntry struct {
	ID           string
	AccountID    string
	PasswordHash string
	CreatedAt    time.Time
}
