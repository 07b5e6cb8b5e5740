package store

import (
	"context"
	"errors"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable; each write commits independently - no cross-component transactions
// are required by the security core.
type Store interface {
	Accounts() Accounts
	Facilities() Facilities
	Sessions() Sessions
	LoginAttempts() LoginAttempts
	Policies() Policies
	MFA() MFA
	BackupCodes() BackupCodes
	Staff() Staff
	Devices() Devices
	Audit() Audit

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store. The
	// caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns nil
	// and rolling back otherwise. Used for multi-step MFA state changes.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail scopes the lookup by kind: owner and admin address
	// spaces are distinct populations.
	GetAccountByEmail(ctx context.Context, kind domain.AccountKind, email string) (domain.Account, error)

	CreateAccount(ctx context.Context, a domain.Account) error
	UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error

	// SetCanImpersonate grants or revokes the administrator impersonation
	// privilege. Meaningless for owner accounts.
	SetCanImpersonate(ctx context.Context, id string, allowed bool) error
	UpdatePasswordHash(ctx context.Context, id string, newHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// AddPasswordHistory appends a retired hash; ListPasswordHistory returns
	// the most recent limit hashes, newest first.
	AddPasswordHistory(ctx context.Context, accountID, passwordHash string) error
	ListPasswordHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error)
}

type Facilities interface {
	GetFacilityByID(ctx context.Context, id string) (domain.Facility, error)
	ListFacilitiesByOwner(ctx context.Context, ownerID string) ([]domain.Facility, error)
	CreateFacility(ctx context.Context, f domain.Facility) error
	UpdateFacilityClaim(ctx context.Context, id string, ownerID *string, status domain.ClaimStatus) error
}

type Sessions interface {
	// UpsertSession creates the record or, when the session id already
	// exists, refreshes activity/expiry - creation must be idempotent under
	// login retries.
	UpsertSession(ctx context.Context, s domain.Session) error

	GetSession(ctx context.Context, id string) (domain.Session, error)

	// TouchSession bumps last-activity and expiry. Last write wins; staleness
	// only shortens the effective timeout.
	TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error

	InvalidateSession(ctx context.Context, id string) error
	InvalidateAccountSessions(ctx context.Context, accountID string) error

	// SetImpersonation sets or clears the session's impersonation target.
	SetImpersonation(ctx context.Context, id string, facilityID *string) error

	// ListActiveSessionsByAccount returns valid, unexpired sessions oldest
	// first, for concurrent-session capping.
	ListActiveSessionsByAccount(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error)

	DeleteDeadSessions(ctx context.Context, before time.Time) error
}

type LoginAttempts interface {
	// InsertAttempt is append-only and must tolerate concurrent inserts for
	// the same identifier.
	InsertAttempt(ctx context.Context, a domain.FailedLogin) error

	// CountAttemptsSince counts attempts for (identifier, kind) at or after
	// since. The count is always recomputed from the store, never cached.
	CountAttemptsSince(ctx context.Context, kind domain.AccountKind, identifier string, since time.Time) (int, error)

	// OldestAttemptSince returns the oldest attempt timestamp in the window,
	// from which the lock expiry is derived.
	OldestAttemptSince(ctx context.Context, kind domain.AccountKind, identifier string, since time.Time) (time.Time, error)

	DeleteAttempts(ctx context.Context, kind domain.AccountKind, identifier string) error
	DeleteAttemptsBefore(ctx context.Context, before time.Time) error
}

type Policies interface {
	// GetPolicy returns ErrNotFound when the facility has no record; the
	// service layer substitutes the defaults.
	GetPolicy(ctx context.Context, facilityID string) (domain.SecurityPolicy, error)
	UpsertPolicy(ctx context.Context, p domain.SecurityPolicy) error
}

type MFA interface {
	GetMFACredential(ctx context.Context, accountID string) (domain.MFACredential, error)

	// UpsertMFACredential stores a freshly issued secret with enabled=false,
	// overwriting any prior enrolment.
	UpsertMFACredential(ctx context.Context, c domain.MFACredential) error

	EnableMFA(ctx context.Context, accountID string) error
	DeleteMFACredential(ctx context.Context, accountID string) error
	RecordMFASuccess(ctx context.Context, accountID string, at time.Time) error
	IncrementMFAFailures(ctx context.Context, accountID string) error
}

type BackupCodes interface {
	CreateBackupCode(ctx context.Context, accountID, codeHash string) error

	// ConsumeBackupCode deletes the code if present and reports whether it
	// existed. Verification and consumption are one operation - backup codes
	// are single-use.
	ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error)

	DeleteAllBackupCodes(ctx context.Context, accountID string) error
	CountBackupCodes(ctx context.Context, accountID string) (int, error)
}

type Staff interface {
	GetStaffByID(ctx context.Context, id string) (domain.StaffCredential, error)

	// GetActiveStaffByPINHash looks up an active credential by PIN hash
	// scoped to one facility. PINs are not unique across tenants.
	GetActiveStaffByPINHash(ctx context.Context, facilityID, pinHash string) (domain.StaffCredential, error)

	ListStaffByFacility(ctx context.Context, facilityID string) ([]domain.StaffCredential, error)
	CreateStaff(ctx context.Context, s domain.StaffCredential) error
	UpdateStaffPINHash(ctx context.Context, id, pinHash string) error
	SetStaffActive(ctx context.Context, id string, active bool) error

	// ResetStaffLock zeroes the failure counter and lock after a successful
	// authentication and stamps the login time.
	ResetStaffLock(ctx context.Context, id string, loginAt time.Time) error

	// RecordStaffFailure increments the failure counter and, when lockUntil
	// is non-nil, sets the lock.
	RecordStaffFailure(ctx context.Context, id string, lockUntil *time.Time) error
}

type Devices interface {
	GetDevice(ctx context.Context, facilityID, deviceID string) (domain.TrustedDevice, error)
	ListDevicesByFacility(ctx context.Context, facilityID string) ([]domain.TrustedDevice, error)

	// UpsertDevice registers or re-activates a device for a facility.
	UpsertDevice(ctx context.Context, d domain.TrustedDevice) error

	RevokeDevice(ctx context.Context, facilityID, deviceID string) error
	TouchDevice(ctx context.Context, facilityID, deviceID string, usedAt time.Time) error
}

type Audit interface {
	// InsertAuditEntry is append-only; entries are never updated or deleted
	// by the running system.
	InsertAuditEntry(ctx context.Context, e domain.AuditEntry) error

	QueryAuditEntries(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error)
}
