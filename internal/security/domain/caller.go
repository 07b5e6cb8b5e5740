package domain

// CallerKind classifies the identity behind a request.
type CallerKind string

const (
	CallerUnauthenticated CallerKind = "unauthenticated"
	CallerOwner           CallerKind = "owner"
	CallerAdmin           CallerKind = "admin"
	CallerStaff           CallerKind = "staff"
)

// Caller is the explicit per-request identity, constructed once at the
// transport boundary from the session record and threaded into the scope
// resolver. It replaces loosely-typed session bags.
type Caller struct {
	Kind      CallerKind
	AccountID string

	// ImpersonatedFacilityID is set only for administrators who have started
	// impersonating a facility. When present it overrides any requested
	// facility id during scope resolution.
	ImpersonatedFacilityID *string

	// FacilityID is set only for staff callers, whose facility binding is
	// fixed at PIN login and carried on the session.
	FacilityID *string

	// SessionID is the opaque durable session identifier backing this caller.
	SessionID string
}

// Unauthenticated is the caller for requests with no recognized identity.
func Unauthenticated() Caller {
	return Caller{Kind: CallerUnauthenticated}
}

// TenantOwner builds an owner caller.
func TenantOwner(accountID, sessionID string) Caller {
	return Caller{Kind: CallerOwner, AccountID: accountID, SessionID: sessionID}
}

// PlatformAdmin builds an administrator caller with optional impersonation.
func PlatformAdmin(accountID, sessionID string, impersonatedFacilityID *string) Caller {
	return Caller{
		Kind:                   CallerAdmin,
		AccountID:              accountID,
		SessionID:              sessionID,
		ImpersonatedFacilityID: impersonatedFacilityID,
	}
}

// FacilityStaff builds a staff caller bound to one facility.
func FacilityStaff(staffID, sessionID, facilityID string) Caller {
	return Caller{
		Kind:       CallerStaff,
		AccountID:  staffID,
		SessionID:  sessionID,
		FacilityID: &facilityID,
	}
}

// IsImpersonating reports whether the caller is an administrator acting as a
// specific facility.
func (c Caller) IsImpersonating() bool {
	return c.Kind == CallerAdmin && c.ImpersonatedFacilityID != nil && *c.ImpersonatedFacilityID != ""
}
