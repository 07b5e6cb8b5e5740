package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
)

var (
	// ErrInvalidSession means no recognized identity is attached to the call.
	ErrInvalidSession = errors.New("invalid_session")

	// ErrFacilityNotFound is returned when a facility id does not resolve to a
	// facility, including a stale impersonation target.
	ErrFacilityNotFound = errors.New("facility_not_found")

	// ErrMissingFacilityID means an owner call arrived without a facility id.
	ErrMissingFacilityID = errors.New("missing_facility_id")

	// ErrForbidden means the facility exists but the caller may not act on it.
	ErrForbidden = errors.New("forbidden")

	// ErrFacilityNotClaimed means the owner owns the facility but its claim is
	// not complete yet.
	ErrFacilityNotClaimed = errors.New("facility_not_claimed")
)

// ScopeService decides which facility a caller may act on. It is pure
// authorization logic: no writes, no logging, safe to call repeatedly within
// one request. Recording the decision is the caller's job.
type ScopeService struct {
	Store store.Store
}

// Resolve returns the facility id the caller is authorized to act on.
//
// Resolution order encodes the trust hierarchy, first match wins:
//
//  1. An administrator with active impersonation always resolves to the
//     impersonated facility, overriding any requested id. The facility must
//     still exist - impersonation of a deleted facility fails rather than
//     falling through to another path.
//  2. An administrator with an explicitly requested facility id resolves to
//     it after an existence check; admins may cross facilities without
//     impersonating, for support tooling.
//  3. A facility owner must request a facility id, must own it, and the
//     facility's claim must be complete.
//  4. Anything else has no recognized identity.
func (s *ScopeService) Resolve(ctx context.Context, caller domain.Caller, requestedID *string) (string, error) {
	switch caller.Kind {
	case domain.CallerAdmin:
		if caller.IsImpersonating() {
			target := *caller.ImpersonatedFacilityID
			if _, err := s.facility(ctx, target); err != nil {
				return "", err
			}
			return target, nil
		}
		if requestedID != nil && *requestedID != "" {
			if _, err := s.facility(ctx, *requestedID); err != nil {
				return "", err
			}
			return *requestedID, nil
		}
		return "", ErrMissingFacilityID

	case domain.CallerOwner:
		if requestedID == nil || *requestedID == "" {
			return "", ErrMissingFacilityID
		}
		f, err := s.facility(ctx, *requestedID)
		if err != nil {
			return "", err
		}
		if f.OwnerID == nil || *f.OwnerID != caller.AccountID {
			return "", ErrForbidden
		}
		if f.ClaimStatus != domain.ClaimClaimed {
			return "", ErrFacilityNotClaimed
		}
		return f.ID, nil

	case domain.CallerStaff:
		// Staff sessions are bound to exactly one facility at login; the
		// session binding is authoritative and any requested id is ignored.
		if caller.FacilityID == nil || *caller.FacilityID == "" {
			return "", ErrInvalidSession
		}
		return *caller.FacilityID, nil

	default:
		return "", ErrInvalidSession
	}
}

func (s *ScopeService) facility(ctx context.Context, id string) (domain.Facility, error) {
	f, err := s.Store.Facilities().GetFacilityByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Facility{}, ErrFacilityNotFound
		}
		return domain.Facility{}, fmt.Errorf("failed to load facility: %w", err)
	}
	return f, nil
}
