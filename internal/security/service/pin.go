package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/cryptox"
	"github.com/okapicare/tenantguard/pkg/idx"
	"github.com/okapicare/tenantguard/pkg/metricsx"
)

const (
	minPINLength = 6
	maxPINLength = 10
)

var (
	// ErrInvalidPIN means a well-formed PIN matched no active credential.
	ErrInvalidPIN = errors.New("invalid_pin")

	// ErrDeviceUntrusted means the facility requires device trust and the
	// submitting device is not on the allow-list. Returned before any PIN
	// comparison takes place.
	ErrDeviceUntrusted = errors.New("device_untrusted")
)

// PINService authenticates facility staff by short numeric PINs, gated by the
// facility's trusted-device allow-list, and manages the credentials behind
// them.
type PINService struct {
	Store    store.Store
	Policies *PolicyService
	Audit    *AuditService
}

// AttemptMeta carries the source metadata recorded with every attempt.
type AttemptMeta struct {
	DeviceID  string
	IPAddress string
	UserAgent string
}

// Authenticate runs the staff PIN login gates in order, each one hard:
//
//  1. Malformed PINs are rejected before any store access.
//  2. When the facility policy requires device trust, the device must be
//     allow-listed and active before the PIN is even hashed - an unrecognized
//     device cannot guess PINs at all.
//  3. The PIN hash is looked up scoped to the facility's active credential
//     set. PINs are never looked up by staff identity first; a short PIN is
//     only unique within one facility.
//  4. A lock on the matched credential rejects the attempt with the
//     remaining time.
//
// On success the credential's failure counter and lock are reset and the
// device's last-used time is stamped. On a hash miss the failure belongs to
// no particular staff member, so only a facility-scoped failed-login record
// is written; per-credential failure accounting happens via RecordFailure
// when the caller knows who failed. Every failure branch emits a security
// event before returning.
func (s *PINService) Authenticate(ctx context.Context, facilityID, pin string, meta AttemptMeta) (domain.StaffCredential, error) {
	if !validPIN(pin) {
		metricsx.ObserveLogin("staff", "invalid")
		return domain.StaffCredential{}, fmt.Errorf("%w: pin must be %d to %d digits",
			ErrValidation, minPINLength, maxPINLength)
	}

	policy, err := s.Policies.Get(ctx, facilityID)
	if err != nil {
		return domain.StaffCredential{}, err
	}

	if policy.RequireDeviceTrust {
		device, err := s.Store.Devices().GetDevice(ctx, facilityID, meta.DeviceID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.StaffCredential{}, fmt.Errorf("failed to load device: %w", err)
		}
		if err != nil || !device.Active {
			s.Audit.LogSecurityEvent(ctx, EventDeviceUntrusted, domain.AuditEntry{
				ActorKind:    domain.CallerUnauthenticated,
				ResourceType: "trusted_device",
				ResourceID:   &meta.DeviceID,
				FacilityID:   &facilityID,
				Description:  "pin login from untrusted device",
				IPAddress:    meta.IPAddress,
				UserAgent:    meta.UserAgent,
			})
			metricsx.ObserveLogin("staff", "device_untrusted")
			return domain.StaffCredential{}, ErrDeviceUntrusted
		}
	}

	staff, err := s.Store.Staff().GetActiveStaffByPINHash(ctx, facilityID, cryptox.HashPIN(pin))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.StaffCredential{}, fmt.Errorf("failed to look up staff credential: %w", err)
		}
		if err := s.Store.LoginAttempts().InsertAttempt(ctx, domain.FailedLogin{
			Kind:        domain.KindStaff,
			FacilityID:  &facilityID,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
			AttemptedAt: time.Now().UTC(),
		}); err != nil {
			return domain.StaffCredential{}, fmt.Errorf("failed to record pin failure: %w", err)
		}
		s.Audit.LogSecurityEvent(ctx, EventPINAuthFailed, domain.AuditEntry{
			ActorKind:    domain.CallerUnauthenticated,
			ResourceType: "staff_credential",
			FacilityID:   &facilityID,
			Description:  "pin matched no active credential",
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
		})
		metricsx.ObserveLogin("staff", "failure")
		return domain.StaffCredential{}, ErrInvalidPIN
	}

	now := time.Now().UTC()
	if staff.LockedUntil != nil && now.Before(*staff.LockedUntil) {
		s.Audit.LogSecurityEvent(ctx, EventAccountLocked, domain.AuditEntry{
			ActorID:      &staff.ID,
			ActorKind:    domain.CallerStaff,
			ResourceType: "staff_credential",
			ResourceID:   &staff.ID,
			FacilityID:   &facilityID,
			Description:  "pin login while locked",
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
		})
		metricsx.ObserveLogin("staff", "locked")
		return domain.StaffCredential{}, &LockedError{
			LockedUntil:      *staff.LockedUntil,
			RemainingMinutes: remainingMinutes(now, *staff.LockedUntil),
		}
	}

	if err := s.Store.Staff().ResetStaffLock(ctx, staff.ID, now); err != nil {
		return domain.StaffCredential{}, fmt.Errorf("failed to reset staff lock: %w", err)
	}
	name := staff.DisplayName()
	if err := s.Store.LoginAttempts().DeleteAttempts(ctx, domain.KindStaff, name); err != nil {
		return domain.StaffCredential{}, fmt.Errorf("failed to clear staff failures: %w", err)
	}
	if meta.DeviceID != "" {
		if err := s.Store.Devices().TouchDevice(ctx, facilityID, meta.DeviceID, now); err != nil {
			return domain.StaffCredential{}, fmt.Errorf("failed to touch device: %w", err)
		}
	}

	metricsx.ObserveLogin("staff", "success")
	return staff, nil
}

// RecordFailure books one failure against a known staff credential,
// installing a lock when the counter reaches the facility policy's maximum.
func (s *PINService) RecordFailure(ctx context.Context, staffID string) error {
	staff, err := s.Store.Staff().GetStaffByID(ctx, staffID)
	if err != nil {
		return fmt.Errorf("failed to load staff credential: %w", err)
	}

	policy, err := s.Policies.Get(ctx, staff.FacilityID)
	if err != nil {
		return err
	}

	var lockUntil *time.Time
	if staff.FailedAttempts+1 >= policy.MaxFailedLoginAttempts {
		t := time.Now().UTC().Add(policy.LockoutWindow())
		lockUntil = &t
		metricsx.ObserveLockout("staff")
	}

	if err := s.Store.Staff().RecordStaffFailure(ctx, staffID, lockUntil); err != nil {
		return fmt.Errorf("failed to record staff failure: %w", err)
	}

	name := staff.DisplayName()
	if err := s.Store.LoginAttempts().InsertAttempt(ctx, domain.FailedLogin{
		StaffName:   &name,
		Kind:        domain.KindStaff,
		FacilityID:  &staff.FacilityID,
		AttemptedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to record pin failure: %w", err)
	}
	return nil
}

// CreateStaff provisions a staff credential with a freshly generated PIN.
// The plaintext PIN is returned exactly once and never persisted.
func (s *PINService) CreateStaff(ctx context.Context, facilityID, firstName, lastName, role string) (domain.StaffCredential, string, error) {
	if firstName == "" || lastName == "" {
		return domain.StaffCredential{}, "", errors.New("staff name is required")
	}

	pin, err := cryptox.GeneratePIN(minPINLength)
	if err != nil {
		return domain.StaffCredential{}, "", fmt.Errorf("failed to generate pin: %w", err)
	}

	staff := domain.StaffCredential{
		ID:         idx.New().String(),
		FacilityID: facilityID,
		FirstName:  firstName,
		LastName:   lastName,
		Role:       role,
		PINHash:    cryptox.HashPIN(pin),
		Active:     true,
	}
	if err := s.Store.Staff().CreateStaff(ctx, staff); err != nil {
		return domain.StaffCredential{}, "", fmt.Errorf("failed to create staff credential: %w", err)
	}
	return staff, pin, nil
}

// ResetPIN issues a new PIN for an existing credential, clearing any failure
// state. Returns the plaintext PIN exactly once.
func (s *PINService) ResetPIN(ctx context.Context, staffID string) (string, error) {
	if _, err := s.Store.Staff().GetStaffByID(ctx, staffID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("failed to load staff credential: %w", err)
	}

	pin, err := cryptox.GeneratePIN(minPINLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	if err := s.Store.Staff().UpdateStaffPINHash(ctx, staffID, cryptox.HashPIN(pin)); err != nil {
		return "", fmt.Errorf("failed to update pin: %w", err)
	}
	return pin, nil
}

// SetActive enables or disables a staff credential. Disabled credentials
// never match a PIN lookup.
func (s *PINService) SetActive(ctx context.Context, staffID string, active bool) error {
	if err := s.Store.Staff().SetStaffActive(ctx, staffID, active); err != nil {
		return fmt.Errorf("failed to update staff credential: %w", err)
	}
	return nil
}

// ListStaff returns all staff credentials for a facility, hash included only
// for internal use; transports must not serialize it.
func (s *PINService) ListStaff(ctx context.Context, facilityID string) ([]domain.StaffCredential, error) {
	staff, err := s.Store.Staff().ListStaffByFacility(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}

func validPIN(pin string) bool {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
