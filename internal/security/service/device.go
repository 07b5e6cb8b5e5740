package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
)

// DeviceService manages the per-facility trusted-device allow-list that
// gates staff PIN logins.
type DeviceService struct {
	Store store.Store
	Audit *AuditService
}

// Authorize adds a device to the facility's allow-list or re-activates a
// previously revoked one.
func (s *DeviceService) Authorize(ctx context.Context, d domain.TrustedDevice, meta AttemptMeta) error {
	if d.DeviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrValidation)
	}
	d.Active = true

	if err := s.Store.Devices().UpsertDevice(ctx, d); err != nil {
		return fmt.Errorf("failed to authorize device: %w", err)
	}

	s.Audit.LogSecurityEvent(ctx, EventDeviceAuthorized, domain.AuditEntry{
		ActorID:      &d.AuthorizedBy,
		ResourceType: "trusted_device",
		ResourceID:   &d.DeviceID,
		FacilityID:   &d.FacilityID,
		Description:  d.Name,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// Revoke deactivates a device. The record survives so the authorization
// trail does.
func (s *DeviceService) Revoke(ctx context.Context, facilityID, deviceID string, actorID string, meta AttemptMeta) error {
	if err := s.Store.Devices().RevokeDevice(ctx, facilityID, deviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to revoke device: %w", err)
	}

	s.Audit.LogSecurityEvent(ctx, EventDeviceRevoked, domain.AuditEntry{
		ActorID:      &actorID,
		ResourceType: "trusted_device",
		ResourceID:   &deviceID,
		FacilityID:   &facilityID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// List returns the facility's device allow-list, revoked entries included.
func (s *DeviceService) List(ctx context.Context, facilityID string) ([]domain.TrustedDevice, error) {
	devices, err := s.Store.Devices().ListDevicesByFacility(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}
