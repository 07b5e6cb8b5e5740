package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type devicesRepo struct {
	db dbtx
}

func (r *devicesRepo) GetDevice(ctx context.Context, facilityID, deviceID string) (domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	var lastUsedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT facility_id, device_id, name, class, authorized_by, is_active, authorized_at, last_used_at
		FROM trusted_devices WHERE facility_id = ? AND device_id = ?`,
		facilityID, deviceID).
		Scan(&d.FacilityID, &d.DeviceID, &d.Name, &d.Class, &d.AuthorizedBy,
			&d.Active, &d.AuthorizedAt, &lastUsedAt)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	d.LastUsedAt = mapNullTimePtr(lastUsedAt)
	return d, nil
}

func (r *devicesRepo) ListDevicesByFacility(ctx context.Context, facilityID string) ([]domain.TrustedDevice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT facility_id, device_id, name, class, authorized_by, is_active, authorized_at, last_used_at
		FROM trusted_devices WHERE facility_id = ? ORDER BY authorized_at DESC`,
		facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []domain.TrustedDevice
	for rows.Next() {
		var d domain.TrustedDevice
		var lastUsedAt sql.NullTime
		if err := rows.Scan(&d.FacilityID, &d.DeviceID, &d.Name, &d.Class,
			&d.AuthorizedBy, &d.Active, &d.AuthorizedAt, &lastUsedAt); err != nil {
			return nil, err
		}
		d.LastUsedAt = mapNullTimePtr(lastUsedAt)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *devicesRepo) UpsertDevice(ctx context.Context, d domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_devices (facility_id, device_id, name, class, authorized_by, is_active, authorized_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (facility_id, device_id) DO UPDATE SET
			name          = excluded.name,
			class         = excluded.class,
			authorized_by = excluded.authorized_by,
			is_active     = excluded.is_active,
			authorized_at = CURRENT_TIMESTAMP`,
		d.FacilityID, d.DeviceID, d.Name, d.Class, d.AuthorizedBy, d.Active)
	return err
}

func (r *devicesRepo) RevokeDevice(ctx context.Context, facilityID, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trusted_devices SET is_active = 0
		WHERE facility_id = ? AND device_id = ?`,
		facilityID, deviceID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *devicesRepo) TouchDevice(ctx context.Context, facilityID, deviceID string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE trusted_devices SET last_used_at = ?
		WHERE facility_id = ? AND device_id = ?`,
		usedAt.UTC(), facilityID, deviceID)
	return err
}
