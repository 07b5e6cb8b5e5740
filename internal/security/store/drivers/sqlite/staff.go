package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type staffRepo struct {
	db dbtx
}

const staffColumns = `id, facility_id, first_name, last_name, role, pin_hash,
	is_active, failed_attempts, locked_until, last_login_at, created_at, updated_at`

func scanStaff(row *sql.Row) (domain.StaffCredential, error) {
	var s domain.StaffCredential
	var lockedUntil, lastLoginAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.FacilityID, &s.FirstName, &s.LastName, &s.Role, &s.PINHash,
		&s.Active, &s.FailedAttempts, &lockedUntil, &lastLoginAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.StaffCredential{}, mapNotFound(err)
	}
	s.LockedUntil = mapNullTimePtr(lockedUntil)
	s.LastLoginAt = mapNullTimePtr(lastLoginAt)
	return s, nil
}

func (r *staffRepo) GetStaffByID(ctx context.Context, id string) (domain.StaffCredential, error) {
	return scanStaff(r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff_credentials WHERE id = ?`, id))
}

func (r *staffRepo) GetActiveStaffByPINHash(ctx context.Context, facilityID, pinHash string) (domain.StaffCredential, error) {
	return scanStaff(r.db.QueryRowContext(ctx, `
		SELECT `+staffColumns+` FROM staff_credentials
		WHERE facility_id = ? AND pin_hash = ? AND is_active = 1`,
		facilityID, pinHash))
}

func (r *staffRepo) ListStaffByFacility(ctx context.Context, facilityID string) ([]domain.StaffCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+staffColumns+` FROM staff_credentials
		WHERE facility_id = ? ORDER BY last_name, first_name`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []domain.StaffCredential
	for rows.Next() {
		var s domain.StaffCredential
		var lockedUntil, lastLoginAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.FacilityID, &s.FirstName, &s.LastName, &s.Role,
			&s.PINHash, &s.Active, &s.FailedAttempts, &lockedUntil, &lastLoginAt,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.LockedUntil = mapNullTimePtr(lockedUntil)
		s.LastLoginAt = mapNullTimePtr(lastLoginAt)
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

func (r *staffRepo) CreateStaff(ctx context.Context, s domain.StaffCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff_credentials (id, facility_id, first_name, last_name, role, pin_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		s.ID, s.FacilityID, s.FirstName, s.LastName, s.Role, s.PINHash, s.Active)
	return mapConstraint(err)
}

func (r *staffRepo) UpdateStaffPINHash(ctx context.Context, id, pinHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_credentials
		SET pin_hash = ?, failed_attempts = 0, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, pinHash, id)
	return err
}

func (r *staffRepo) SetStaffActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_credentials SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, id)
	return err
}

func (r *staffRepo) ResetStaffLock(ctx context.Context, id string, loginAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_credentials
		SET failed_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, loginAt.UTC(), id)
	return err
}

func (r *staffRepo) RecordStaffFailure(ctx context.Context, id string, lockUntil *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_credentials
		SET failed_attempts = failed_attempts + 1,
		    locked_until = COALESCE(?, locked_until),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, mapOptionalTime(lockUntil), id)
	return err
}
