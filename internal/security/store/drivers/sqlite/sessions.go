package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) UpsertSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_sessions (
			id, account_id, kind, facility_id, impersonated_facility_id,
			ip_address, user_agent, device_label,
			created_at, last_activity_at, expires_at, is_valid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_activity_at = excluded.last_activity_at,
			expires_at       = excluded.expires_at,
			is_valid         = excluded.is_valid`,
		s.ID, s.AccountID, s.Kind,
		mapOptionalString(s.FacilityID), mapOptionalString(s.ImpersonatedFacilityID),
		s.IPAddress, s.UserAgent, s.DeviceLabel,
		s.CreatedAt.UTC(), s.LastActivityAt.UTC(), s.ExpiresAt.UTC(), s.Valid)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	var facilityID, impersonatedID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, kind, facility_id, impersonated_facility_id,
		       ip_address, user_agent, device_label,
		       created_at, last_activity_at, expires_at, is_valid
		FROM active_sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.AccountID, &s.Kind, &facilityID, &impersonatedID,
			&s.IPAddress, &s.UserAgent, &s.DeviceLabel,
			&s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.Valid)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.FacilityID = mapNullStringPtr(facilityID)
	s.ImpersonatedFacilityID = mapNullStringPtr(impersonatedID)
	return s, nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions
		SET last_activity_at = ?, expires_at = ?
		WHERE id = ? AND is_valid = 1`,
		lastActivity.UTC(), expiresAt.UTC(), id)
	return err
}

func (r *sessionsRepo) InvalidateSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_valid = 0 WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) InvalidateAccountSessions(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_valid = 0 WHERE account_id = ?`, accountID)
	return err
}

func (r *sessionsRepo) SetImpersonation(ctx context.Context, id string, facilityID *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions SET impersonated_facility_id = ?
		WHERE id = ? AND is_valid = 1`,
		mapOptionalString(facilityID), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *sessionsRepo) ListActiveSessionsByAccount(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, kind, facility_id, impersonated_facility_id,
		       ip_address, user_agent, device_label,
		       created_at, last_activity_at, expires_at, is_valid
		FROM active_sessions
		WHERE account_id = ? AND is_valid = 1 AND expires_at > ?
		ORDER BY created_at ASC`,
		accountID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		var facilityID, impersonatedID sql.NullString
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Kind, &facilityID, &impersonatedID,
			&s.IPAddress, &s.UserAgent, &s.DeviceLabel,
			&s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.Valid); err != nil {
			return nil, err
		}
		s.FacilityID = mapNullStringPtr(facilityID)
		s.ImpersonatedFacilityID = mapNullStringPtr(impersonatedID)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) DeleteDeadSessions(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM active_sessions WHERE is_valid = 0 OR expires_at < ?`,
		before.UTC())
	return err
}
