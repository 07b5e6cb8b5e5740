package sqlite

import (
	"context"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type policiesRepo struct {
	db dbtx
}

func (r *policiesRepo) GetPolicy(ctx context.Context, facilityID string) (domain.SecurityPolicy, error) {
	var p domain.SecurityPolicy
	err := r.db.QueryRowContext(ctx, `
		SELECT facility_id, session_timeout_minutes, max_failed_login_attempts,
		       lockout_duration_minutes, max_concurrent_sessions,
		       min_password_length, require_uppercase, require_lowercase,
		       require_numbers, require_special_chars,
		       password_expiry_days, password_history_count,
		       require_device_trust, updated_at
		FROM security_policies WHERE facility_id = ?`, facilityID).
		Scan(&p.FacilityID, &p.SessionTimeoutMinutes, &p.MaxFailedLoginAttempts,
			&p.LockoutDurationMinutes, &p.MaxConcurrentSessions,
			&p.MinPasswordLength, &p.RequireUppercase, &p.RequireLowercase,
			&p.RequireNumbers, &p.RequireSpecialChars,
			&p.PasswordExpiryDays, &p.PasswordHistoryCount,
			&p.RequireDeviceTrust, &p.UpdatedAt)
	if err != nil {
		return domain.SecurityPolicy{}, mapNotFound(err)
	}
	return p, nil
}

func (r *policiesRepo) UpsertPolicy(ctx context.Context, p domain.SecurityPolicy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_policies (
			facility_id, session_timeout_minutes, max_failed_login_attempts,
			lockout_duration_minutes, max_concurrent_sessions,
			min_password_length, require_uppercase, require_lowercase,
			require_numbers, require_special_chars,
			password_expiry_days, password_history_count,
			require_device_trust, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (facility_id) DO UPDATE SET
			session_timeout_minutes   = excluded.session_timeout_minutes,
			max_failed_login_attempts = excluded.max_failed_login_attempts,
			lockout_duration_minutes  = excluded.lockout_duration_minutes,
			max_concurrent_sessions   = excluded.max_concurrent_sessions,
			min_password_length       = excluded.min_password_length,
			require_uppercase         = excluded.require_uppercase,
			require_lowercase         = excluded.require_lowercase,
			require_numbers           = excluded.require_numbers,
			require_special_chars     = excluded.require_special_chars,
			password_expiry_days      = excluded.password_expiry_days,
			password_history_count    = excluded.password_history_count,
			require_device_trust      = excluded.require_device_trust,
			updated_at                = CURRENT_TIMESTAMP`,
		p.FacilityID, p.SessionTimeoutMinutes, p.MaxFailedLoginAttempts,
		p.LockoutDurationMinutes, p.MaxConcurrentSessions,
		p.MinPasswordLength, p.RequireUppercase, p.RequireLowercase,
		p.RequireNumbers, p.RequireSpecialChars,
		p.PasswordExpiryDays, p.PasswordHistoryCount,
		p.RequireDeviceTrust)
	return err
}
