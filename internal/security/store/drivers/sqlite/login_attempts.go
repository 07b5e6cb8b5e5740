package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
)

type loginAttemptsRepo struct {
	db dbtx
}

func (r *loginAttemptsRepo) InsertAttempt(ctx context.Context, a domain.FailedLogin) error {
	id := a.ID
	if id == "" {
		id = newEntryID()
	}
	at := a.AttemptedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failed_login_attempts (id, email, staff_name, kind, facility_id, ip_address, user_agent, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, mapOptionalString(a.Email), mapOptionalString(a.StaffName),
		a.Kind, mapOptionalString(a.FacilityID), a.IPAddress, a.UserAgent, at.UTC())
	return err
}

// identifierClause matches owner/admin attempts by email and staff attempts by
// display name. A staff "kind" never collides with owner/admin kinds because
// the caller always passes the kind the attempt was recorded under.
func (r *loginAttemptsRepo) identifierClause(kind domain.AccountKind) string {
	if kind == domain.KindOwner || kind == domain.KindAdmin {
		return "email = ?"
	}
	return "staff_name = ?"
}

func (r *loginAttemptsRepo) CountAttemptsSince(ctx context.Context, kind domain.AccountKind, identifier string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM failed_login_attempts
		WHERE kind = ? AND `+r.identifierClause(kind)+` AND attempted_at >= ?`,
		kind, identifier, since.UTC()).Scan(&count)
	return count, err
}

func (r *loginAttemptsRepo) OldestAttemptSince(ctx context.Context, kind domain.AccountKind, identifier string, since time.Time) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT attempted_at FROM failed_login_attempts
		WHERE kind = ? AND `+r.identifierClause(kind)+` AND attempted_at >= ?
		ORDER BY attempted_at ASC LIMIT 1`,
		kind, identifier, since.UTC()).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, store.ErrNotFound
	}
	return at, err
}

func (r *loginAttemptsRepo) DeleteAttempts(ctx context.Context, kind domain.AccountKind, identifier string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM failed_login_attempts
		WHERE kind = ? AND `+r.identifierClause(kind)+``,
		kind, identifier)
	return err
}

func (r *loginAttemptsRepo) DeleteAttemptsBefore(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_login_attempts WHERE attempted_at < ?`, before.UTC())
	return err
}
