package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, kind, email, name, password_hash, status, can_impersonate,
	password_changed_at, last_login_at, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var passwordChangedAt, lastLoginAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Kind, &a.Email, &a.Name, &a.PasswordHash, &a.Status,
		&a.CanImpersonate, &passwordChangedAt, &lastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.PasswordChangedAt = mapNullTimePtr(passwordChangedAt)
	a.LastLoginAt = mapNullTimePtr(lastLoginAt)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, kind domain.AccountKind, email string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE kind = ? AND email = ?`, kind, email))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, kind, email, name, password_hash, status, can_impersonate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		a.ID, a.Kind, a.Email, a.Name, a.PasswordHash, a.Status, a.CanImpersonate,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	return err
}

func (r *accountsRepo) SetCanImpersonate(ctx context.Context, id string, allowed bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET can_impersonate = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		allowed, id)
	return err
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id string, newHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?, password_changed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		newHash, id)
	return err
}

func (r *accountsRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at.UTC(), id)
	return err
}

func (r *accountsRepo) AddPasswordHistory(ctx context.Context, accountID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_history (id, account_id, password_hash, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		newEntryID(), accountID, passwordHash)
	return err
}

func (r *accountsRepo) ListPasswordHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, password_hash, created_at
		FROM password_history
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var e domain.PasswordHistoryEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.PasswordHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
