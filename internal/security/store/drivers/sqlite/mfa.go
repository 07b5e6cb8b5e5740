package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type mfaRepo struct {
	db dbtx
}

func (r *mfaRepo) GetMFACredential(ctx context.Context, accountID string) (domain.MFACredential, error) {
	var c domain.MFACredential
	var lastUsedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, encrypted_secret, is_enabled, failed_attempts, last_used_at, created_at, updated_at
		FROM mfa_credentials WHERE account_id = ?`, accountID).
		Scan(&c.AccountID, &c.EncryptedSecret, &c.Enabled, &c.FailedAttempts,
			&lastUsedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.MFACredential{}, mapNotFound(err)
	}
	c.LastUsedAt = mapNullTimePtr(lastUsedAt)
	return c, nil
}

func (r *mfaRepo) UpsertMFACredential(ctx context.Context, c domain.MFACredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_credentials (account_id, encrypted_secret, is_enabled, failed_attempts, created_at, updated_at)
		VALUES (?, ?, ?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (account_id) DO UPDATE SET
			encrypted_secret = excluded.encrypted_secret,
			is_enabled       = excluded.is_enabled,
			failed_attempts  = 0,
			updated_at       = CURRENT_TIMESTAMP`,
		c.AccountID, c.EncryptedSecret, c.Enabled)
	return err
}

func (r *mfaRepo) EnableMFA(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mfa_credentials
		SET is_enabled = 1, failed_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ?`, accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *mfaRepo) DeleteMFACredential(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_credentials WHERE account_id = ?`, accountID)
	return err
}

func (r *mfaRepo) RecordMFASuccess(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_credentials
		SET failed_attempts = 0, last_used_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ?`, at.UTC(), accountID)
	return err
}

func (r *mfaRepo) IncrementMFAFailures(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_credentials
		SET failed_attempts = failed_attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ?`, accountID)
	return err
}

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, accountID, codeHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_backup_codes (account_id, code_hash, created_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`,
		accountID, codeHash)
	return mapConstraint(err)
}

func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM mfa_backup_codes WHERE account_id = ? AND code_hash = ?`,
		accountID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_backup_codes WHERE account_id = ?`, accountID)
	return err
}

func (r *backupCodesRepo) CountBackupCodes(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mfa_backup_codes WHERE account_id = ?`, accountID).
		Scan(&count)
	return count, err
}
