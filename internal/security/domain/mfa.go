package domain

import "time"

// MFACredential is one account's TOTP enrolment. The shared secret is stored
// only in AES-GCM-encrypted form; backup codes live in their own table as
// one-way hashes.
type MFACredential struct {
	AccountID       string
	EncryptedSecret []byte
	Enabled         bool
	FailedAttempts  int
	LastUsedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MFASetup is returned to the user exactly once, at enrolment. The plaintext
// secret and backup codes are never persisted.
type MFASetup struct {
	Secret      string
	QRPayload   string
	BackupCodes []string
}
