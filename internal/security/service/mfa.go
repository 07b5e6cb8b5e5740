package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/cryptox"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const backupCodeCount = 8

var (
	ErrInvalidTOTPCode = errors.New("invalid_totp_code")
	ErrMFANotEnrolled  = errors.New("mfa_not_enrolled")
	ErrMFAEnabled      = errors.New("mfa_already_enabled")
)

// MFAService manages TOTP enrolment and verification. The shared secret is
// persisted only in AES-GCM-encrypted form; backup codes only as one-way
// hashes, each consumed on first successful use.
type MFAService struct {
	Store  store.Store
	Issuer string // issuer label shown in authenticator apps
}

// Setup issues a fresh TOTP secret and backup codes for the account. MFA is
// NOT enabled yet; the account must prove possession via Enable first.
// Re-running Setup replaces any prior unconfirmed enrolment.
//
// The returned plaintext secret and codes are shown to the user exactly once
// and never persisted.
func (s *MFAService) Setup(ctx context.Context, accountID, email string) (domain.MFASetup, error) {
	existing, err := s.Store.MFA().GetMFACredential(ctx, accountID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.MFASetup{}, fmt.Errorf("failed to load mfa credential: %w", err)
	}
	if err == nil && existing.Enabled {
		return domain.MFASetup{}, ErrMFAEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("failed to generate totp key: %w", err)
	}

	encrypted, err := cryptox.EncryptSecret([]byte(key.Secret()))
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("failed to encrypt totp secret: %w", err)
	}

	codes, err := cryptox.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFA().UpsertMFACredential(ctx, domain.MFACredential{
			AccountID:       accountID,
			EncryptedSecret: encrypted,
		}); err != nil {
			return err
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, accountID); err != nil {
			return err
		}
		for _, code := range codes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, accountID, cryptox.HashBackupCode(code)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("failed to store mfa enrolment: %w", err)
	}

	return domain.MFASetup{
		Secret:      key.Secret(),
		QRPayload:   key.URL(),
		BackupCodes: codes,
	}, nil
}

// Enable turns MFA enforcement on after verifying a code over the just-issued
// secret. The code must be current; this proves the account actually captured
// the secret before lockout-by-misconfiguration becomes possible.
func (s *MFAService) Enable(ctx context.Context, accountID, code string) error {
	cred, err := s.Store.MFA().GetMFACredential(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnrolled
		}
		return fmt.Errorf("failed to load mfa credential: %w", err)
	}
	if cred.Enabled {
		return ErrMFAEnabled
	}

	ok, err := s.validateCode(cred, code)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.Store.MFA().IncrementMFAFailures(ctx, accountID); err != nil {
			return fmt.Errorf("failed to record mfa failure: %w", err)
		}
		return ErrInvalidTOTPCode
	}

	if err := s.Store.MFA().EnableMFA(ctx, accountID); err != nil {
		return fmt.Errorf("failed to enable mfa: %w", err)
	}
	return nil
}

// Disable removes the enrolment and all backup codes. When MFA is enabled a
// valid current code is required; an unconfirmed enrolment can be discarded
// without one.
func (s *MFAService) Disable(ctx context.Context, accountID, code string) error {
	cred, err := s.Store.MFA().GetMFACredential(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnrolled
		}
		return fmt.Errorf("failed to load mfa credential: %w", err)
	}

	if cred.Enabled {
		ok, err := s.validateCode(cred, code)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTOTPCode
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFA().DeleteMFACredential(ctx, accountID); err != nil {
			return err
		}
		return tx.BackupCodes().DeleteAllBackupCodes(ctx, accountID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove mfa enrolment: %w", err)
	}
	return nil
}

// IsEnabled reports whether the account has confirmed MFA enforcement.
func (s *MFAService) IsEnabled(ctx context.Context, accountID string) (bool, error) {
	cred, err := s.Store.MFA().GetMFACredential(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load mfa credential: %w", err)
	}
	return cred.Enabled, nil
}

// VerifyLogin checks a TOTP code during login. Accounts without enabled MFA
// pass trivially - callers needing to distinguish "not required" from
// "verified" must check IsEnabled separately.
func (s *MFAService) VerifyLogin(ctx context.Context, accountID, code string) (bool, error) {
	cred, err := s.Store.MFA().GetMFACredential(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to load mfa credential: %w", err)
	}
	if !cred.Enabled {
		return true, nil
	}

	ok, err := s.validateCode(cred, code)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := s.Store.MFA().IncrementMFAFailures(ctx, accountID); err != nil {
			return false, fmt.Errorf("failed to record mfa failure: %w", err)
		}
		return false, nil
	}

	if err := s.Store.MFA().RecordMFASuccess(ctx, accountID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("failed to record mfa success: %w", err)
	}
	return true, nil
}

// VerifyBackupCode consumes a single-use backup code. Verifying is mutating:
// a code that matches is removed from the set and can never match again.
func (s *MFAService) VerifyBackupCode(ctx context.Context, accountID, code string) (bool, error) {
	used, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, accountID, cryptox.HashBackupCode(code))
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	if used {
		if err := s.Store.MFA().RecordMFASuccess(ctx, accountID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("failed to record mfa success: %w", err)
		}
	}
	return used, nil
}

// validateCode decrypts the stored secret and validates the code with a
// one-step acceptance window either side to absorb clock drift.
func (s *MFAService) validateCode(cred domain.MFACredential, code string) (bool, error) {
	secret, err := cryptox.DecryptSecret(cred.EncryptedSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt totp secret: %w", err)
	}
	ok, err := totp.ValidateCustom(code, string(secret), time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, nil
	}
	return ok, nil
}
