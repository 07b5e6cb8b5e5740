package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/cryptox"
	"github.com/okapicare/tenantguard/pkg/metricsx"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike;
	// the two are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrMFARequired means the password checked out but the account enforces
	// MFA and no code accompanied the request.
	ErrMFARequired = errors.New("mfa_required")

	// ErrInvalidMFACode means the supplied TOTP or backup code failed.
	ErrInvalidMFACode = errors.New("invalid_mfa_code")

	// ErrAccountInactive covers suspended and not-yet-verified accounts.
	ErrAccountInactive = errors.New("account_inactive")

	// ErrPasswordReused means the new password matches one of the retained
	// history hashes.
	ErrPasswordReused = errors.New("password_reused")

	// ErrValidation flags malformed input rejected before any store access.
	ErrValidation = errors.New("validation_failed")
)

// LoginService orchestrates owner and administrator password logins: lockout
// gate, credential comparison, MFA step, session issue, audit. It also owns
// impersonation state and password changes.
type LoginService struct {
	Store    store.Store
	Lockout  *LockoutService
	Sessions *SessionService
	MFA      *MFAService
	Policies *PolicyService
	Audit    *AuditService
}

// LoginRequest carries one password login attempt.
type LoginRequest struct {
	Kind     domain.AccountKind
	Email    string
	Password string

	// MFACode is a TOTP code or backup code; empty when the client has not
	// been challenged yet.
	MFACode string

	IPAddress   string
	UserAgent   string
	DeviceLabel string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Account domain.Account
	Session domain.Session
}

// Login authenticates an owner or administrator. Gates in order: lockout
// check before the credential comparison, then password, then account
// status, then MFA. Failure history is cleared only after every gate has
// passed.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if req.Email == "" || req.Password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if req.Kind != domain.KindOwner && req.Kind != domain.KindAdmin {
		return LoginResult{}, fmt.Errorf("%w: unknown account kind", ErrValidation)
	}

	kindLabel := string(req.Kind)
	policy := domain.DefaultSecurityPolicy()

	lock, err := s.Lockout.IsLocked(ctx, req.Kind, req.Email, policy)
	if err != nil {
		return LoginResult{}, err
	}
	if lock.Locked {
		s.Audit.LogSecurityEvent(ctx, EventAccountLocked, domain.AuditEntry{
			ActorKind:    domain.CallerUnauthenticated,
			ResourceType: "account",
			Description:  "login attempt while locked",
			IPAddress:    req.IPAddress,
			UserAgent:    req.UserAgent,
		})
		metricsx.ObserveLogin(kindLabel, "locked")
		return LoginResult{}, &LockedError{
			LockedUntil:      *lock.LockedUntil,
			RemainingMinutes: lock.RemainingMinutes,
		}
	}

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, req.Kind, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, s.failLogin(ctx, req, policy)
		}
		return LoginResult{}, fmt.Errorf("failed to load account: %w", err)
	}

	if err := cryptox.VerifyPassword(req.Password, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return LoginResult{}, s.failLogin(ctx, req, policy)
		}
		return LoginResult{}, fmt.Errorf("failed to verify password: %w", err)
	}

	if account.Status != domain.StatusActive {
		metricsx.ObserveLogin(kindLabel, "inactive")
		return LoginResult{}, ErrAccountInactive
	}

	mfaEnabled, err := s.MFA.IsEnabled(ctx, account.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if mfaEnabled {
		if req.MFACode == "" {
			metricsx.ObserveLogin(kindLabel, "mfa_required")
			return LoginResult{}, ErrMFARequired
		}
		ok, err := s.MFA.VerifyLogin(ctx, account.ID, req.MFACode)
		if err != nil {
			return LoginResult{}, err
		}
		if !ok {
			ok, err = s.MFA.VerifyBackupCode(ctx, account.ID, req.MFACode)
			if err != nil {
				return LoginResult{}, err
			}
		}
		if !ok {
			s.Audit.LogSecurityEvent(ctx, EventMFAFailed, domain.AuditEntry{
				ActorID:      &account.ID,
				ActorKind:    callerKind(req.Kind),
				ResourceType: "account",
				ResourceID:   &account.ID,
				IPAddress:    req.IPAddress,
				UserAgent:    req.UserAgent,
			})
			metricsx.ObserveLogin(kindLabel, "mfa_failed")
			return LoginResult{}, ErrInvalidMFACode
		}
	}

	// Every gate has passed; only now may the failure history be cleared.
	if err := s.Lockout.ClearFailures(ctx, req.Kind, req.Email); err != nil {
		return LoginResult{}, err
	}

	now := time.Now().UTC()
	if err := s.Store.Accounts().TouchLastLogin(ctx, account.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("failed to stamp login time: %w", err)
	}

	sess, err := s.Sessions.Create(ctx, domain.Session{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		Kind:        callerKind(req.Kind),
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		DeviceLabel: req.DeviceLabel,
	})
	if err != nil {
		return LoginResult{}, err
	}

	s.Audit.LogAccess(ctx, domain.AuditEntry{
		ActorID:      &account.ID,
		ActorKind:    callerKind(req.Kind),
		Action:       domain.ActionLogin,
		ResourceType: "account",
		ResourceID:   &account.ID,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		SessionID:    &sess.ID,
	})
	metricsx.ObserveLogin(kindLabel, "success")

	return LoginResult{Account: account, Session: sess}, nil
}

// failLogin records one failure, emits the security event, and reports a
// fresh lockout if this failure tripped it.
func (s *LoginService) failLogin(ctx context.Context, req LoginRequest, policy domain.SecurityPolicy) error {
	email := req.Email
	if err := s.Lockout.RecordFailure(ctx, domain.FailedLogin{
		Email:     &email,
		Kind:      req.Kind,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}); err != nil {
		return err
	}

	s.Audit.LogSecurityEvent(ctx, EventLoginFailed, domain.AuditEntry{
		ActorKind:    domain.CallerUnauthenticated,
		ResourceType: "account",
		Description:  "credential comparison failed",
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	})
	metricsx.ObserveLogin(string(req.Kind), "failure")

	lock, err := s.Lockout.IsLocked(ctx, req.Kind, req.Email, policy)
	if err != nil {
		return err
	}
	if lock.Locked {
		metricsx.ObserveLockout(string(req.Kind))
		return &LockedError{
			LockedUntil:      *lock.LockedUntil,
			RemainingMinutes: lock.RemainingMinutes,
		}
	}
	return ErrInvalidCredentials
}

// Logout invalidates the caller's session and writes the access entry.
func (s *LoginService) Logout(ctx context.Context, caller domain.Caller, meta AttemptMeta) error {
	if caller.SessionID == "" {
		return ErrInvalidSession
	}
	if err := s.Sessions.Invalidate(ctx, caller.SessionID); err != nil {
		return err
	}
	actorID := caller.AccountID
	s.Audit.LogAccess(ctx, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    caller.Kind,
		Action:       domain.ActionLogout,
		ResourceType: "session",
		ResourceID:   &caller.SessionID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

// StartImpersonation pins an administrator's session to a facility. The
// target must exist and the administrator must hold the impersonation grant.
// The override stays until StopImpersonation; the scope resolver never
// clears it.
func (s *LoginService) StartImpersonation(ctx context.Context, caller domain.Caller, facilityID string, meta AttemptMeta) error {
	if caller.Kind != domain.CallerAdmin {
		return ErrForbidden
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, caller.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !account.CanImpersonate {
		return ErrForbidden
	}

	if _, err := s.Store.Facilities().GetFacilityByID(ctx, facilityID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFacilityNotFound
		}
		return fmt.Errorf("failed to load facility: %w", err)
	}

	if err := s.Store.Sessions().SetImpersonation(ctx, caller.SessionID, &facilityID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidSession
		}
		return fmt.Errorf("failed to set impersonation: %w", err)
	}

	actorID := caller.AccountID
	s.Audit.LogSecurityEvent(ctx, EventImpersonationStarted, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    domain.CallerAdmin,
		ResourceType: "facility",
		ResourceID:   &facilityID,
		FacilityID:   &facilityID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		SessionID:    &caller.SessionID,
	})
	return nil
}

// StopImpersonation clears the administrator's impersonation target.
func (s *LoginService) StopImpersonation(ctx context.Context, caller domain.Caller, meta AttemptMeta) error {
	if caller.Kind != domain.CallerAdmin {
		return ErrForbidden
	}
	if err := s.Store.Sessions().SetImpersonation(ctx, caller.SessionID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidSession
		}
		return fmt.Errorf("failed to clear impersonation: %w", err)
	}

	actorID := caller.AccountID
	s.Audit.LogSecurityEvent(ctx, EventImpersonationStopped, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    domain.CallerAdmin,
		ResourceType: "facility",
		FacilityID:   caller.ImpersonatedFacilityID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		SessionID:    &caller.SessionID,
	})
	return nil
}

// ChangePassword rotates an account's password: current password proof,
// policy composition rules, reuse check against the retained history, then
// the swap. All of the account's sessions are invalidated so stolen sessions
// don't outlive the rotation.
func (s *LoginService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta AttemptMeta) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	if err := cryptox.VerifyPassword(currentPassword, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}

	policy := domain.DefaultSecurityPolicy()
	if err := s.Policies.ValidatePassword(policy, newPassword); err != nil {
		return err
	}

	// The current hash counts toward the reuse window too.
	if cryptox.VerifyPassword(newPassword, account.PasswordHash) == nil {
		return ErrPasswordReused
	}
	history, err := s.Store.Accounts().ListPasswordHistory(ctx, accountID, policy.PasswordHistoryCount)
	if err != nil {
		return fmt.Errorf("failed to load password history: %w", err)
	}
	for _, entry := range history {
		if cryptox.VerifyPassword(newPassword, entry.PasswordHash) == nil {
			return ErrPasswordReused
		}
	}

	newHash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().AddPasswordHistory(ctx, accountID, account.PasswordHash); err != nil {
			return err
		}
		return tx.Accounts().UpdatePasswordHash(ctx, accountID, newHash)
	})
	if err != nil {
		return fmt.Errorf("failed to rotate password: %w", err)
	}

	if err := s.Sessions.InvalidateAccount(ctx, accountID); err != nil {
		return err
	}

	s.Audit.LogSecurityEvent(ctx, EventPasswordChanged, domain.AuditEntry{
		ActorID:      &accountID,
		ActorKind:    callerKind(account.Kind),
		ResourceType: "account",
		ResourceID:   &accountID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	return nil
}

func callerKind(kind domain.AccountKind) domain.CallerKind {
	switch kind {
	case domain.KindOwner:
		return domain.CallerOwner
	case domain.KindAdmin:
		return domain.CallerAdmin
	default:
		return domain.CallerUnauthenticated
	}
}
