package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
)

// ErrPasswordPolicy wraps one or more password rule violations.
var ErrPasswordPolicy = errors.New("password_policy_violation")

// PasswordPolicyError carries the individual rule violations so the caller
// can present all of them at once rather than one per attempt.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password does not meet policy: " + strings.Join(e.Violations, "; ")
}

func (e *PasswordPolicyError) Unwrap() error { return ErrPasswordPolicy }

// PolicyService resolves and maintains per-facility security policies. A
// facility with no record of its own gets the platform defaults.
type PolicyService struct {
	Store store.Store
}

// Get returns the facility's policy, or the defaults when none is stored.
// An empty facility id also yields the defaults; account-level operations
// that have no facility in scope use those.
func (s *PolicyService) Get(ctx context.Context, facilityID string) (domain.SecurityPolicy, error) {
	if facilityID == "" {
		return domain.DefaultSecurityPolicy(), nil
	}
	p, err := s.Store.Policies().GetPolicy(ctx, facilityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d := domain.DefaultSecurityPolicy()
			d.FacilityID = facilityID
			return d, nil
		}
		return domain.SecurityPolicy{}, fmt.Errorf("failed to load security policy: %w", err)
	}
	return p, nil
}

// Update validates and persists a facility policy override.
func (s *PolicyService) Update(ctx context.Context, p domain.SecurityPolicy) error {
	if p.FacilityID == "" {
		return errors.New("facility id is required")
	}
	if p.SessionTimeoutMinutes < 1 ||
		p.MaxFailedLoginAttempts < 1 ||
		p.LockoutDurationMinutes < 1 ||
		p.MaxConcurrentSessions < 1 ||
		p.MinPasswordLength < 8 ||
		p.PasswordExpiryDays < 0 ||
		p.PasswordHistoryCount < 0 {
		return errors.New("policy thresholds out of range")
	}
	if err := s.Store.Policies().UpsertPolicy(ctx, p); err != nil {
		return fmt.Errorf("failed to store security policy: %w", err)
	}
	return nil
}

// ValidatePassword checks a candidate password against the policy's
// composition rules. Returns *PasswordPolicyError listing every violation.
func (s *PolicyService) ValidatePassword(policy domain.SecurityPolicy, password string) error {
	var violations []string

	if len(password) < policy.MinPasswordLength {
		violations = append(violations,
			fmt.Sprintf("must be at least %d characters", policy.MinPasswordLength))
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if policy.RequireLowercase && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if policy.RequireNumbers && !hasNumber {
		violations = append(violations, "must contain a number")
	}
	if policy.RequireSpecialChars && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}

	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}

// PasswordExpired reports whether the account's password has outlived the
// policy's expiry. Accounts that never changed their password are measured
// from creation.
func (s *PolicyService) PasswordExpired(policy domain.SecurityPolicy, a domain.Account) bool {
	if policy.PasswordExpiryDays <= 0 {
		return false
	}
	changedAt := a.CreatedAt
	if a.PasswordChangedAt != nil {
		changedAt = *a.PasswordChangedAt
	}
	expiry := changedAt.Add(time.Duration(policy.PasswordExpiryDays) * 24 * time.Hour)
	return time.Now().UTC().After(expiry)
}
