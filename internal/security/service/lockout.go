package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
)

// ErrAccountLocked is returned when the sliding-window failure count has
// tripped the lock. Callers should surface the remaining minutes from the
// accompanying LockStatus.
var ErrAccountLocked = errors.New("account_locked")

// LockedError carries the human-facing remaining-time estimate the transport
// layer must include in 423 responses. Unwraps to ErrAccountLocked.
type LockedError struct {
	LockedUntil      time.Time
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for another %d minute(s)", e.RemainingMinutes)
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// LockoutService is the brute-force lockout engine. It keeps no in-process
// state: every decision recounts the failed-login records in the trailing
// window, so concurrent failures for the same identifier can never corrupt
// the count.
type LockoutService struct {
	Store store.Store
}

// IsLocked reports whether (identifier, kind) is currently locked under the
// given policy.
//
// The window is sliding: attempts at or after now-lockoutDuration count. When
// the count reaches the policy maximum, the lock expires at
// oldestAttemptInWindow + lockoutDuration. An expired lock is not cleared
// here; the history is only wiped by the next verified successful login, and
// a fresh failure can re-trip the lock.
func (s *LockoutService) IsLocked(ctx context.Context, kind domain.AccountKind, identifier string, policy domain.SecurityPolicy) (domain.LockStatus, error) {
	now := time.Now().UTC()
	since := now.Add(-policy.LockoutWindow())

	count, err := s.Store.LoginAttempts().CountAttemptsSince(ctx, kind, identifier, since)
	if err != nil {
		return domain.LockStatus{}, fmt.Errorf("failed to count login attempts: %w", err)
	}
	if count < policy.MaxFailedLoginAttempts {
		return domain.LockStatus{}, nil
	}

	oldest, err := s.Store.LoginAttempts().OldestAttemptSince(ctx, kind, identifier, since)
	if err != nil {
		// The window emptied between the two queries; treat as unlocked.
		if errors.Is(err, store.ErrNotFound) {
			return domain.LockStatus{}, nil
		}
		return domain.LockStatus{}, fmt.Errorf("failed to find oldest login attempt: %w", err)
	}

	lockedUntil := oldest.Add(policy.LockoutWindow())
	if !now.Before(lockedUntil) {
		// Lock has naturally elapsed; a new failure must re-trip it.
		return domain.LockStatus{}, nil
	}

	return domain.LockStatus{
		Locked:           true,
		LockedUntil:      &lockedUntil,
		RemainingMinutes: remainingMinutes(now, lockedUntil),
	}, nil
}

// RecordFailure appends one failed attempt. Append-only and safe under
// concurrent writes for the same identifier.
func (s *LockoutService) RecordFailure(ctx context.Context, attempt domain.FailedLogin) error {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	if err := s.Store.LoginAttempts().InsertAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

// ClearFailures wipes the identifier's failure history. Callers must only
// invoke this after a verified-correct credential comparison, never
// speculatively.
func (s *LockoutService) ClearFailures(ctx context.Context, kind domain.AccountKind, identifier string) error {
	if err := s.Store.LoginAttempts().DeleteAttempts(ctx, kind, identifier); err != nil {
		return fmt.Errorf("failed to clear login failures: %w", err)
	}
	return nil
}

// RemainingAttempts reports how many more failures the identifier can absorb
// in the current window before locking. Never negative.
func (s *LockoutService) RemainingAttempts(ctx context.Context, kind domain.AccountKind, identifier string, policy domain.SecurityPolicy) (int, error) {
	since := time.Now().UTC().Add(-policy.LockoutWindow())
	count, err := s.Store.LoginAttempts().CountAttemptsSince(ctx, kind, identifier, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count login attempts: %w", err)
	}
	remaining := policy.MaxFailedLoginAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// remainingMinutes rounds up so a lock with 30 seconds left still reports one
// minute rather than zero.
func remainingMinutes(now, until time.Time) int {
	return int(math.Ceil(until.Sub(now).Minutes()))
}
