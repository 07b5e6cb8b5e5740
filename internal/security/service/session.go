package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/slogx"
)

var (
	// ErrSessionExpired is returned when a session timed out from inactivity.
	// It is distinct from ErrInvalidSession so clients can tell "logged in,
	// expired" apart from "never logged in".
	ErrSessionExpired = errors.New("session_timeout")
)

// SessionService owns the durable session lifecycle: creation with a
// concurrent-session cap, inactivity timeout enforcement, and invalidation.
type SessionService struct {
	Store    store.Store
	Policies *PolicyService
}

// Create persists a new session, evicting the account's oldest active
// sessions when the policy's concurrent cap would be exceeded. Re-creating
// with the same session id refreshes instead of duplicating, so login retries
// are idempotent.
func (s *SessionService) Create(ctx context.Context, sess domain.Session) (domain.Session, error) {
	now := time.Now().UTC()

	policy, err := s.Policies.Get(ctx, sessionFacility(sess))
	if err != nil {
		return domain.Session{}, err
	}

	timeout := policy.SessionTimeout()
	sess.CreatedAt = now
	sess.LastActivityAt = now
	sess.ExpiresAt = now.Add(timeout)
	sess.Valid = true

	active, err := s.Store.Sessions().ListActiveSessionsByAccount(ctx, sess.AccountID, now)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to list active sessions: %w", err)
	}

	// Evict oldest-first until the new session fits under the cap.
	excess := len(active) - policy.MaxConcurrentSessions + 1
	for i := 0; i < excess && i < len(active); i++ {
		if active[i].ID == sess.ID {
			continue
		}
		if err := s.Store.Sessions().InvalidateSession(ctx, active[i].ID); err != nil {
			return domain.Session{}, fmt.Errorf("failed to evict session: %w", err)
		}
		slogx.FromContext(ctx).Info("evicted oldest session for concurrent cap",
			"account_id", sess.AccountID, "evicted_session_id", active[i].ID)
	}

	if err := s.Store.Sessions().UpsertSession(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// EnforceTimeout loads the session, applies the inactivity timeout, and on
// pass bumps last-activity. The timeout is re-read from the facility policy
// on every check, so a policy change takes effect on the next request.
//
// Returns ErrInvalidSession for unknown or invalidated sessions and
// ErrSessionExpired for sessions that ran out of activity. Expiry is
// terminal: the record is invalidated so the id cannot come back.
func (s *SessionService) EnforceTimeout(ctx context.Context, sessionID string) (domain.Session, error) {
	now := time.Now().UTC()

	sess, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrInvalidSession
		}
		return domain.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.Valid {
		return domain.Session{}, ErrInvalidSession
	}

	policy, err := s.Policies.Get(ctx, sessionFacility(sess))
	if err != nil {
		return domain.Session{}, err
	}
	timeout := policy.SessionTimeout()

	if now.Sub(sess.LastActivityAt) > timeout {
		if err := s.Store.Sessions().InvalidateSession(ctx, sessionID); err != nil {
			slogx.FromContext(ctx).Error("failed to invalidate expired session",
				"session_id", sessionID, "error", err)
		}
		return domain.Session{}, ErrSessionExpired
	}

	// Last write wins; concurrent touches can only shorten the effective
	// timeout, never extend it.
	expiresAt := now.Add(timeout)
	if err := s.Store.Sessions().TouchSession(ctx, sessionID, now, expiresAt); err != nil {
		return domain.Session{}, fmt.Errorf("failed to touch session: %w", err)
	}

	sess.LastActivityAt = now
	sess.ExpiresAt = expiresAt
	return sess, nil
}

// Invalidate kills one session. Idempotent.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.Store.Sessions().InvalidateSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// InvalidateAccount kills every session for an account, e.g. after a
// password change or suspension.
func (s *SessionService) InvalidateAccount(ctx context.Context, accountID string) error {
	if err := s.Store.Sessions().InvalidateAccountSessions(ctx, accountID); err != nil {
		return fmt.Errorf("failed to invalidate account sessions: %w", err)
	}
	return nil
}

// sessionFacility picks the facility whose policy governs this session:
// the staff binding first, then an admin impersonation target, else none.
func sessionFacility(sess domain.Session) string {
	if sess.FacilityID != nil {
		return *sess.FacilityID
	}
	if sess.ImpersonatedFacilityID != nil {
		return *sess.ImpersonatedFacilityID
	}
	return ""
}
