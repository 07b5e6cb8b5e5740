package service

import (
	"context"
	"testing"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSessionService(t *testing.T) (*SessionService, store.Store) {
	t.Helper()
	st := newTestStore(t)
	return &SessionService{Store: st, Policies: &PolicyService{Store: st}}, st
}

func TestSessionCreateAndEnforce(t *testing.T) {
	svc, st := newSessionService(t)
	ctx := context.Background()

	t.Run("fresh session passes enforcement and bumps activity", func(t *testing.T) {
		created, err := svc.Create(ctx, domain.Session{
			ID:        uuid.NewString(),
			AccountID: "acct-1",
			Kind:      domain.CallerOwner,
		})
		require.NoError(t, err)
		require.True(t, created.Valid)

		got, err := svc.EnforceTimeout(ctx, created.ID)
		require.NoError(t, err)
		require.False(t, got.LastActivityAt.Before(created.LastActivityAt))
	})

	t.Run("unknown session is invalid, not expired", func(t *testing.T) {
		_, err := svc.EnforceTimeout(ctx, "no-such-session")
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("inactivity past the timeout expires terminally", func(t *testing.T) {
		id := uuid.NewString()
		stale := time.Now().UTC().Add(-16 * time.Minute) // default timeout is 15
		require.NoError(t, st.Sessions().UpsertSession(ctx, domain.Session{
			ID:             id,
			AccountID:      "acct-2",
			Kind:           domain.CallerOwner,
			CreatedAt:      stale,
			LastActivityAt: stale,
			ExpiresAt:      stale.Add(15 * time.Minute),
			Valid:          true,
		}))

		_, err := svc.EnforceTimeout(ctx, id)
		require.ErrorIs(t, err, ErrSessionExpired)

		// Terminal: the id cannot come back even with a fresh check.
		_, err = svc.EnforceTimeout(ctx, id)
		require.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("inactivity just under the timeout passes", func(t *testing.T) {
		id := uuid.NewString()
		recent := time.Now().UTC().Add(-14 * time.Minute)
		require.NoError(t, st.Sessions().UpsertSession(ctx, domain.Session{
			ID:             id,
			AccountID:      "acct-3",
			Kind:           domain.CallerOwner,
			CreatedAt:      recent,
			LastActivityAt: recent,
			ExpiresAt:      recent.Add(15 * time.Minute),
			Valid:          true,
		}))

		_, err := svc.EnforceTimeout(ctx, id)
		require.NoError(t, err)
	})
}

func TestSessionTimeoutFollowsFacilityPolicy(t *testing.T) {
	svc, st := newSessionService(t)
	ctx := context.Background()

	owner := seedAccount(t, st, domain.KindOwner, "policy-session@example.com", "Sup3rSecret!pass")
	facility := seedFacility(t, st, &owner.ID, domain.ClaimClaimed)

	policy := domain.DefaultSecurityPolicy()
	policy.FacilityID = facility.ID
	policy.SessionTimeoutMinutes = 5
	require.NoError(t, st.Policies().UpsertPolicy(ctx, policy))

	id := uuid.NewString()
	stale := time.Now().UTC().Add(-10 * time.Minute) // inside default 15, outside facility 5
	require.NoError(t, st.Sessions().UpsertSession(ctx, domain.Session{
		ID:             id,
		AccountID:      "staff-1",
		Kind:           domain.CallerStaff,
		FacilityID:     &facility.ID,
		CreatedAt:      stale,
		LastActivityAt: stale,
		ExpiresAt:      stale.Add(15 * time.Minute),
		Valid:          true,
	}))

	_, err := svc.EnforceTimeout(ctx, id)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionConcurrentCap(t *testing.T) {
	svc, st := newSessionService(t)
	ctx := context.Background()

	// Default cap is 3: the fourth login evicts the oldest.
	var ids []string
	for i := 0; i < 4; i++ {
		sess, err := svc.Create(ctx, domain.Session{
			ID:        uuid.NewString(),
			AccountID: "capped",
			Kind:      domain.CallerOwner,
		})
		require.NoError(t, err)
		ids = append(ids, sess.ID)
		time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	}

	active, err := st.Sessions().ListActiveSessionsByAccount(ctx, "capped", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, active, 3)
	for _, s := range active {
		require.NotEqual(t, ids[0], s.ID, "oldest session should have been evicted")
	}
}

func TestSessionInvalidateAccount(t *testing.T) {
	svc, st := newSessionService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, domain.Session{
			ID:        uuid.NewString(),
			AccountID: "wipe-me",
			Kind:      domain.CallerOwner,
		})
		require.NoError(t, err)
	}

	require.NoError(t, svc.InvalidateAccount(ctx, "wipe-me"))

	active, err := st.Sessions().ListActiveSessionsByAccount(ctx, "wipe-me", time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, active)
}
