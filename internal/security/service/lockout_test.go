package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"

	"github.com/stretchr/testify/require"
)

func TestLockoutSlidingWindow(t *testing.T) {
	st := newTestStore(t)
	svc := &LockoutService{Store: st}
	ctx := context.Background()
	policy := domain.DefaultSecurityPolicy() // 5 attempts / 15 minute window

	t.Run("below threshold stays unlocked", func(t *testing.T) {
		seedAttempts(t, st, domain.KindOwner, "few@example.com", 4, time.Now().UTC().Add(-5*time.Minute))

		status, err := svc.IsLocked(ctx, domain.KindOwner, "few@example.com", policy)
		require.NoError(t, err)
		require.False(t, status.Locked)
	})

	t.Run("threshold within window locks with remaining minutes", func(t *testing.T) {
		seedAttempts(t, st, domain.KindOwner, "locked@example.com", 5, time.Now().UTC().Add(-5*time.Minute))

		status, err := svc.IsLocked(ctx, domain.KindOwner, "locked@example.com", policy)
		require.NoError(t, err)
		require.True(t, status.Locked)
		require.NotNil(t, status.LockedUntil)
		require.Greater(t, status.RemainingMinutes, 0)
		require.LessOrEqual(t, status.RemainingMinutes, policy.LockoutDurationMinutes)
	})

	t.Run("attempts outside the window do not count", func(t *testing.T) {
		seedAttempts(t, st, domain.KindOwner, "stale@example.com", 5, time.Now().UTC().Add(-20*time.Minute))

		status, err := svc.IsLocked(ctx, domain.KindOwner, "stale@example.com", policy)
		require.NoError(t, err)
		require.False(t, status.Locked)
	})

	t.Run("identifiers are isolated by kind", func(t *testing.T) {
		seedAttempts(t, st, domain.KindOwner, "kinds@example.com", 5, time.Now().UTC().Add(-5*time.Minute))

		status, err := svc.IsLocked(ctx, domain.KindAdmin, "kinds@example.com", policy)
		require.NoError(t, err)
		require.False(t, status.Locked)
	})

	t.Run("clear failures unlocks", func(t *testing.T) {
		seedAttempts(t, st, domain.KindOwner, "cleared@example.com", 5, time.Now().UTC().Add(-5*time.Minute))

		require.NoError(t, svc.ClearFailures(ctx, domain.KindOwner, "cleared@example.com"))

		status, err := svc.IsLocked(ctx, domain.KindOwner, "cleared@example.com", policy)
		require.NoError(t, err)
		require.False(t, status.Locked)
	})
}

func TestLockoutLockExpiry(t *testing.T) {
	st := newTestStore(t)
	svc := &LockoutService{Store: st}
	ctx := context.Background()
	policy := domain.DefaultSecurityPolicy()

	// Five attempts ending 14 minutes ago: the oldest is 14m old, so the
	// lock (oldest + 15m) has about a minute left.
	seedAttempts(t, st, domain.KindOwner, "almost@example.com", 5, time.Now().UTC().Add(-14*time.Minute))

	status, err := svc.IsLocked(ctx, domain.KindOwner, "almost@example.com", policy)
	require.NoError(t, err)
	require.True(t, status.Locked)
	require.LessOrEqual(t, status.RemainingMinutes, 2)
}

func TestLockoutRemainingAttempts(t *testing.T) {
	st := newTestStore(t)
	svc := &LockoutService{Store: st}
	ctx := context.Background()
	policy := domain.DefaultSecurityPolicy()

	remaining, err := svc.RemainingAttempts(ctx, domain.KindOwner, "fresh@example.com", policy)
	require.NoError(t, err)
	require.Equal(t, policy.MaxFailedLoginAttempts, remaining)

	seedAttempts(t, st, domain.KindOwner, "fresh@example.com", 3, time.Now().UTC().Add(-time.Minute))

	remaining, err = svc.RemainingAttempts(ctx, domain.KindOwner, "fresh@example.com", policy)
	require.NoError(t, err)
	require.Equal(t, 2, remaining)

	seedAttempts(t, st, domain.KindOwner, "fresh@example.com", 10, time.Now().UTC().Add(-time.Minute))

	remaining, err = svc.RemainingAttempts(ctx, domain.KindOwner, "fresh@example.com", policy)
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestLockoutConcurrentFailures(t *testing.T) {
	st := newTestStore(t)
	svc := &LockoutService{Store: st}
	ctx := context.Background()
	policy := domain.DefaultSecurityPolicy()

	email := "race@example.com"
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := email
			_ = svc.RecordFailure(ctx, domain.FailedLogin{Email: &e, Kind: domain.KindOwner})
		}()
	}
	wg.Wait()

	status, err := svc.IsLocked(ctx, domain.KindOwner, email, policy)
	require.NoError(t, err)
	require.True(t, status.Locked)
}
