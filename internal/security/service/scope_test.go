package service

import (
	"context"
	"testing"

	"github.com/okapicare/tenantguard/internal/security/domain"

	"github.com/stretchr/testify/require"
)

func TestScopeResolve(t *testing.T) {
	st := newTestStore(t)
	svc := &ScopeService{Store: st}
	ctx := context.Background()

	owner := seedAccount(t, st, domain.KindOwner, "owner@example.com", "Sup3rSecret!pass")
	other := seedAccount(t, st, domain.KindOwner, "other@example.com", "Sup3rSecret!pass")
	admin := seedAccount(t, st, domain.KindAdmin, "admin@example.com", "Sup3rSecret!pass")

	claimed := seedFacility(t, st, &owner.ID, domain.ClaimClaimed)
	pending := seedFacility(t, st, &owner.ID, domain.ClaimPending)
	othersFacility := seedFacility(t, st, &other.ID, domain.ClaimClaimed)

	t.Run("impersonating admin overrides requested id", func(t *testing.T) {
		caller := domain.PlatformAdmin(admin.ID, "sess-1", &claimed.ID)

		got, err := svc.Resolve(ctx, caller, &othersFacility.ID)
		require.NoError(t, err)
		require.Equal(t, claimed.ID, got)
	})

	t.Run("impersonation of deleted facility fails rather than falling through", func(t *testing.T) {
		caller := domain.PlatformAdmin(admin.ID, "sess-1", strptr("gone"))

		_, err := svc.Resolve(ctx, caller, &claimed.ID)
		require.ErrorIs(t, err, ErrFacilityNotFound)
	})

	t.Run("admin without impersonation uses requested id", func(t *testing.T) {
		caller := domain.PlatformAdmin(admin.ID, "sess-1", nil)

		got, err := svc.Resolve(ctx, caller, &othersFacility.ID)
		require.NoError(t, err)
		require.Equal(t, othersFacility.ID, got)
	})

	t.Run("admin requesting unknown facility", func(t *testing.T) {
		caller := domain.PlatformAdmin(admin.ID, "sess-1", nil)

		_, err := svc.Resolve(ctx, caller, strptr("gone"))
		require.ErrorIs(t, err, ErrFacilityNotFound)
	})

	t.Run("admin without any facility id", func(t *testing.T) {
		caller := domain.PlatformAdmin(admin.ID, "sess-1", nil)

		_, err := svc.Resolve(ctx, caller, nil)
		require.ErrorIs(t, err, ErrMissingFacilityID)
	})

	t.Run("owner resolves own claimed facility", func(t *testing.T) {
		caller := domain.TenantOwner(owner.ID, "sess-2")

		got, err := svc.Resolve(ctx, caller, &claimed.ID)
		require.NoError(t, err)
		require.Equal(t, claimed.ID, got)
	})

	t.Run("owner must request a facility id", func(t *testing.T) {
		caller := domain.TenantOwner(owner.ID, "sess-2")

		_, err := svc.Resolve(ctx, caller, nil)
		require.ErrorIs(t, err, ErrMissingFacilityID)
	})

	t.Run("owner denied another owner's facility", func(t *testing.T) {
		caller := domain.TenantOwner(owner.ID, "sess-2")

		_, err := svc.Resolve(ctx, caller, &othersFacility.ID)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("owner denied an unclaimed facility", func(t *testing.T) {
		caller := domain.TenantOwner(owner.ID, "sess-2")

		_, err := svc.Resolve(ctx, caller, &pending.ID)
		require.ErrorIs(t, err, ErrFacilityNotClaimed)
	})

	t.Run("staff resolves session binding", func(t *testing.T) {
		caller := domain.FacilityStaff("staff-1", "sess-3", claimed.ID)

		got, err := svc.Resolve(ctx, caller, &othersFacility.ID)
		require.NoError(t, err)
		require.Equal(t, claimed.ID, got)
	})

	t.Run("unauthenticated caller", func(t *testing.T) {
		_, err := svc.Resolve(ctx, domain.Unauthenticated(), &claimed.ID)
		require.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestScopeResolveIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	svc := &ScopeService{Store: st}
	ctx := context.Background()

	owner := seedAccount(t, st, domain.KindOwner, "repeat@example.com", "Sup3rSecret!pass")
	facility := seedFacility(t, st, &owner.ID, domain.ClaimClaimed)
	caller := domain.TenantOwner(owner.ID, "sess-1")

	for i := 0; i < 3; i++ {
		got, err := svc.Resolve(ctx, caller, &facility.ID)
		require.NoError(t, err)
		require.Equal(t, facility.ID, got)
	}
}
