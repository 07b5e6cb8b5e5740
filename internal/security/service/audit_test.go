package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/okapicare/tenantguard/internal/security/domain"

	"github.com/stretchr/testify/require"
)

func TestAuditLogAccessAndQuery(t *testing.T) {
	st := newTestStore(t)
	svc := &AuditService{Store: st}
	ctx := context.Background()

	facilityID := "fac-1"
	actorID := "owner-1"

	svc.LogAccess(ctx, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    domain.CallerOwner,
		Action:       domain.ActionView,
		ResourceType: "resident",
		ResourceID:   strptr("res-9"),
		FacilityID:   &facilityID,
	})
	svc.LogAccess(ctx, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    domain.CallerOwner,
		Action:       domain.ActionUpdate,
		ResourceType: "resident",
		ResourceID:   strptr("res-9"),
		FacilityID:   &facilityID,
		NewValues:    []byte(`{"room":"12B"}`),
	})
	svc.LogSecurityEvent(ctx, EventCrossTenantAttempt, domain.AuditEntry{
		ActorID:      &actorID,
		ActorKind:    domain.CallerOwner,
		ResourceType: "facility",
		FacilityID:   strptr("fac-2"),
	})

	t.Run("facility filter", func(t *testing.T) {
		entries, err := svc.Query(ctx, domain.AuditFilter{FacilityID: &facilityID})
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})

	t.Run("action filter", func(t *testing.T) {
		action := domain.ActionUpdate
		entries, err := svc.Query(ctx, domain.AuditFilter{FacilityID: &facilityID, Action: &action})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.JSONEq(t, `{"room":"12B"}`, string(entries[0].NewValues))
	})

	t.Run("security events carry flag and type", func(t *testing.T) {
		entries, err := svc.Query(ctx, domain.AuditFilter{SecurityOnly: true})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, entries[0].SecurityEvent)
		require.Equal(t, domain.ActionSecurityEvent, entries[0].Action)
		require.Equal(t, EventCrossTenantAttempt, *entries[0].SecurityEventType)
	})

	t.Run("actor filter", func(t *testing.T) {
		entries, err := svc.Query(ctx, domain.AuditFilter{ActorID: &actorID})
		require.NoError(t, err)
		require.Len(t, entries, 3)
	})
}

func TestAuditWriteFailureIsSwallowed(t *testing.T) {
	st := newTestStore(t)
	svc := &AuditService{Store: st}

	// Closing the store makes every insert fail; LogAccess must not panic or
	// propagate anything.
	require.NoError(t, st.Close())

	svc.LogAccess(context.Background(), domain.AuditEntry{
		Action:       domain.ActionView,
		ResourceType: "resident",
	})
	svc.LogSecurityEvent(context.Background(), EventLoginFailed, domain.AuditEntry{
		ResourceType: "account",
	})
}

func TestActionForMethod(t *testing.T) {
	tests := []struct {
		method string
		want   domain.AuditAction
	}{
		{http.MethodGet, domain.ActionView},
		{http.MethodHead, domain.ActionView},
		{http.MethodPost, domain.ActionCreate},
		{http.MethodPut, domain.ActionUpdate},
		{http.MethodPatch, domain.ActionUpdate},
		{http.MethodDelete, domain.ActionDelete},
		{"WEIRD", domain.ActionView},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ActionForMethod(tt.method), tt.method)
	}
}
