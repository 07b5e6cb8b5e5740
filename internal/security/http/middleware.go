package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/pkg/httpx"
	"github.com/okapicare/tenantguard/pkg/sessiontoken"
)

// SessionCookie is the transport cookie carrying the signed session token.
const SessionCookie = "tg_session"

type ctxKey int

const (
	ctxKeyCaller ctxKey = iota
	ctxKeyFacility
)

// CallerFromContext returns the authenticated caller, or an unauthenticated
// one when the request carried no valid session.
func CallerFromContext(ctx context.Context) domain.Caller {
	if c, ok := ctx.Value(ctxKeyCaller).(domain.Caller); ok {
		return c
	}
	return domain.Unauthenticated()
}

// FacilityFromContext returns the facility id resolved for this request.
func FacilityFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyFacility).(string); ok {
		return id
	}
	return ""
}

// extractToken pulls the session token from the cookie or, as a fallback for
// non-browser clients, a bearer Authorization header.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// Authn validates the transport token, enforces the inactivity timeout on
// the backing session record, and attaches the resulting Caller to the
// request context. The timeout check doubles as the activity bump.
func Authn(codec *sessiontoken.Codec, sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				writeServiceError(w, r, service.ErrInvalidSession)
				return
			}

			sessionID, err := codec.Parse(raw)
			if err != nil {
				writeServiceError(w, r, service.ErrInvalidSession)
				return
			}

			sess, err := sessions.EnforceTimeout(r.Context(), sessionID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}

			var caller domain.Caller
			switch sess.Kind {
			case domain.CallerOwner:
				caller = domain.TenantOwner(sess.AccountID, sess.ID)
			case domain.CallerAdmin:
				caller = domain.PlatformAdmin(sess.AccountID, sess.ID, sess.ImpersonatedFacilityID)
			case domain.CallerStaff:
				if sess.FacilityID == nil {
					writeServiceError(w, r, service.ErrInvalidSession)
					return
				}
				caller = domain.FacilityStaff(sess.AccountID, sess.ID, *sess.FacilityID)
			default:
				writeServiceError(w, r, service.ErrInvalidSession)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FacilityScope resolves the facility the caller may act on from the
// {facility} path value (or ?facility_id= for routes without one) and stores
// it in the context. Denials are recorded as cross-tenant security events
// before the error response goes out.
func FacilityScope(scope *service.ScopeService, audit *service.AuditService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())

			var requested *string
			if v := r.PathValue("facility"); v != "" {
				requested = &v
			} else if v := r.URL.Query().Get("facility_id"); v != "" {
				requested = &v
			}

			facilityID, err := scope.Resolve(r.Context(), caller, requested)
			if err == nil && requested != nil && facilityID != *requested {
				// The caller's scope resolved to a different facility than the
				// URL names (staff bound elsewhere, admin impersonating another
				// facility). Serving one facility's data under another's URL
				// would be a lie, so refuse.
				err = service.ErrForbidden
			}
			if err != nil {
				if isScopeDenial(err) {
					actorID := caller.AccountID
					audit.LogSecurityEvent(r.Context(), service.EventCrossTenantAttempt, domain.AuditEntry{
						ActorID:      &actorID,
						ActorKind:    caller.Kind,
						ResourceType: "facility",
						ResourceID:   requested,
						Description:  err.Error(),
						IPAddress:    httpx.ClientIP(r),
						UserAgent:    r.UserAgent(),
						SessionID:    &caller.SessionID,
					})
				}
				writeServiceError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyFacility, facilityID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isScopeDenial separates authorization refusals, which are security events,
// from plain bad requests and infrastructure errors, which are not.
func isScopeDenial(err error) bool {
	return errors.Is(err, service.ErrForbidden) ||
		errors.Is(err, service.ErrFacilityNotClaimed) ||
		errors.Is(err, service.ErrFacilityNotFound)
}

// RequireAdmin rejects callers that are not platform administrators.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()).Kind != domain.CallerAdmin {
			writeServiceError(w, r, service.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
