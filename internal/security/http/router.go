package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/pkg/httpx"
	"github.com/okapicare/tenantguard/pkg/metricsx"
	"github.com/okapicare/tenantguard/pkg/sessiontoken"
	"github.com/okapicare/tenantguard/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *sessiontoken.Codec
	tokenTTL     time.Duration
	secureCookie bool
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	LoginService   *service.LoginService
	SessionService *service.SessionService
	ScopeService   *service.ScopeService
	PINService     *service.PINService
	MFAService     *service.MFAService
	DeviceService  *service.DeviceService
	PolicyService  *service.PolicyService
	AuditService   *service.AuditService
}

func NewRouter(
	codec *sessiontoken.Codec,
	tokenTTL time.Duration,
	secureCookie bool,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		metricsx.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogins()
	r.registerAccount()
	r.registerMFA()
	r.registerStaff()
	r.registerDevices()
	r.registerPolicy()
	r.registerAudit()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn returns the session-validating middleware shared by every
// authenticated route.
func (r *Router) authn() httpx.Middleware {
	return Authn(r.codec, r.SessionService)
}

// scoped wraps a handler with authentication plus facility scope resolution.
func (r *Router) scoped(h http.Handler, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		r.authn(),
		FacilityScope(r.ScopeService, r.AuditService),
		httpx.RateLimitByIP(limit),
	)
}

func (r *Router) registerLogins() {
	loginHandler := &LoginHandler{
		LoginService: r.LoginService,
		Codec:        r.codec,
		TokenTTL:     r.tokenTTL,
		Secure:       r.secureCookie,
	}

	// Password logins - strict rate limit by IP + email to slow brute force
	// without letting one attacker lock out a whole NAT.
	r.Mux.Handle("POST /v1/owners/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleOwnerLogin),
			httpx.RateLimitByIPAndField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/admins/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleAdminLogin),
			httpx.RateLimitByIPAndField(httpx.StrictLimit, "email"),
		),
	)

	// Staff PIN login - strict rate limit by IP (the PIN space is small)
	staffHandler := r.staffHandler()
	r.Mux.Handle("POST /v1/staff/pin-login",
		httpx.Chain(http.HandlerFunc(staffHandler.HandlePINLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logout := httpx.Chain(http.HandlerFunc(loginHandler.HandleLogout),
		r.authn(),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)
	r.Mux.Handle("POST /v1/owners/logout", logout)
	r.Mux.Handle("POST /v1/admins/logout", logout)
	r.Mux.Handle("POST /v1/staff/logout", logout)
}

func (r *Router) registerAccount() {
	loginHandler := &LoginHandler{
		LoginService: r.LoginService,
		Codec:        r.codec,
		TokenTTL:     r.tokenTTL,
		Secure:       r.secureCookie,
	}

	r.Mux.Handle("POST /v1/password",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleChangePassword),
			r.authn(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Impersonation - admin only
	r.Mux.Handle("POST /v1/admins/impersonate",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleStartImpersonation),
			r.authn(),
			RequireAdmin,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/admins/impersonate",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleStopImpersonation),
			r.authn(),
			RequireAdmin,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{
		MFAService:   r.MFAService,
		LoginService: r.LoginService,
		AuditService: r.AuditService,
	}

	r.Mux.Handle("POST /v1/mfa/totp/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			r.authn(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/totp/enable",
		httpx.Chain(http.HandlerFunc(h.HandleEnable),
			r.authn(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Verify - strict rate limit to slow brute force of six-digit codes
	r.Mux.Handle("POST /v1/mfa/totp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			r.authn(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			r.authn(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) staffHandler() *StaffHandler {
	return &StaffHandler{
		PINService:     r.PINService,
		SessionService: r.SessionService,
		AuditService:   r.AuditService,
		Codec:          r.codec,
		TokenTTL:       r.tokenTTL,
		Secure:         r.secureCookie,
	}
}

func (r *Router) registerStaff() {
	h := r.staffHandler()

	r.Mux.Handle("POST /v1/facilities/{facility}/staff",
		r.scoped(http.HandlerFunc(h.HandleCreateStaff), httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/facilities/{facility}/staff",
		r.scoped(http.HandlerFunc(h.HandleListStaff), httpx.LenientLimit))
	r.Mux.Handle("POST /v1/facilities/{facility}/staff/{id}/pin",
		r.scoped(http.HandlerFunc(h.HandleResetPIN), httpx.ModerateLimit))
	r.Mux.Handle("PUT /v1/facilities/{facility}/staff/{id}/active",
		r.scoped(http.HandlerFunc(h.HandleSetStaffActive), httpx.ModerateLimit))
}

func (r *Router) registerDevices() {
	h := &DeviceHandler{DeviceService: r.DeviceService}

	r.Mux.Handle("POST /v1/facilities/{facility}/devices",
		r.scoped(http.HandlerFunc(h.HandleAuthorize), httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/facilities/{facility}/devices",
		r.scoped(http.HandlerFunc(h.HandleList), httpx.LenientLimit))
	r.Mux.Handle("DELETE /v1/facilities/{facility}/devices/{id}",
		r.scoped(http.HandlerFunc(h.HandleRevoke), httpx.ModerateLimit))
}

func (r *Router) registerPolicy() {
	h := &PolicyHandler{
		PolicyService: r.PolicyService,
		AuditService:  r.AuditService,
	}

	r.Mux.Handle("GET /v1/facilities/{facility}/policy",
		r.scoped(http.HandlerFunc(h.HandleGet), httpx.LenientLimit))
	r.Mux.Handle("PUT /v1/facilities/{facility}/policy",
		r.scoped(http.HandlerFunc(h.HandleUpdate), httpx.ModerateLimit))
}

func (r *Router) registerAudit() {
	h := &AuditHandler{AuditService: r.AuditService}

	// Audit queries are admin only
	r.Mux.Handle("GET /v1/audit",
		httpx.Chain(http.HandlerFunc(h.HandleQuery),
			r.authn(),
			RequireAdmin,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/audit/security-events",
		httpx.Chain(http.HandlerFunc(h.HandleSecurityEvents),
			r.authn(),
			RequireAdmin,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may
	// poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metricsx.Handler())
}
