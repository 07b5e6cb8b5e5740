package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okapicare/tenantguard/internal/security/domain"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/internal/security/store/drivers/sqlite"
	"github.com/okapicare/tenantguard/pkg/cryptox"
	"github.com/okapicare/tenantguard/pkg/idx"
	"github.com/okapicare/tenantguard/pkg/sessiontoken"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "tenantguard-http-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

type testEnv struct {
	store  store.Store
	router *Router
}

// newTestEnv wires the full router against an in-memory store, mirroring the
// application's production wiring.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := sessiontoken.NewCodec([]byte("http-test-secret"), "tenantguard-test")

	policies := &service.PolicyService{Store: st}
	audit := &service.AuditService{Store: st}
	sessions := &service.SessionService{Store: st, Policies: policies}
	mfa := &service.MFAService{Store: st, Issuer: "tenantguard-test"}

	r := NewRouter(codec, time.Hour, false, "test", st, logger)
	r.LoginService = &service.LoginService{
		Store:    st,
		Lockout:  &service.LockoutService{Store: st},
		Sessions: sessions,
		MFA:      mfa,
		Policies: policies,
		Audit:    audit,
	}
	r.SessionService = sessions
	r.ScopeService = &service.ScopeService{Store: st}
	r.PINService = &service.PINService{Store: st, Policies: policies, Audit: audit}
	r.MFAService = mfa
	r.DeviceService = &service.DeviceService{Store: st, Audit: audit}
	r.PolicyService = policies
	r.AuditService = audit
	r.ApplyRoutes()

	return &testEnv{store: st, router: r}
}

// do issues a request against the router. A non-empty token is sent as a
// bearer header; a non-nil body is marshalled to JSON.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) tenantguard-test")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// errorCode pulls the machine-readable error code out of a failure response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rec, &body)
	return body.Error
}

func (e *testEnv) seedAccount(t *testing.T, kind domain.AccountKind, email, password string) domain.Account {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	a := domain.Account{
		ID:           idx.New().String(),
		Kind:         kind,
		Email:        email,
		Name:         "Test Account",
		PasswordHash: hash,
		Status:       domain.StatusActive,
	}
	require.NoError(t, e.store.Accounts().CreateAccount(context.Background(), a))
	return a
}

func (e *testEnv) seedFacility(t *testing.T, ownerID *string, status domain.ClaimStatus) domain.Facility {
	t.Helper()

	f := domain.Facility{
		ID:          idx.New().String(),
		Name:        "Willow Gardens",
		OwnerID:     ownerID,
		ClaimStatus: status,
	}
	require.NoError(t, e.store.Facilities().CreateFacility(context.Background(), f))
	return f
}

// login runs a password login and returns the bearer token.
func (e *testEnv) login(t *testing.T, path, email, password, mfaCode string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, path, "", map[string]string{
		"email":    email,
		"password": password,
		"mfa_code": mfaCode,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	decodeJSON(t, rec, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func strptr(s string) *string { return &s }
