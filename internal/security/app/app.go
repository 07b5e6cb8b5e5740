package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/okapicare/tenantguard/internal/security/http"
	"github.com/okapicare/tenantguard/internal/security/service"
	"github.com/okapicare/tenantguard/internal/security/store"
	"github.com/okapicare/tenantguard/internal/security/store/drivers/sqlite"
	"github.com/okapicare/tenantguard/pkg/cryptox"
	"github.com/okapicare/tenantguard/pkg/metricsx"
	"github.com/okapicare/tenantguard/pkg/sessiontoken"
	"github.com/okapicare/tenantguard/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the security service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	codec *sessiontoken.Codec

	// Services
	policyService       *service.PolicyService
	lockoutService      *service.LockoutService
	sessionService      *service.SessionService
	scopeService        *service.ScopeService
	auditService        *service.AuditService
	mfaService          *service.MFAService
	loginService        *service.LoginService
	pinService          *service.PINService
	deviceService       *service.DeviceService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tenantguard",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set key material paths before anything hashes or encrypts
	cryptox.SetPepperPath(app.cfg.PepperFile)
	if app.cfg.MasterKeyFile != "" {
		cryptox.SetMasterKeyPath(app.cfg.MasterKeyFile)
	}

	secret := []byte(app.cfg.SessionSecret)
	if len(secret) == 0 {
		if app.cfg.Env != "dev" {
			return nil, errors.New("TG_SESSION_SECRET is required outside dev")
		}
		// Dev convenience: a random secret, so restarts invalidate tokens
		secret = []byte(cryptox.MustGenerateToken(32))
		app.logger.Warn("TG_SESSION_SECRET not set, generated an ephemeral one")
	}
	app.codec = sessiontoken.NewCodec(secret, app.cfg.Issuer)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	metricsx.Init()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("tenantguard starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tenantguard...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("tenantguard stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.policyService = &service.PolicyService{Store: app.db}
	app.lockoutService = &service.LockoutService{Store: app.db}
	app.scopeService = &service.ScopeService{Store: app.db}
	app.auditService = &service.AuditService{Store: app.db}

	app.sessionService = &service.SessionService{
		Store:    app.db,
		Policies: app.policyService,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.loginService = &service.LoginService{
		Store:    app.db,
		Lockout:  app.lockoutService,
		Sessions: app.sessionService,
		MFA:      app.mfaService,
		Policies: app.policyService,
		Audit:    app.auditService,
	}
	app.pinService = &service.PINService{
		Store:    app.db,
		Policies: app.policyService,
		Audit:    app.auditService,
	}
	app.deviceService = &service.DeviceService{
		Store: app.db,
		Audit: app.auditService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.codec,
		app.cfg.TokenTTL,
		app.cfg.SecureCookies,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.LoginService = app.loginService
	router.SessionService = app.sessionService
	router.ScopeService = app.scopeService
	router.PINService = app.pinService
	router.MFAService = app.mfaService
	router.DeviceService = app.deviceService
	router.PolicyService = app.policyService
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
