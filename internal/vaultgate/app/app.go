package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/vaultgate/internal/vaultgate/http"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/notify"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/settings"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	notifyWorkers = 2
)

// Application encapsulates the vaultgate service with all its dependencies
type Application struct {
	cfg     Config
	log     *slogx.Logger
	logger  *slog.Logger
	keys    *secretKeys
	cookie  *httpx.SessionCookie
	started time.Time

	// Core dependencies
	db       store.Store
	settings *settings.Provider
	watcher  *settings.Watcher
	notifier *notify.Dispatcher

	// Services
	sessionAuthority    *service.SessionAuthority
	twoFactorEngine     *service.TwoFactorEngine
	withdrawalGate      *service.WithdrawalGate
	inboxService        *service.InboxService
	adminService        *service.AdminService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	log, err := slogx.New(slogx.Config{
		Service: "vaultgate",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &Application{cfg: cfg, log: log, logger: log.Logger, started: time.Now()}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if app.keys, err = initKeys(cfg, app.logger); err != nil {
		return nil, fmt.Errorf("failed to initialize keys: %w", err)
	}
	if app.cookie, err = initCookie(cfg, app.logger); err != nil {
		return nil, fmt.Errorf("failed to initialize session cookie: %w", err)
	}

	if err := app.initSettings(); err != nil {
		return nil, err
	}
	if err := app.initNotifier(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.notifier.Start(notifyWorkers)
	app.housekeepingService.Start()

	app.logger.Info("vaultgate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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
	app.logger.Info("shutting down vaultgate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Warn("error closing settings watcher", "error", err)
		}
	}

	// Drain queued notifications before the database goes away
	app.notifier.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("vaultgate stopped")
	return app.log.Close()
}

// initDatabase opens the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initSettings seeds runtime settings from the TOML file, if any, and keeps
// watching it.
func (app *Application) initSettings() error {
	app.settings = &settings.Provider{Store: app.db, Logger: app.logger}
	if app.cfg.SettingsFile == "" {
		return nil
	}

	if _, err := app.settings.LoadFile(context.Background(), app.cfg.SettingsFile); err != nil {
		return fmt.Errorf("failed to load settings file: %w", err)
	}
	w, err := app.settings.Watch(app.cfg.SettingsFile, 0)
	if err != nil {
		return fmt.Errorf("failed to watch settings file: %w", err)
	}
	app.watcher = w
	return nil
}

// initNotifier wires the inbox channel and, when SMTP is configured, mail.
func (app *Application) initNotifier() error {
	channels := []notify.Channel{&notify.DatabaseChannel{Store: app.db}}

	mail, err := notify.NewMailChannel(notify.MailConfig{
		Host:       app.cfg.SMTPHost,
		User:       app.cfg.SMTPUser,
		Password:   app.cfg.SMTPPassword,
		From:       app.cfg.SMTPFrom,
		CertPath:   app.cfg.SMTPCert,
		SkipVerify: app.cfg.SMTPSkipVerify,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mail: %w", err)
	}
	if mail != nil {
		channels = append(channels, mail)
	} else {
		app.logger.Warn("SMTP not configured, emailed codes will not be delivered")
	}

	app.notifier = notify.NewDispatcher(app.logger, notify.DefaultQueueSize, channels...)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	creds := &service.CredentialStore{
		Store:  app.db,
		Hasher: cryptox.NewHasher(app.keys.pepper),
	}

	otp, err := service.NewOTPEngine(app.db, app.keys.keyring, nil)
	if err != nil {
		return err
	}

	lockout := &service.LockoutPolicy{
		Store:     app.db,
		Threshold: service.DefaultLockoutThreshold,
		Duration:  app.cfg.LockoutDuration,
	}

	app.twoFactorEngine = &service.TwoFactorEngine{
		Store:       app.db,
		Keyring:     app.keys.keyring,
		Credentials: creds,
		Settings:    app.settings,
		Notifier:    app.notifier,
	}
	app.sessionAuthority = &service.SessionAuthority{
		Store:       app.db,
		Credentials: creds,
		OTP:         otp,
		TwoFactor:   app.twoFactorEngine,
		Settings:    app.settings,
		Notifier:    app.notifier,
		Lifetime:    app.cfg.SessionLifetime,
	}
	app.withdrawalGate = &service.WithdrawalGate{
		Store:       app.db,
		Credentials: creds,
		OTP:         otp,
		Lockout:     lockout,
		Notifier:    app.notifier,
		Signer:      app.keys.signer,
		Issuer:      app.cfg.Issuer,
		GrantTTL:    app.cfg.GrantTTL,
	}
	app.inboxService = &service.InboxService{Store: app.db}
	app.adminService = &service.AdminService{
		Store:       app.db,
		Credentials: creds,
		TwoFactor:   app.twoFactorEngine,
		Lockout:     lockout,
		Notifier:    app.notifier,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	if app.cfg.AdminToken == "" {
		app.logger.Warn("VAULTGATE_ADMIN_TOKEN not set, admin routes are disabled")
	}
	httpx.TrustProxyHeaders = app.cfg.TrustProxyHeaders

	router := httpapi.NewRouter(
		app.keys.keySet,
		BuildVersion,
		app.db,
		app.cookie,
		app.cfg.AdminToken,
		app.logger,
	)

	router.SessionAuthority = app.sessionAuthority
	router.TwoFactorEngine = app.twoFactorEngine
	router.WithdrawalGate = app.withdrawalGate
	router.InboxService = app.inboxService
	router.AdminService = app.adminService
	router.Settings = app.settings
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
