package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/veldtec/authgate/internal/api"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/auth"
	"github.com/veldtec/authgate/internal/config"
	"github.com/veldtec/authgate/internal/models"
	"github.com/veldtec/authgate/internal/oauth"
	"github.com/veldtec/authgate/internal/storage"
	"github.com/veldtec/authgate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", "text").Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info("application_startup", "env", cfg.Environment)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Environment,
		})
		if err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		log.Error("migration_failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations_applied")

	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	store := storage.NewStore(pool)
	hasher := auth.NewArgon2idHasher()

	ctx := context.Background()
	if err := store.Seed(ctx, cfg.SystemEmail, cfg.SystemPassword, hasher, auth.NewUserToken, log); err != nil {
		log.Error("seed_failed", "error", err)
		os.Exit(1)
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		log.Error("settings_load_failed", "error", err)
		os.Exit(1)
	}
	if settings == nil {
		defaults := models.DefaultSettings()
		settings = &defaults
	}
	settingsCache := storage.NewSettingsCache(*settings)

	auditLogger := audit.NewDBLogger(store, log)
	mfaService := auth.NewMFAService(cfg.TOTPIssuer)
	authService := auth.NewService(store, store, store, store, hasher, mfaService, auditLogger, log)

	passkeyService, err := auth.NewPasskeyService(auth.WebAuthnConfig{
		RPID:     cfg.WebAuthnRPID,
		RPOrigin: cfg.WebAuthnRPOrigin,
		RPName:   cfg.WebAuthnRPName,
	}, store, store, store, auditLogger, log)
	if err != nil {
		log.Error("webauthn_init_failed", "error", err)
		os.Exit(1)
	}

	oauthEngine := oauth.NewEngine(store, store, store, auditLogger, log)
	resolver := auth.NewPrincipalResolver(store)

	server := api.NewServer(api.Deps{
		Store:    store,
		Settings: settingsCache,
		Auth:     authService,
		Passkeys: passkeyService,
		OAuth:    oauthEngine,
		Resolver: resolver,
		Hasher:   hasher,
		Audit:    auditLogger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info("server_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("server_shutdown_complete")
	}
}
