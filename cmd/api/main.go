package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	internalauth "github.com/aegisauth/aegis/internal/auth"
	"github.com/aegisauth/aegis/internal/background"
	"github.com/aegisauth/aegis/internal/config"
	"github.com/aegisauth/aegis/internal/database"
	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/repositories"
	"github.com/aegisauth/aegis/internal/routes"
	"github.com/aegisauth/aegis/internal/services"
	pkgauth "github.com/aegisauth/aegis/pkg/auth"
	pkghttp "github.com/aegisauth/aegis/pkg/http"
	pkglogger "github.com/aegisauth/aegis/pkg/logger"
)

func main() {
	// Load .env file if present (development convenience)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting aegis",
		slog.String("env", cfg.Server.Env),
		slog.String("port", cfg.Server.Port),
	)

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	configRepo := repositories.NewSecurityConfigRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	blockedIPRepo := repositories.NewBlockedIPRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	alertRepo := repositories.NewSecurityAlertRepository(db)

	// Operator notifications go through SES when configured, otherwise
	// everything still lands in the event log and structured logs.
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Alerting.FromAddress != "" && cfg.Alerting.OperatorAddress != "" {
		sesNotifier, err := services.NewSESNotifier(
			cfg.Alerting.AWSRegion,
			cfg.Alerting.FromAddress,
			cfg.Alerting.OperatorAddress,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
		logger.Info("SES notifier enabled", slog.String("operator", cfg.Alerting.OperatorAddress))
	}

	tokenManager := internalauth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	securityLogger := pkglogger.NewSecurityLogger(logger)

	// Services
	configService := services.NewConfigService(configRepo, logger)
	eventService := services.NewEventService(eventRepo, notifier, securityLogger, logger)
	blocklistService := services.NewBlocklistService(blockedIPRepo, configService, eventService, logger)
	alertService := services.NewAlertService(alertRepo, attemptRepo, eventService, configService, notifier, logger)
	attemptService := services.NewAttemptService(attemptRepo, configService, blocklistService, alertService, eventService, logger)
	sessionService := services.NewSessionService(sessionRepo, configService, eventService, logger)
	authService := services.NewAuthService(accountRepo, attemptService, sessionService, configService, tokenManager, logger)

	ctx := context.Background()

	if err := configService.Bootstrap(ctx); err != nil {
		logger.Error("failed to bootstrap security config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := ensureAdminAccount(ctx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
		os.Exit(1)
	}

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, sessionService, ipConfig)
	adminHandler := handlers.NewAdminHandler(configService, eventService, blocklistService, alertService, sessionService, ipConfig)

	cleanupManager := background.NewCleanupManager(
		blocklistService,
		sessionService,
		attemptService,
		eventService,
		cfg.Auth.AttemptRetention,
		cfg.Auth.EventRetention,
		cfg.Auth.SweepInterval,
		logger,
	)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.SecureLogger(logger, ipConfig))
	router.Use(middleware.Blocklist(blocklistService, ipConfig))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(middleware.RateLimitByIP(middleware.DefaultAPIRateLimit()))

	router.Route("/api/v1", func(r chi.Router) {
		routes.RegisterRoutes(r, authHandler, adminHandler, tokenManager)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(healthCtx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unhealthy","database":"down"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"healthy","database":"up"}`)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	cleanupManager.Stop()
	cancelCleanup()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// ensureAdminAccount creates the bootstrap admin from ADMIN_EMAIL and
// ADMIN_PASSWORD if it does not already exist. Without it a fresh
// deployment has no way to reach the admin surface.
func ensureAdminAccount(ctx context.Context, repo *repositories.AccountRepository, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")

	if email == "" || password == "" {
		logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	account := &models.Account{
		Email:         email,
		PasswordHash:  hash,
		Role:          "admin",
		Status:        models.AccountStatusActive,
		EmailVerified: true,
	}

	if _, err := repo.Create(ctx, account); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
