package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/simdesk/internal/app"
	"github.com/odyssey-erp/simdesk/internal/auth"
	"github.com/odyssey-erp/simdesk/internal/observability"
	"github.com/odyssey-erp/simdesk/internal/platform/cache"
	"github.com/odyssey-erp/simdesk/internal/platform/db"
	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
	"github.com/odyssey-erp/simdesk/internal/sims"
	"github.com/odyssey-erp/simdesk/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	conn, err := db.Open(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		logger.Error("store handle", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("store ready", slog.String("dialect", db.DialectName(conn)))

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(conn))
	created, err := authService.EnsureDefaultAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		logger.Error("seed admin", slog.Any("error", err))
		os.Exit(1)
	}
	if created {
		logger.Warn("default admin account created, change its password", slog.String("username", cfg.AdminUsername))
	}
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, metrics)
	authHandler.SetLoginLimit(cfg.LoginLimitPerMinute)

	rbacMiddleware := rbac.Middleware{Logger: logger, LoginPath: "/login", DeniedPath: "/dashboard"}
	simsService := sims.NewService(sims.NewRepository(conn), sims.WithLogger(logger), sims.WithRecorder(metrics))
	simsHandler := sims.NewHandler(logger, simsService, templates, csrfManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		SimsHandler:    simsHandler,
		Metrics:        metrics,
		Checks: map[string]app.HealthChecker{
			"store": func(r *http.Request) error { return sqlDB.PingContext(r.Context()) },
			"redis": func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
