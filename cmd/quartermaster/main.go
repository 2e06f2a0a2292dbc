package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quartermaster-erp/quartermaster/internal/app"
	"github.com/quartermaster-erp/quartermaster/internal/audit"
	"github.com/quartermaster-erp/quartermaster/internal/auth"
	"github.com/quartermaster-erp/quartermaster/internal/observability"
	"github.com/quartermaster-erp/quartermaster/internal/platform/cache"
	"github.com/quartermaster-erp/quartermaster/internal/platform/db"
	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/rbac"
	"github.com/quartermaster-erp/quartermaster/internal/roles"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
	"github.com/quartermaster-erp/quartermaster/internal/token"
	"github.com/quartermaster-erp/quartermaster/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	codec := token.NewCodec(cfg.TokenSecret, cfg.TokenTTL)
	metrics := observability.NewMetrics()

	principalRepo := principal.NewRepository(pool, cfg.StoreTimeout)
	roleRepo := roles.NewRepository(pool, cfg.StoreTimeout)
	sessionRepo := auth.NewSessionRepository(pool, cfg.StoreTimeout)
	auditRepo := audit.NewRepository(pool, cfg.StoreTimeout)

	resolver := roles.NewResolver(roleRepo, principalRepo, logger)
	resolver.SetMigrationHook(metrics.ObserveRoleMigration)
	roleService := roles.NewService(roleRepo)

	engine := rbac.Detect(ctx, pool, cfg.StoreTimeout, logger)

	orchestrator := auth.NewOrchestrator([]auth.Strategy{
		auth.NewTokenStrategy(codec, principalRepo),
		auth.NewSessionStrategy(principalRepo),
	}, resolver, engine, logger)
	orchestrator.SetMetrics(metrics)

	recorder := audit.NewRecorder(auditRepo, logger)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	authService := auth.NewService(principalRepo, sessionRepo, codec)
	authHandler := auth.NewHandler(logger, authService, orchestrator, sessionManager)
	rolesHandler := roles.NewHandler(logger, roleService, resolver, recorder)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		Orchestrator:   orchestrator,
		AuthHandler:    authHandler,
		RolesHandler:   rolesHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
