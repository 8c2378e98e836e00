package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/journeyman/marketplace-api/internal/handler"
	"github.com/journeyman/marketplace-api/internal/repository"
	"github.com/journeyman/marketplace-api/internal/service"
	"github.com/journeyman/marketplace-api/pkg/cache"
	"github.com/journeyman/marketplace-api/pkg/config"
	"github.com/journeyman/marketplace-api/pkg/database"
	"github.com/journeyman/marketplace-api/pkg/jobs"
	"github.com/journeyman/marketplace-api/pkg/logger"
	"github.com/journeyman/marketplace-api/pkg/storage"
)

// @title Journeyman Marketplace API
// @version 1.0.0
// @description Micro-task marketplace backend: tasks, submissions, coin ledger, withdrawals
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if err := database.Migrate(cfg.Database); err != nil {
		sugar.Fatalw("failed to run migrations", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	statementRepo := repository.NewStatementRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	ledgerService := service.NewLedgerService(ledgerRepo, validate, logr)
	userService := service.NewUserService(userRepo, ledgerService, validate, logr)
	taskService := service.NewTaskService(taskRepo, cacheRepo, metricsService, cfg.Tasks.CacheTTL, validate, logr)
	submissionService := service.NewSubmissionService(submissionRepo, taskRepo, ledgerService, cacheRepo, metricsService, validate, logr)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, validate, logr)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthServiceConfig{
		Secret:     cfg.Auth.JWTSecret,
		Expiration: cfg.Auth.Expiration,
		Issuer:     cfg.Auth.Issuer,
	})

	deps := handler.RouterDeps{
		Auth:           handler.NewAuthHandler(authService),
		Users:          handler.NewUserHandler(userService),
		Tasks:          handler.NewTaskHandler(taskService),
		Submissions:    handler.NewSubmissionHandler(submissionService),
		Withdrawals:    handler.NewWithdrawalHandler(withdrawalService),
		Payments:       handler.NewPaymentHandler(ledgerService),
		Metrics:        handler.NewMetricsHandler(metricsService, db, redisClient),
		AuthService:    authService,
		MetricsService: metricsService,
	}

	var statementQueue *jobs.Queue
	if cfg.Statements.Enabled {
		store, err := storage.NewLocalStorage(cfg.Statements.StorageDir)
		if err != nil {
			sugar.Fatalw("failed to init statement storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Statements.SignedURLSecret, cfg.Statements.SignedURLTTL)

		var statementService *service.StatementService
		statementQueue = jobs.NewQueue("statements", func(ctx context.Context, job jobs.Job) error {
			return statementService.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Statements.WorkerConcurrency,
			MaxRetries: cfg.Statements.WorkerRetries,
			Logger:     logr,
		})
		statementService = service.NewStatementService(statementRepo, ledgerRepo, statementQueue, store, signer, validate, logr)

		statementQueue.Start(ctx)
		if err := statementService.RecoverPendingJobs(ctx); err != nil {
			sugar.Errorw("failed to recover queued statements", "error", err)
		}
		statementService.StartCleanup(ctx, cfg.Statements.CleanupInterval, cfg.Statements.SignedURLTTL)

		deps.Statements = handler.NewStatementHandler(statementService)
	}

	router := handler.NewRouter(cfg, logr, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server shutdown failed", "error", err)
	}
	if statementQueue != nil {
		statementQueue.Stop()
	}
	sugar.Infow("server stopped")
}
