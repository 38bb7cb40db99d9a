package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/artifacts"
	"github.com/hugh/testforge/internal/auth"
	"github.com/hugh/testforge/internal/database"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/tasks"
	"github.com/hugh/testforge/pkg/config"
	"github.com/hugh/testforge/pkg/crypto"
	"github.com/hugh/testforge/pkg/queue"
	"github.com/hugh/testforge/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting testforge worker", "concurrency", cfg.Worker.Concurrency)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// The worker must share the server's key or it cannot open stored secrets.
	if cfg.Encryption.Key == "" {
		logger.Error("ENCRYPTION_KEY is required for the worker")
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	configs := store.NewConfigService(db)
	apiKeys := store.NewAPIKeyService(db, encryptor)
	agentSettings := store.NewAgentSettingService(db, encryptor, apiKeys)
	jiraXray := store.NewJiraXraySettingService(db, encryptor)

	bridge := llm.NewBridge(cfg.LLM, logger)
	resolver := agents.NewResolver(agentSettings, apiKeys, configs)

	artifactStore, err := artifacts.New(context.Background(), cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}

	gen := generation.NewService(jiraXray, resolver, bridge, artifactStore,
		cfg.Xray.BaseURL, cfg.LLM.Timeout(), generation.WithLogger(logger))

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, auth.WithLogger(logger))

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	mux := asynq.NewServeMux()
	tasks.NewHandler(gen, authService, logger).RegisterHandlers(mux)

	scheduler := queue.NewScheduler(&cfg.Redis)
	if err := tasks.RegisterSchedules(scheduler, cfg.Worker.SessionCleanupCron); err != nil {
		logger.Error("failed to register schedules", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		cancel()
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
