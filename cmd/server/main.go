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
	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/api"
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
	"github.com/redis/go-redis/v9"
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

	logger.Info("starting testforge server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"database", cfg.Database.Driver,
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis is optional. Without it sessions are checked against the
	// database only and test case generation always runs inline.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("failed to connect to Redis", "error", err)
			redisClient.Close()
			redisClient = nil
		}
	}

	var (
		asynqClient    *asynq.Client
		asynqInspector *asynq.Inspector
		jobs           *tasks.Jobs
		authOpts       = []auth.Option{auth.WithLogger(logger)}
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		asynqInspector = queue.NewInspector(&cfg.Redis)
		jobs = tasks.NewJobs(asynqClient, asynqInspector)
		authOpts = append(authOpts, auth.WithRevocationCache(auth.NewRedisRevocationCache(redisClient)))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, authOpts...)

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - stored secrets will be unreadable after restart")
	}

	configs := store.NewConfigService(db)
	apiKeys := store.NewAPIKeyService(db, encryptor)
	agentSettings := store.NewAgentSettingService(db, encryptor, apiKeys)
	jiraXray := store.NewJiraXraySettingService(db, encryptor)

	bridge := llm.NewBridge(cfg.LLM, logger)
	resolver := agents.NewResolver(agentSettings, apiKeys, configs)
	registry := agents.NewRegistry(bridge,
		agents.WithRecorder(agents.NewConfigRecorder(configs)),
		agents.WithLogger(logger),
	)

	artifactStore, err := artifacts.New(context.Background(), cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}

	gen := generation.NewService(jiraXray, resolver, bridge, artifactStore,
		cfg.Xray.BaseURL, cfg.LLM.Timeout(), generation.WithLogger(logger))

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		AuthService:    authService,
		Configs:        configs,
		APIKeys:        apiKeys,
		AgentSettings:  agentSettings,
		JiraXray:       jiraXray,
		Registry:       registry,
		Resolver:       resolver,
		Completer:      bridge,
		Generation:     gen,
		Jobs:           jobs,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		LLMRateLimit:   cfg.RateLimit.LLMRequests,
	})

	// Model calls can run for the whole LLM timeout, so the write deadline
	// leaves room for them.
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLM.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if asynqInspector != nil {
		asynqInspector.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
