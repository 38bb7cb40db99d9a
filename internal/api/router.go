package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/api/handlers"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/auth"
	"github.com/hugh/testforge/internal/generation"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/tasks"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Logger *slog.Logger

	AuthService   *auth.Service
	Configs       *store.ConfigService
	APIKeys       *store.APIKeyService
	AgentSettings *store.AgentSettingService
	JiraXray      *store.JiraXraySettingService
	Registry      *agents.Registry
	Resolver      *agents.Resolver
	Completer     llm.Completer
	Generation    *generation.Service
	Jobs          *tasks.Jobs // nil when no queue is configured

	AllowedOrigins []string // CORS allowed origins
	TrustProxy     bool     // Take the client IP from X-Forwarded-For / X-Real-IP
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	LLMRateLimit   int      // Per-user LLM calls per window, 0 disables
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token", middleware.CSRFHeaderName},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	adminHandler := handlers.NewAdminHandler(cfg.AuthService)
	configHandler := handlers.NewConfigHandler(cfg.Configs)
	keyHandler := handlers.NewAPIKeyHandler(cfg.APIKeys)
	agentSettingHandler := handlers.NewAgentSettingHandler(cfg.AgentSettings)
	jiraHandler := handlers.NewJiraXrayHandler(cfg.JiraXray)
	agentHandler := handlers.NewAgentHandler(cfg.Registry, cfg.Resolver, cfg.Completer)
	testCaseHandler := handlers.NewTestCaseHandler(cfg.Generation, cfg.Jobs)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(middleware.TokenSourceOnly, middleware.CSRF).Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.AuthService))
			r.Use(middleware.CSRF)
			r.Get("/me", authHandler.Me)
			r.Put("/me", authHandler.UpdateMe)
			r.Put("/password", authHandler.ChangePassword)
		})
	})

	// LLM calls are throttled per user on top of the global limit.
	llmLimit := func(r chi.Router) {
		if cfg.LLMRateLimit > 0 {
			r.Use(middleware.RateLimitByUser(cfg.LLMRateLimit, cfg.RateLimitSecs))
		}
	}

	// Legacy top-level Gherkin endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthService))
		r.Use(middleware.CSRF)
		llmLimit(r)
		r.Post("/generate-gherkin", agentHandler.GenerateGherkin)
		r.Post("/agent-gherkin-generator/generate", agentHandler.GenerateFeatureGherkin)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthService))
		r.Use(middleware.CSRF)

		r.Route("/configs", func(r chi.Router) {
			r.Get("/", configHandler.List)
			r.Post("/", configHandler.Create)
			r.Get("/{id}", configHandler.Get)
			r.Put("/{id}", configHandler.Update)
			r.Delete("/{id}", configHandler.Delete)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/model", configHandler.GetModelSettings)
			r.Post("/model", configHandler.SaveModelSettings)
			r.Get("/history", configHandler.History)
		})

		r.Route("/api-keys", func(r chi.Router) {
			r.Get("/", keyHandler.List)
			r.Post("/", keyHandler.Create)
			r.Get("/{id}", keyHandler.Get)
			r.Put("/{id}", keyHandler.Update)
			r.Delete("/{id}", keyHandler.Delete)
		})

		r.Route("/agent-settings", func(r chi.Router) {
			r.Get("/", agentSettingHandler.List)
			r.Post("/", agentSettingHandler.Create)
			r.Get("/{id}", agentSettingHandler.Get)
			r.Put("/{id}", agentSettingHandler.Update)
			r.Delete("/{id}", agentSettingHandler.Delete)
		})

		r.Route("/jira-xray-settings", func(r chi.Router) {
			r.Get("/", jiraHandler.List)
			r.Post("/", jiraHandler.Create)
			r.Get("/{id}", jiraHandler.Get)
			r.Put("/{id}", jiraHandler.Update)
			r.Delete("/{id}", jiraHandler.Delete)
		})

		// Execution registry
		r.Get("/agent-status/{id}", agentHandler.Status)
		r.Post("/agent-stop/{id}", agentHandler.Stop)
		r.Get("/agent-history", agentHandler.History)

		r.Group(func(r chi.Router) {
			llmLimit(r)
			r.Post("/run-agent", agentHandler.Run)
			r.Post("/generate-gherkin", agentHandler.GenerateGherkin)
			r.Post("/generate-test-cases", testCaseHandler.Generate)
		})

		r.Get("/test-cases/latest", testCaseHandler.Latest)
		r.Put("/test-cases/latest", testCaseHandler.SaveLatest)
		r.Get("/test-cases/jobs/{id}", testCaseHandler.Job)
		r.Post("/import-xray", testCaseHandler.ImportXray)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{id}/active", adminHandler.SetActive)
		})
	})

	return &Router{r}
}
