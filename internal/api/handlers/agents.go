package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/testforge/internal/agents"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/llm"
)

const maxHistoryLimit = 100

type AgentHandler struct {
	registry  *agents.Registry
	resolver  *agents.Resolver
	completer llm.Completer
}

func NewAgentHandler(registry *agents.Registry, resolver *agents.Resolver, completer llm.Completer) *AgentHandler {
	return &AgentHandler{registry: registry, resolver: resolver, completer: completer}
}

// Run handles POST /api/run-agent. The call blocks until the model answers
// or the execution is stopped.
func (h *AgentHandler) Run(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.RunAgentRequest
	if !decode(w, r, &req) {
		return
	}

	cfg, err := h.resolver.Resolve(r.Context(), userID, req.ConfigRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfg.System = strings.TrimSpace(req.System)

	exec, err := h.registry.Start(r.Context(), agents.StartInput{
		UserID: userID,
		Kind:   req.AgentKind(),
		Task:   req.Task,
		Config: cfg,
	})
	if err != nil && !errors.Is(err, agents.ErrNotRunning) {
		writeError(w, r, err)
		return
	}
	// A stopped run is reported as a normal result with status "stopped".
	writeJSON(w, http.StatusOK, exec)
}

// Status handles GET /api/agent-status/{id}
func (h *AgentHandler) Status(w http.ResponseWriter, r *http.Request) {
	exec, err := h.registry.Status(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// Stop handles POST /api/agent-stop/{id}
func (h *AgentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	exec, err := h.registry.Stop(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// History handles GET /api/agent-history?limit=
func (h *AgentHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := agents.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"limit": "Limit must be a positive integer"},
			})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	history := h.registry.History(middleware.GetUserID(r.Context()), limit)
	writeJSON(w, http.StatusOK, dto.NewList(history))
}

// GenerateGherkin handles POST /generate-gherkin and /api/generate-gherkin.
// The run is tracked in the registry like any other execution.
func (h *AgentHandler) GenerateGherkin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.GherkinRequest
	if !decode(w, r, &req) {
		return
	}

	cfg, err := h.resolver.Resolve(r.Context(), userID, req.Agent())
	if err != nil {
		writeError(w, r, err)
		return
	}

	exec, err := h.registry.Start(r.Context(), agents.StartInput{
		UserID: userID,
		Kind:   agents.KindGherkin,
		Task:   req.Scenario,
		Config: cfg,
	})
	if err != nil && !errors.Is(err, agents.ErrNotRunning) {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.GherkinResponse{
		Gherkin:     llm.StripCodeFences(exec.Result),
		ExecutionID: exec.ID,
		Provider:    exec.Provider,
		Model:       exec.Model,
		Status:      string(exec.Status),
	})
}

// GenerateFeatureGherkin handles POST /agent-gherkin-generator/generate
func (h *AgentHandler) GenerateFeatureGherkin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.FeatureGherkinRequest
	if !decode(w, r, &req) {
		return
	}

	cfg, err := h.resolver.Resolve(r.Context(), userID, req.Agent())
	if err != nil {
		writeError(w, r, err)
		return
	}

	prompt, err := llm.GherkinForFeature(req.FeatureName, req.ScenarioDescription, req.Count())
	if err != nil {
		writeError(w, r, err)
		return
	}

	text, err := h.completer.Complete(r.Context(), cfg.Credentials, llm.CompletionRequest{
		Model:       cfg.Model,
		Prompt:      prompt,
		Temperature: llm.Float(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FeatureGherkinResponse{
		Message:       "Gherkin scenarios generated successfully",
		Gherkin:       llm.StripCodeFences(text),
		FeatureName:   req.FeatureName,
		ScenarioCount: req.Count(),
		Provider:      cfg.Credentials.Provider,
		Model:         cfg.Model,
	})
}
