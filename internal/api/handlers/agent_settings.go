package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/store"
)

type AgentSettingHandler struct {
	settings *store.AgentSettingService
}

func NewAgentSettingHandler(settings *store.AgentSettingService) *AgentSettingHandler {
	return &AgentSettingHandler{settings: settings}
}

// List handles GET /api/agent-settings
func (h *AgentSettingHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.settings.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAgentSettingList(rows))
}

// Create handles POST /api/agent-settings
func (h *AgentSettingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAgentSettingRequest
	if !decode(w, r, &req) {
		return
	}

	setting, err := h.settings.Create(r.Context(), middleware.GetUserID(r.Context()), req.Input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewAgentSettingResponse(setting, ""))
}

// Get handles GET /api/agent-settings/{id}?include_secrets=true
func (h *AgentSettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.settings.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var revealed string
	if dto.IncludeSecrets(r.URL.Query()) {
		if revealed, err = h.settings.APIKey(setting); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dto.NewAgentSettingResponse(setting, revealed))
}

// Update handles PUT /api/agent-settings/{id}
func (h *AgentSettingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.UpdateAgentSettingRequest
	if !decode(w, r, &req) {
		return
	}

	existing, err := h.settings.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	setting, err := h.settings.Update(r.Context(), userID, existing.ID, req.Update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAgentSettingResponse(setting, ""))
}

// Delete handles DELETE /api/agent-settings/{id}
func (h *AgentSettingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	existing, err := h.settings.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.settings.Delete(r.Context(), userID, existing.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Agent setting deleted"})
}
