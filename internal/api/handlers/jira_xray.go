package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/store"
)

type JiraXrayHandler struct {
	settings *store.JiraXraySettingService
}

func NewJiraXrayHandler(settings *store.JiraXraySettingService) *JiraXrayHandler {
	return &JiraXrayHandler{settings: settings}
}

// List handles GET /api/jira-xray-settings
func (h *JiraXrayHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.settings.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewJiraXrayList(rows))
}

// Create handles POST /api/jira-xray-settings
func (h *JiraXrayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateJiraXrayRequest
	if !decode(w, r, &req) {
		return
	}

	setting, err := h.settings.Create(r.Context(), middleware.GetUserID(r.Context()), req.Input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewJiraXrayResponse(setting, nil))
}

// Get handles GET /api/jira-xray-settings/{id}?include_secrets=true
func (h *JiraXrayHandler) Get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.settings.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var revealed *store.JiraXraySecrets
	if dto.IncludeSecrets(r.URL.Query()) {
		secrets, err := h.settings.Secrets(setting)
		if err != nil {
			writeError(w, r, err)
			return
		}
		revealed = &secrets
	}
	writeJSON(w, http.StatusOK, dto.NewJiraXrayResponse(setting, revealed))
}

// Update handles PUT /api/jira-xray-settings/{id}
func (h *JiraXrayHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.UpdateJiraXrayRequest
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
	writeJSON(w, http.StatusOK, dto.NewJiraXrayResponse(setting, nil))
}

// Delete handles DELETE /api/jira-xray-settings/{id}
func (h *JiraXrayHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Jira/Xray settings deleted"})
}
