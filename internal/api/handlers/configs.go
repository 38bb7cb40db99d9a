package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/store"
)

type ConfigHandler struct {
	configs *store.ConfigService
}

func NewConfigHandler(configs *store.ConfigService) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// List handles GET /api/configs
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	favorites, _ := strconv.ParseBool(r.URL.Query().Get("favorites"))

	rows, err := h.configs.List(r.Context(), middleware.GetUserID(r.Context()), store.ConfigFilter{
		Type:          r.URL.Query().Get("type"),
		FavoritesOnly: favorites,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConfigList(rows))
}

// Create handles POST /api/configs
func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateConfigRequest
	if !decode(w, r, &req) {
		return
	}

	cfg, err := h.configs.Create(r.Context(), middleware.GetUserID(r.Context()), req.Input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewConfigResponse(cfg))
}

// Get handles GET /api/configs/{id}. The path segment may also be a name,
// narrowed by ?type= when names repeat across types.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "id"), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConfigResponse(cfg))
}

// Update handles PUT /api/configs/{id}
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.UpdateConfigRequest
	if !decode(w, r, &req) {
		return
	}

	existing, err := h.configs.Get(r.Context(), userID, chi.URLParam(r, "id"), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	cfg, err := h.configs.Update(r.Context(), userID, existing.ID, req.Update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConfigResponse(cfg))
}

// Delete handles DELETE /api/configs/{id}
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	existing, err := h.configs.Get(r.Context(), userID, chi.URLParam(r, "id"), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.configs.Delete(r.Context(), userID, existing.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Configuration deleted"})
}

// GetModelSettings handles GET /api/settings/model
func (h *ConfigHandler) GetModelSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.configs.GetModelSettings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// SaveModelSettings handles POST /api/settings/model
func (h *ConfigHandler) SaveModelSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.ModelSettingsRequest
	if !decode(w, r, &req) {
		return
	}

	current, err := h.configs.GetModelSettings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.configs.SaveModelSettings(r.Context(), userID, req.Apply(current))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// History handles GET /api/settings/history
func (h *ConfigHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.configs.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(entries))
}
