package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/store"
)

type APIKeyHandler struct {
	keys *store.APIKeyService
}

func NewAPIKeyHandler(keys *store.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

// List handles GET /api/api-keys. Values are always masked here.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.keys.List(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAPIKeyList(rows))
}

// Create handles POST /api/api-keys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAPIKeyRequest
	if !decode(w, r, &req) {
		return
	}

	key, err := h.keys.Create(r.Context(), middleware.GetUserID(r.Context()), store.APIKeyInput{
		Name:    req.Name,
		Value:   req.KeyValue,
		KeyType: req.KeyType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewAPIKeyResponse(key, ""))
}

// Get handles GET /api/api-keys/{id}?include_secrets=true
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var revealed string
	if dto.IncludeSecrets(r.URL.Query()) {
		if revealed, err = h.keys.Reveal(key); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dto.NewAPIKeyResponse(key, revealed))
}

// Update handles PUT /api/api-keys/{id}
func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.UpdateAPIKeyRequest
	if !decode(w, r, &req) {
		return
	}

	existing, err := h.keys.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := h.keys.Update(r.Context(), userID, existing.ID, req.Update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAPIKeyResponse(key, ""))
}

// Delete handles DELETE /api/api-keys/{id}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	existing, err := h.keys.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.keys.Delete(r.Context(), userID, existing.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "API key deleted"})
}
