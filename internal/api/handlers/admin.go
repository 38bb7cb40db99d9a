package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/auth"
)

type AdminHandler struct {
	authService *auth.Service
}

func NewAdminHandler(authService *auth.Service) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]dto.UserDTO, len(users))
	for i := range users {
		out[i] = dto.NewUserDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, dto.NewList(out))
}

// SetActive handles PUT /api/admin/users/{id}/active
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}

	var req dto.SetActiveRequest
	if !decode(w, r, &req) {
		return
	}
	if !*req.IsActive && userID == middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "You cannot deactivate your own account"})
		return
	}

	user, err := h.authService.SetUserActive(r.Context(), userID, *req.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}
