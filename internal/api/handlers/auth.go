package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/middleware"
	"github.com/hugh/testforge/internal/auth"
)

type AuthHandler struct {
	authService *auth.Service
}

func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewUserDTO(user))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Identifier: req.Login(),
		Password:   req.Password,
		IPAddress:  middleware.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Cookie for browser clients; API clients use the token in the body.
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    resp.Token,
		Path:     "/",
		Expires:  resp.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	if csrf, err := middleware.NewCSRFToken(); err == nil {
		middleware.SetCSRFCookie(w, r, csrf, resp.ExpiresAt)
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt.UTC().Format(time.RFC3339),
		User:      dto.NewUserDTO(resp.User),
	})
}

// Logout handles POST /auth/logout. It succeeds with or without a valid
// session so clients can always clear their state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromRequest(r)
	if err := h.authService.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	clearAuthCookies(w)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// UpdateMe handles PUT /auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), auth.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// ChangePassword handles PUT /auth/password. Every session of the user ends,
// including the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.authService.ChangePassword(r.Context(), middleware.GetUserID(r.Context()),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"current_password": "Current password is incorrect"},
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	clearAuthCookies(w)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password changed. Please log in again."})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.TokenCookieName, middleware.CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == middleware.TokenCookieName,
			MaxAge:   -1,
		})
	}
}
