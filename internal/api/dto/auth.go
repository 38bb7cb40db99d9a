package dto

import (
	"strings"

	"github.com/hugh/testforge/internal/database/models"
)

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
}

// Validate only checks presence. Format rules live in the auth service.
func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Username) == "" {
		errors["username"] = "Username is required"
	}
	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

// LoginRequest accepts the identifier under any of the names clients use.
type LoginRequest struct {
	Identifier string `json:"identifier,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}

func (r LoginRequest) Login() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Login() == "" {
		errors["username"] = "Username or email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

func (r UpdateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.FirstName != nil && len(*r.FirstName) > 50 {
		errors["first_name"] = "First name must be at most 50 characters"
	}
	if r.LastName != nil && len(*r.LastName) > 50 {
		errors["last_name"] = "Last name must be at most 50 characters"
	}
	if r.Email != nil && strings.TrimSpace(*r.Email) == "" {
		errors["email"] = "Email cannot be empty"
	}

	return errors
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r ChangePasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CurrentPassword == "" {
		errors["current_password"] = "Current password is required"
	}
	if r.NewPassword == "" {
		errors["new_password"] = "New password is required"
	}

	return errors
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (r SetActiveRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.IsActive == nil {
		errors["is_active"] = "is_active is required"
	}
	return errors
}

type AuthResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name,omitempty"`
	LastName       string  `json:"last_name,omitempty"`
	FullName       string  `json:"full_name"`
	IsActive       bool    `json:"is_active"`
	IsAdmin        bool    `json:"is_admin"`
	LastActivityAt *string `json:"last_activity_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:             u.ID.String(),
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.FullName(),
		IsActive:       u.IsActive,
		IsAdmin:        u.IsAdmin,
		LastActivityAt: formatTimePtr(u.LastActivityAt),
		CreatedAt:      formatTime(u.CreatedAt),
	}
}
