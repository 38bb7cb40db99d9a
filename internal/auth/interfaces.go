package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database/models"
)

// Authenticator is the surface the HTTP layer depends on.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	Verify(ctx context.Context, token string) (*Identity, error)
	Logout(ctx context.Context, token string) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenVerifier is all the auth middleware needs.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type TokenService interface {
	GenerateToken(user *models.User) (string, time.Time, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator   = (*Service)(nil)
	_ TokenVerifier   = (*Service)(nil)
	_ TokenService    = (*JWTService)(nil)
	_ RevocationCache = (*RedisRevocationCache)(nil)
)
