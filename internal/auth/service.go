package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/validation"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	jwt     *JWTService
	revoked RevocationCache
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithRevocationCache puts a cache (normally Redis) in front of the
// sessions table for revoked tokens.
func WithRevocationCache(c RevocationCache) Option {
	return func(s *Service) { s.revoked = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(db *gorm.DB, jwt *JWTService, opts ...Option) *Service {
	s := &Service{
		db:     db,
		jwt:    jwt,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

type LoginInput struct {
	Identifier string // username or email
	Password   string
	IPAddress  string
	UserAgent  string
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Identity is what a verified token resolves to.
type Identity struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	IsAdmin   bool
	SessionID uuid.UUID
	ExpiresAt time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(in RegisterInput) error {
	fields := make(map[string]string)

	if msg := validation.UsernameProblem(in.Username); msg != "" {
		fields["username"] = msg
	}
	if !validation.IsValidEmail(in.Email) {
		fields["email"] = "Invalid email format"
	}
	if msg := validation.PasswordProblem(in.Password); msg != "" {
		fields["password"] = msg
	} else if in.Password != in.ConfirmPassword {
		fields["confirm_password"] = "Passwords do not match"
	}

	return newValidationError(fields)
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)

	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	var existing models.User
	err := s.db.WithContext(ctx).Unscoped().
		Where("username = ? OR email = ?", input.Username, input.Email).
		First(&existing).Error
	if err == nil {
		if existing.Username == input.Username {
			return nil, ErrUsernameTaken
		}
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Login returns ErrInvalidCredentials for both unknown identifiers and wrong
// passwords. Inactive accounts are only reported once the password matched.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, normalizeEmail(identifier)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	token, expiresAt, err := s.jwt.GenerateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	session := models.Session{
		UserID:    user.ID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt,
		IsActive:  true,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}

	s.touch(ctx, &user)

	return &AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      &user,
	}, nil
}

// Verify checks the signature and expiry, then confirms the session was not
// revoked and the user is still active.
func (s *Service) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	hash := HashToken(token)
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, hash)
		if err != nil {
			s.logger.Warn("revocation cache unavailable", "error", err)
		} else if revoked {
			return nil, ErrRevokedToken
		}
	}

	var session models.Session
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRevokedToken
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	if !session.IsActive {
		return nil, ErrRevokedToken
	}
	if session.Expired(s.now()) {
		return nil, ErrExpiredToken
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	s.touch(ctx, &user)

	return &Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout revokes the session behind token. Unknown, expired or already
// revoked tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := HashToken(token)
	now := s.now()

	var session models.Session
	err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up session: %w", err)
	}

	if session.IsActive {
		if err := s.db.WithContext(ctx).Model(&session).Updates(map[string]interface{}{
			"is_active":  false,
			"revoked_at": now,
		}).Error; err != nil {
			return fmt.Errorf("revoking session: %w", err)
		}
	}

	if s.revoked != nil {
		if err := s.revoked.Revoke(ctx, hash, session.ExpiresAt.Sub(now)); err != nil {
			s.logger.Warn("caching revoked token", "error", err)
		}
	}

	return nil
}

// RevokeUserSessions ends every active session of a user, for example after
// a password change or deactivation.
func (s *Service) RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sessions []models.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&sessions).Error; err != nil {
		return 0, fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	now := s.now()
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{"is_active": false, "revoked_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("revoking sessions: %w", result.Error)
	}

	if s.revoked != nil {
		for _, sess := range sessions {
			if err := s.revoked.Revoke(ctx, sess.TokenHash, sess.ExpiresAt.Sub(now)); err != nil {
				s.logger.Warn("caching revoked token", "error", err)
				break
			}
		}
	}

	return result.RowsAffected, nil
}

// PurgeExpiredSessions hard-deletes sessions that expired or were revoked
// before cutoff.
func (s *Service) PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where("expires_at < ? OR (is_active = ? AND revoked_at < ?)", cutoff, false, cutoff).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("purging sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Email     *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if !validation.IsValidEmail(email) {
			return nil, newValidationError(map[string]string{"email": "Invalid email format"})
		}
		if email != user.Email {
			var count int64
			if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).
				Where("email = ? AND id <> ?", email, userID).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("checking email: %w", err)
			}
			if count > 0 {
				return nil, ErrEmailTaken
			}
			updates["email"] = email
		}
	}

	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return s.GetUserByID(ctx, userID)
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every existing session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirm string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	fields := make(map[string]string)
	if msg := validation.PasswordProblem(next); msg != "" {
		fields["new_password"] = msg
	} else if next != confirm {
		fields["confirm_password"] = "Passwords do not match"
	}
	if err := newValidationError(fields); err != nil {
		return err
	}

	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	_, err = s.RevokeUserSessions(ctx, userID)
	return err
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// SetUserActive toggles an account. Deactivation also ends its sessions.
func (s *Service) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if !active {
		if _, err := s.RevokeUserSessions(ctx, userID); err != nil {
			return nil, err
		}
	}
	user.IsActive = active
	return user, nil
}

func (s *Service) touch(ctx context.Context, user *models.User) {
	now := s.now()
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("last_activity_at", now).Error; err != nil {
		s.logger.Warn("updating last activity", "user_id", user.ID, "error", err)
		return
	}
	user.LastActivityAt = &now
}
