package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/pkg/crypto"
	"gorm.io/gorm"
)

type APIKeyService struct {
	repo *Repository[models.APIKey]
	enc  *crypto.Encryptor
	now  func() time.Time
}

func NewAPIKeyService(db *gorm.DB, enc *crypto.Encryptor) *APIKeyService {
	return &APIKeyService{
		repo: NewRepository[models.APIKey](db),
		enc:  enc,
		now:  time.Now,
	}
}

type APIKeyInput struct {
	Name    string
	Value   string
	KeyType string
}

type APIKeyUpdate struct {
	Name     *string
	Value    *string
	KeyType  *string
	IsActive *bool
}

func (s *APIKeyService) Create(ctx context.Context, userID uuid.UUID, in APIKeyInput) (*models.APIKey, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.KeyType = strings.ToLower(strings.TrimSpace(in.KeyType))
	if in.KeyType == "" {
		in.KeyType = models.KeyTypeGeneric
	}

	fields := make(map[string]string)
	if in.Name == "" {
		fields["name"] = "Key name is required"
	}
	if strings.TrimSpace(in.Value) == "" {
		fields["value"] = "Key value is required"
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}

	sealed, err := s.enc.Seal(in.Value)
	if err != nil {
		return nil, fmt.Errorf("sealing api key: %w", err)
	}

	key := &models.APIKey{
		UserID:         userID,
		Name:           in.Name,
		KeyType:        in.KeyType,
		EncryptedValue: sealed,
		KeyPrefix:      models.MaskPrefix(in.Value),
		IsActive:       true,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// List returns the user's keys, optionally only one provider type.
func (s *APIKeyService) List(ctx context.Context, userID uuid.UUID, keyType string) ([]models.APIKey, error) {
	var scopes []Scope
	if keyType != "" {
		scopes = append(scopes, ByField("key_type", strings.ToLower(keyType)))
	}
	return s.repo.List(ctx, userID, scopes...)
}

func (s *APIKeyService) Get(ctx context.Context, userID uuid.UUID, idOrName string) (*models.APIKey, error) {
	return s.repo.Resolve(ctx, userID, idOrName)
}

func (s *APIKeyService) Update(ctx context.Context, userID, id uuid.UUID, in APIKeyUpdate) (*models.APIKey, error) {
	updates := make(map[string]interface{})
	fields := make(map[string]string)

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			fields["name"] = "Key name cannot be empty"
		}
		updates["name"] = name
	}
	if in.KeyType != nil {
		updates["key_type"] = strings.ToLower(strings.TrimSpace(*in.KeyType))
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if in.Value != nil {
		if strings.TrimSpace(*in.Value) == "" {
			fields["value"] = "Key value cannot be empty"
		} else {
			sealed, err := s.enc.Seal(*in.Value)
			if err != nil {
				return nil, fmt.Errorf("sealing api key: %w", err)
			}
			updates["encrypted_value"] = sealed
			updates["key_prefix"] = models.MaskPrefix(*in.Value)
		}
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, userID, id, updates)
}

func (s *APIKeyService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// Reveal decrypts the stored value. Callers must already have resolved key
// through the owner's id.
func (s *APIKeyService) Reveal(key *models.APIKey) (string, error) {
	value, err := s.enc.Open(key.EncryptedValue)
	if err != nil {
		return "", fmt.Errorf("opening api key: %w", err)
	}
	return value, nil
}

// FindActiveByType returns the newest active key of a provider type with its
// plaintext value and stamps it as used.
func (s *APIKeyService) FindActiveByType(ctx context.Context, userID uuid.UUID, keyType string) (*models.APIKey, string, error) {
	key, err := s.repo.FindOne(ctx, userID,
		ByField("key_type", strings.ToLower(keyType)),
		ByField("is_active", true),
	)
	if err != nil {
		return nil, "", err
	}

	value, err := s.Reveal(key)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	if err := s.repo.db.WithContext(ctx).Model(key).UpdateColumn("last_used_at", now).Error; err != nil {
		return nil, "", fmt.Errorf("stamping api key use: %w", err)
	}
	key.LastUsedAt = &now
	return key, value, nil
}
