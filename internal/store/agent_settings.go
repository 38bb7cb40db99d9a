package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/pkg/crypto"
	"gorm.io/gorm"
)

type AgentSettingService struct {
	repo *Repository[models.AgentSetting]
	keys *APIKeyService
	enc  *crypto.Encryptor
}

// NewAgentSettingService uses keys as the fallback credential source when a
// setting carries no embedded key.
func NewAgentSettingService(db *gorm.DB, enc *crypto.Encryptor, keys *APIKeyService) *AgentSettingService {
	return &AgentSettingService{
		repo: NewRepository[models.AgentSetting](db),
		keys: keys,
		enc:  enc,
	}
}

type AgentSettingInput struct {
	Name        string
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   *int
	BaseURL     string
	APIKey      string
	Data        json.RawMessage
	Description string
}

type AgentSettingUpdate struct {
	Name        *string
	Provider    *string
	Model       *string
	Temperature *float64
	MaxTokens   *int
	BaseURL     *string
	APIKey      *string
	Data        json.RawMessage
	Description *string
}

func validateTemperature(t float64, fields map[string]string) {
	if t < 0 || t > 2 {
		fields["temperature"] = "Temperature must be between 0 and 2"
	}
}

func validateMaxTokens(n int, fields map[string]string) {
	if n <= 0 {
		fields["max_tokens"] = "Max tokens must be positive"
	}
}

func (s *AgentSettingService) Create(ctx context.Context, userID uuid.UUID, in AgentSettingInput) (*models.AgentSetting, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.Model = strings.TrimSpace(in.Model)

	setting := &models.AgentSetting{
		UserID:      userID,
		Name:        in.Name,
		Provider:    in.Provider,
		Model:       in.Model,
		Temperature: llm.DefaultTemperature,
		MaxTokens:   llm.DefaultMaxTokens,
		BaseURL:     strings.TrimSpace(in.BaseURL),
		Description: in.Description,
	}
	if in.Temperature != nil {
		setting.Temperature = *in.Temperature
	}
	if in.MaxTokens != nil {
		setting.MaxTokens = *in.MaxTokens
	}

	fields := make(map[string]string)
	if in.Name == "" {
		fields["name"] = "Setting name is required"
	}
	if !llm.IsSupportedProvider(in.Provider) {
		fields["provider"] = "Provider must be one of " + strings.Join(llm.SupportedProviders(), ", ")
	}
	if in.Model == "" {
		fields["model"] = "Model is required"
	}
	validateTemperature(setting.Temperature, fields)
	validateMaxTokens(setting.MaxTokens, fields)
	data, ok := normalizeData(in.Data)
	if !ok {
		fields["data"] = "Data must be valid JSON"
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}
	setting.Data = data

	if in.APIKey != "" {
		sealed, err := s.enc.Seal(in.APIKey)
		if err != nil {
			return nil, fmt.Errorf("sealing agent api key: %w", err)
		}
		setting.EncryptedAPIKey = sealed
		setting.APIKeyPrefix = models.MaskPrefix(in.APIKey)
	}

	temperature := setting.Temperature
	if err := s.repo.Create(ctx, setting); err != nil {
		return nil, err
	}
	// gorm skips zero values that have a column default.
	if temperature == 0 {
		return s.repo.Update(ctx, userID, setting.ID, map[string]interface{}{"temperature": 0.0})
	}
	return setting, nil
}

func (s *AgentSettingService) List(ctx context.Context, userID uuid.UUID) ([]models.AgentSetting, error) {
	return s.repo.List(ctx, userID)
}

func (s *AgentSettingService) Get(ctx context.Context, userID uuid.UUID, idOrName string) (*models.AgentSetting, error) {
	return s.repo.Resolve(ctx, userID, idOrName)
}

func (s *AgentSettingService) Update(ctx context.Context, userID, id uuid.UUID, in AgentSettingUpdate) (*models.AgentSetting, error) {
	updates := make(map[string]interface{})
	fields := make(map[string]string)

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			fields["name"] = "Setting name cannot be empty"
		}
		updates["name"] = name
	}
	if in.Provider != nil {
		provider := strings.ToLower(strings.TrimSpace(*in.Provider))
		if !llm.IsSupportedProvider(provider) {
			fields["provider"] = "Provider must be one of " + strings.Join(llm.SupportedProviders(), ", ")
		}
		updates["provider"] = provider
	}
	if in.Model != nil {
		model := strings.TrimSpace(*in.Model)
		if model == "" {
			fields["model"] = "Model cannot be empty"
		}
		updates["model"] = model
	}
	if in.Temperature != nil {
		validateTemperature(*in.Temperature, fields)
		updates["temperature"] = *in.Temperature
	}
	if in.MaxTokens != nil {
		validateMaxTokens(*in.MaxTokens, fields)
		updates["max_tokens"] = *in.MaxTokens
	}
	if in.BaseURL != nil {
		updates["base_url"] = strings.TrimSpace(*in.BaseURL)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Data != nil {
		data, ok := normalizeData(in.Data)
		if !ok {
			fields["data"] = "Data must be valid JSON"
		}
		updates["data"] = data
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}

	// An empty key clears the embedded secret.
	if in.APIKey != nil {
		sealed, err := s.enc.Seal(*in.APIKey)
		if err != nil {
			return nil, fmt.Errorf("sealing agent api key: %w", err)
		}
		updates["encrypted_api_key"] = sealed
		updates["api_key_prefix"] = models.MaskPrefix(*in.APIKey)
	}

	return s.repo.Update(ctx, userID, id, updates)
}

func (s *AgentSettingService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// APIKey decrypts the embedded key; an empty string means none is set.
func (s *AgentSettingService) APIKey(setting *models.AgentSetting) (string, error) {
	if setting.EncryptedAPIKey == "" {
		return "", nil
	}
	value, err := s.enc.Open(setting.EncryptedAPIKey)
	if err != nil {
		return "", fmt.Errorf("opening agent api key: %w", err)
	}
	return value, nil
}

// ResolveCredentials returns the completion parameters of a setting. Without
// an embedded key the user's newest active key of the provider type is used.
func (s *AgentSettingService) ResolveCredentials(ctx context.Context, userID uuid.UUID, idOrName string) (*models.AgentSetting, llm.Credentials, error) {
	setting, err := s.Get(ctx, userID, idOrName)
	if err != nil {
		return nil, llm.Credentials{}, err
	}

	creds := llm.Credentials{Provider: setting.Provider, BaseURL: setting.BaseURL}
	creds.APIKey, err = s.APIKey(setting)
	if err != nil {
		return nil, creds, err
	}

	if creds.APIKey == "" && s.keys != nil {
		_, value, err := s.keys.FindActiveByType(ctx, userID, setting.Provider)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, creds, err
		default:
			creds.APIKey = value
		}
	}
	return setting, creds, nil
}
