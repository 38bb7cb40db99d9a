package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/llm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	modelSettingsName   = "model_settings"
	settingsHistoryName = "settings_history"
	maxHistoryEntries   = 50
)

type ConfigService struct {
	repo *Repository[models.SavedConfig]
	now  func() time.Time
}

func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		repo: NewRepository[models.SavedConfig](db),
		now:  time.Now,
	}
}

type ConfigInput struct {
	Name        string
	ConfigType  string
	Description string
	Data        json.RawMessage
	IsFavorite  bool
}

type ConfigUpdate struct {
	Name        *string
	ConfigType  *string
	Description *string
	Data        json.RawMessage
	IsFavorite  *bool
}

type ConfigFilter struct {
	Type          string
	FavoritesOnly bool
}

func normalizeData(raw json.RawMessage) (datatypes.JSON, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON("{}"), true
	}
	if !json.Valid(raw) {
		return nil, false
	}
	return datatypes.JSON(raw), true
}

func (s *ConfigService) Create(ctx context.Context, userID uuid.UUID, in ConfigInput) (*models.SavedConfig, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ConfigType = strings.TrimSpace(in.ConfigType)
	if in.ConfigType == "" {
		in.ConfigType = models.ConfigTypeAgent
	}

	fields := make(map[string]string)
	if in.Name == "" {
		fields["name"] = "Config name is required"
	}
	data, ok := normalizeData(in.Data)
	if !ok {
		fields["data"] = "Config data must be valid JSON"
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}

	cfg := &models.SavedConfig{
		UserID:      userID,
		Name:        in.Name,
		ConfigType:  in.ConfigType,
		Data:        data,
		Description: in.Description,
		IsFavorite:  in.IsFavorite,
	}
	if err := s.repo.Create(ctx, cfg, ByField("config_type", in.ConfigType)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) List(ctx context.Context, userID uuid.UUID, filter ConfigFilter) ([]models.SavedConfig, error) {
	var scopes []Scope
	if filter.Type != "" {
		scopes = append(scopes, ByField("config_type", filter.Type))
	}
	if filter.FavoritesOnly {
		scopes = append(scopes, ByField("is_favorite", true))
	}
	return s.repo.List(ctx, userID, scopes...)
}

// Get resolves an id or a name; configType narrows name lookups.
func (s *ConfigService) Get(ctx context.Context, userID uuid.UUID, idOrName, configType string) (*models.SavedConfig, error) {
	var scopes []Scope
	if configType != "" {
		scopes = append(scopes, ByField("config_type", configType))
	}
	return s.repo.Resolve(ctx, userID, idOrName, scopes...)
}

func (s *ConfigService) Update(ctx context.Context, userID, id uuid.UUID, in ConfigUpdate) (*models.SavedConfig, error) {
	current, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	fields := make(map[string]string)
	configType := current.ConfigType

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			fields["name"] = "Config name cannot be empty"
		}
		updates["name"] = name
	}
	if in.ConfigType != nil && strings.TrimSpace(*in.ConfigType) != "" {
		configType = strings.TrimSpace(*in.ConfigType)
		updates["config_type"] = configType
		if _, renamed := updates["name"]; !renamed {
			updates["name"] = current.Name
		}
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.IsFavorite != nil {
		updates["is_favorite"] = *in.IsFavorite
	}
	if in.Data != nil {
		data, ok := normalizeData(in.Data)
		if !ok {
			fields["data"] = "Config data must be valid JSON"
		}
		updates["data"] = data
	}
	if err := validationError(fields); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, userID, id, updates, ByField("config_type", configType))
}

func (s *ConfigService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// Save upserts the config of the given type and name.
func (s *ConfigService) Save(ctx context.Context, userID uuid.UUID, configType, name string, data interface{}, description string) (*models.SavedConfig, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding config data: %w", err)
	}

	existing, err := s.repo.FindOne(ctx, userID, ByName(name), ByField("config_type", configType))
	switch {
	case errors.Is(err, ErrNotFound):
		return s.Create(ctx, userID, ConfigInput{
			Name:        name,
			ConfigType:  configType,
			Description: description,
			Data:        raw,
		})
	case err != nil:
		return nil, err
	}

	return s.repo.Update(ctx, userID, existing.ID, map[string]interface{}{
		"data":        datatypes.JSON(raw),
		"description": description,
	})
}

// ModelSettings are the user's default completion parameters.
type ModelSettings struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func DefaultModelSettings() ModelSettings {
	return ModelSettings{
		Provider:    llm.ProviderOpenAI,
		Model:       "gpt-4o",
		Temperature: llm.DefaultTemperature,
		MaxTokens:   llm.DefaultMaxTokens,
	}
}

func (m ModelSettings) validate() error {
	fields := make(map[string]string)
	if !llm.IsSupportedProvider(m.Provider) {
		fields["provider"] = "Unsupported provider: " + m.Provider
	}
	if strings.TrimSpace(m.Model) == "" {
		fields["model"] = "Model is required"
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		fields["temperature"] = "Temperature must be between 0 and 2"
	}
	if m.MaxTokens < 1 || m.MaxTokens > 200000 {
		fields["max_tokens"] = "Max tokens must be between 1 and 200000"
	}
	return validationError(fields)
}

// GetModelSettings returns the stored settings or the defaults.
func (s *ConfigService) GetModelSettings(ctx context.Context, userID uuid.UUID) (ModelSettings, error) {
	settings := DefaultModelSettings()

	cfg, err := s.repo.FindOne(ctx, userID, ByName(modelSettingsName), ByField("config_type", models.ConfigTypeModel))
	if errors.Is(err, ErrNotFound) {
		return settings, nil
	}
	if err != nil {
		return settings, err
	}
	if err := json.Unmarshal(cfg.Data, &settings); err != nil {
		return DefaultModelSettings(), fmt.Errorf("decoding model settings: %w", err)
	}
	return settings, nil
}

func (s *ConfigService) SaveModelSettings(ctx context.Context, userID uuid.UUID, settings ModelSettings) (ModelSettings, error) {
	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	if err := settings.validate(); err != nil {
		return settings, err
	}

	if _, err := s.Save(ctx, userID, models.ConfigTypeModel, modelSettingsName, settings, "Default model settings"); err != nil {
		return settings, err
	}

	err := s.AppendHistory(ctx, userID, HistoryEntry{
		Action:  "model_settings_updated",
		Details: map[string]interface{}{"provider": settings.Provider, "model": settings.Model},
	})
	return settings, err
}

// HistoryEntry records a settings change.
type HistoryEntry struct {
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// History returns the most recent changes first.
func (s *ConfigService) History(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	entries, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}

// AppendHistory keeps only the newest entries.
func (s *ConfigService) AppendHistory(ctx context.Context, userID uuid.UUID, entry HistoryEntry) error {
	entries, err := s.loadHistory(ctx, userID)
	if err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	entries = append(entries, entry)
	if len(entries) > maxHistoryEntries {
		entries = entries[len(entries)-maxHistoryEntries:]
	}

	_, err = s.Save(ctx, userID, models.ConfigTypeHistory, settingsHistoryName, entries, "Settings change history")
	return err
}

func (s *ConfigService) loadHistory(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	cfg, err := s.repo.FindOne(ctx, userID, ByName(settingsHistoryName), ByField("config_type", models.ConfigTypeHistory))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(cfg.Data, &entries); err != nil {
		return nil, fmt.Errorf("decoding settings history: %w", err)
	}
	return entries, nil
}
