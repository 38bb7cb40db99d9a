package dto

import (
	"encoding/json"
	"strings"

	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
)

type CreateConfigRequest struct {
	Name        string          `json:"name"`
	ConfigType  string          `json:"config_type,omitempty"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	IsFavorite  bool            `json:"is_favorite,omitempty"`
}

func (r CreateConfigRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

func (r CreateConfigRequest) Input() store.ConfigInput {
	return store.ConfigInput{
		Name:        r.Name,
		ConfigType:  r.ConfigType,
		Description: r.Description,
		Data:        r.Data,
		IsFavorite:  r.IsFavorite,
	}
}

type UpdateConfigRequest struct {
	Name        *string         `json:"name,omitempty"`
	ConfigType  *string         `json:"config_type,omitempty"`
	Description *string         `json:"description,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	IsFavorite  *bool           `json:"is_favorite,omitempty"`
}

func (r UpdateConfigRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	return errors
}

func (r UpdateConfigRequest) Update() store.ConfigUpdate {
	return store.ConfigUpdate{
		Name:        r.Name,
		ConfigType:  r.ConfigType,
		Description: r.Description,
		Data:        r.Data,
		IsFavorite:  r.IsFavorite,
	}
}

type ConfigResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ConfigType  string          `json:"config_type"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data"`
	IsFavorite  bool            `json:"is_favorite"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

func NewConfigResponse(c *models.SavedConfig) ConfigResponse {
	data := json.RawMessage(c.Data)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return ConfigResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		ConfigType:  c.ConfigType,
		Description: c.Description,
		Data:        data,
		IsFavorite:  c.IsFavorite,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
	}
}

func NewConfigList(rows []models.SavedConfig) ListResponse {
	out := make([]ConfigResponse, len(rows))
	for i := range rows {
		out[i] = NewConfigResponse(&rows[i])
	}
	return NewList(out)
}

// ModelSettingsRequest fields left empty keep their current value.
type ModelSettingsRequest struct {
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Validate leaves range checks to the config store.
func (r ModelSettingsRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if p := strings.TrimSpace(r.Provider); p != "" && !llm.IsSupportedProvider(strings.ToLower(p)) {
		errors["provider"] = "Unsupported provider"
	}
	return errors
}

func (r ModelSettingsRequest) Apply(current store.ModelSettings) store.ModelSettings {
	if p := strings.TrimSpace(r.Provider); p != "" {
		current.Provider = strings.ToLower(p)
	}
	if m := strings.TrimSpace(r.Model); m != "" {
		current.Model = m
	}
	if r.Temperature != nil {
		current.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		current.MaxTokens = *r.MaxTokens
	}
	return current
}
