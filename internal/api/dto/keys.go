package dto

import (
	"encoding/json"
	"strings"

	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
)

type CreateAPIKeyRequest struct {
	Name     string `json:"name"`
	KeyValue string `json:"key_value"`
	KeyType  string `json:"key_type,omitempty"`
}

func (r CreateAPIKeyRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if strings.TrimSpace(r.KeyValue) == "" {
		errors["key_value"] = "Key value is required"
	}
	return errors
}

type UpdateAPIKeyRequest struct {
	Name     *string `json:"name,omitempty"`
	KeyValue *string `json:"key_value,omitempty"`
	KeyType  *string `json:"key_type,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (r UpdateAPIKeyRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.KeyValue != nil && strings.TrimSpace(*r.KeyValue) == "" {
		errors["key_value"] = "Key value cannot be empty"
	}
	return errors
}

func (r UpdateAPIKeyRequest) Update() store.APIKeyUpdate {
	return store.APIKeyUpdate{
		Name:     r.Name,
		Value:    r.KeyValue,
		KeyType:  r.KeyType,
		IsActive: r.IsActive,
	}
}

type APIKeyResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	KeyType     string  `json:"key_type"`
	IsActive    bool    `json:"is_active"`
	MaskedValue string  `json:"masked_value"`
	KeyValue    string  `json:"key_value,omitempty"`
	LastUsedAt  *string `json:"last_used_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// NewAPIKeyResponse masks the key. Pass the revealed value only when the
// owner asked for secrets.
func NewAPIKeyResponse(k *models.APIKey, revealed string) APIKeyResponse {
	return APIKeyResponse{
		ID:          k.ID.String(),
		Name:        k.Name,
		KeyType:     k.KeyType,
		IsActive:    k.IsActive,
		MaskedValue: models.Masked(k.KeyPrefix, k.EncryptedValue != ""),
		KeyValue:    revealed,
		LastUsedAt:  formatTimePtr(k.LastUsedAt),
		CreatedAt:   formatTime(k.CreatedAt),
		UpdatedAt:   formatTime(k.UpdatedAt),
	}
}

func NewAPIKeyList(rows []models.APIKey) ListResponse {
	out := make([]APIKeyResponse, len(rows))
	for i := range rows {
		out[i] = NewAPIKeyResponse(&rows[i], "")
	}
	return NewList(out)
}

type CreateAgentSettingRequest struct {
	Name        string          `json:"name"`
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	BaseURL     string          `json:"base_url,omitempty"`
	APIKey      string          `json:"api_key,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (r CreateAgentSettingRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if p := strings.ToLower(strings.TrimSpace(r.Provider)); p == "" {
		errors["provider"] = "Provider is required"
	} else if !llm.IsSupportedProvider(p) {
		errors["provider"] = "Unsupported provider"
	}
	if strings.TrimSpace(r.Model) == "" {
		errors["model"] = "Model is required"
	}
	return errors
}

func (r CreateAgentSettingRequest) Input() store.AgentSettingInput {
	return store.AgentSettingInput{
		Name:        r.Name,
		Provider:    r.Provider,
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		BaseURL:     r.BaseURL,
		APIKey:      r.APIKey,
		Data:        r.Data,
		Description: r.Description,
	}
}

type UpdateAgentSettingRequest struct {
	Name        *string         `json:"name,omitempty"`
	Provider    *string         `json:"provider,omitempty"`
	Model       *string         `json:"model,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	BaseURL     *string         `json:"base_url,omitempty"`
	APIKey      *string         `json:"api_key,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Description *string         `json:"description,omitempty"`
}

func (r UpdateAgentSettingRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.Provider != nil && !llm.IsSupportedProvider(strings.ToLower(strings.TrimSpace(*r.Provider))) {
		errors["provider"] = "Unsupported provider"
	}
	if r.Model != nil && strings.TrimSpace(*r.Model) == "" {
		errors["model"] = "Model cannot be empty"
	}
	return errors
}

func (r UpdateAgentSettingRequest) Update() store.AgentSettingUpdate {
	return store.AgentSettingUpdate{
		Name:        r.Name,
		Provider:    r.Provider,
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		BaseURL:     r.BaseURL,
		APIKey:      r.APIKey,
		Data:        r.Data,
		Description: r.Description,
	}
}

type AgentSettingResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Temperature  float64         `json:"temperature"`
	MaxTokens    int             `json:"max_tokens"`
	BaseURL      string          `json:"base_url,omitempty"`
	HasAPIKey    bool            `json:"has_api_key"`
	MaskedAPIKey string          `json:"masked_api_key,omitempty"`
	APIKey       string          `json:"api_key,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

func NewAgentSettingResponse(s *models.AgentSetting, revealed string) AgentSettingResponse {
	hasKey := s.EncryptedAPIKey != ""
	resp := AgentSettingResponse{
		ID:           s.ID.String(),
		Name:         s.Name,
		Provider:     s.Provider,
		Model:        s.Model,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		BaseURL:      s.BaseURL,
		HasAPIKey:    hasKey,
		MaskedAPIKey: models.Masked(s.APIKeyPrefix, hasKey),
		APIKey:       revealed,
		Description:  s.Description,
		CreatedAt:    formatTime(s.CreatedAt),
		UpdatedAt:    formatTime(s.UpdatedAt),
	}
	if len(s.Data) > 0 {
		resp.Data = json.RawMessage(s.Data)
	}
	return resp
}

func NewAgentSettingList(rows []models.AgentSetting) ListResponse {
	out := make([]AgentSettingResponse, len(rows))
	for i := range rows {
		out[i] = NewAgentSettingResponse(&rows[i], "")
	}
	return NewList(out)
}
