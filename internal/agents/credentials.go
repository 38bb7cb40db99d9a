package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
)

// ConfigRequest names the account and model a caller wants to use. Any
// field left empty is filled from the agent setting, then from the user's
// model settings.
type ConfigRequest struct {
	AgentSetting string   `json:"agent_setting,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	APIKey       string   `json:"api_key,omitempty"`
	BaseURL      string   `json:"base_url,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
}

// Resolver turns a ConfigRequest into a runnable Config using the user's
// stored settings and keys.
type Resolver struct {
	settings *store.AgentSettingService
	keys     *store.APIKeyService
	configs  *store.ConfigService
}

func NewResolver(settings *store.AgentSettingService, keys *store.APIKeyService, configs *store.ConfigService) *Resolver {
	return &Resolver{settings: settings, keys: keys, configs: configs}
}

func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, req ConfigRequest) (Config, error) {
	var cfg Config

	if req.AgentSetting != "" {
		setting, creds, err := r.settings.ResolveCredentials(ctx, userID, req.AgentSetting)
		if err != nil {
			return cfg, err
		}
		cfg.Credentials = creds
		cfg.Model = setting.Model
		cfg.Temperature = setting.Temperature
		cfg.MaxTokens = setting.MaxTokens
	} else {
		defaults, err := r.configs.GetModelSettings(ctx, userID)
		if err != nil {
			return cfg, err
		}
		cfg.Credentials.Provider = defaults.Provider
		cfg.Model = defaults.Model
		cfg.Temperature = defaults.Temperature
		cfg.MaxTokens = defaults.MaxTokens
	}

	if p := strings.ToLower(strings.TrimSpace(req.Provider)); p != "" && p != cfg.Credentials.Provider {
		cfg.Credentials.Provider = p
		// A key stored for another provider is useless here.
		cfg.Credentials.APIKey = ""
	}
	if !llm.IsSupportedProvider(cfg.Credentials.Provider) {
		return cfg, fmt.Errorf("%w: %q", llm.ErrUnsupportedProvider, cfg.Credentials.Provider)
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg.Model = m
	}
	if req.BaseURL != "" {
		cfg.Credentials.BaseURL = req.BaseURL
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.APIKey != "" {
		cfg.Credentials.APIKey = req.APIKey
	}

	if cfg.Credentials.APIKey == "" {
		_, value, err := r.keys.FindActiveByType(ctx, userID, cfg.Credentials.Provider)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return cfg, err
		default:
			cfg.Credentials.APIKey = value
		}
	}
	if cfg.Credentials.APIKey == "" && llm.RequiresKey(cfg.Credentials.Provider) {
		return cfg, fmt.Errorf("%w: no key found for provider %s", llm.ErrMissingAPIKey, cfg.Credentials.Provider)
	}
	return cfg, nil
}
