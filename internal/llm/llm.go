// Package llm forwards prompts to hosted completion APIs using the
// caller's own provider key.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hugh/testforge/pkg/config"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderDeepSeek  = "deepseek"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

var ErrUnsupportedProvider = errors.New("unsupported llm provider")
var ErrMissingAPIKey = errors.New("api key is required for this provider")
var ErrMissingModel = errors.New("model is required")

// SupportedProviders lists the provider tags accepted in agent settings.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama, ProviderDeepSeek}
}

func IsSupportedProvider(p string) bool {
	for _, s := range SupportedProviders() {
		if s == p {
			return true
		}
	}
	return false
}

// RequiresKey is false only for local OpenAI-compatible servers.
func RequiresKey(provider string) bool {
	return provider != ProviderOllama
}

// Credentials identify the account a completion is billed to.
type Credentials struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// CompletionRequest leaves Temperature nil to use DefaultTemperature.
// A pointer to 0 asks for deterministic output.
type CompletionRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature *float64
	MaxTokens   int
}

// Float returns a pointer to v, for CompletionRequest.Temperature.
func Float(v float64) *float64 {
	return &v
}

func (r *CompletionRequest) temperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

func (r *CompletionRequest) applyDefaults() {
	if r.Temperature == nil || *r.Temperature < 0 {
		r.Temperature = Float(DefaultTemperature)
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
}

// Completer is implemented by Bridge and by test doubles.
type Completer interface {
	Complete(ctx context.Context, creds Credentials, req CompletionRequest) (string, error)
}

type provider interface {
	complete(ctx context.Context, creds Credentials, req CompletionRequest) (string, error)
}

// ExternalServiceError carries the upstream status and message back to the
// caller.
type ExternalServiceError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Bridge dispatches completions to the provider named in the credentials.
type Bridge struct {
	providers map[string]provider
	logger    *slog.Logger
}

func NewBridge(cfg config.LLMConfig, logger *slog.Logger) *Bridge {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return &Bridge{
		providers: map[string]provider{
			ProviderOpenAI:    newOpenAIProvider(ProviderOpenAI, cfg.OpenAIBaseURL, client),
			ProviderOllama:    newOpenAIProvider(ProviderOllama, cfg.OllamaBaseURL, client),
			ProviderDeepSeek:  newOpenAIProvider(ProviderDeepSeek, cfg.DeepSeekBaseURL, client),
			ProviderAnthropic: newAnthropicProvider(cfg.AnthropicBaseURL, client),
			ProviderGemini:    newGeminiProvider(cfg.GeminiBaseURL, client),
		},
		logger: logger,
	}
}

func (b *Bridge) Complete(ctx context.Context, creds Credentials, req CompletionRequest) (string, error) {
	creds.Provider = strings.ToLower(strings.TrimSpace(creds.Provider))
	p, ok := b.providers[creds.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, creds.Provider)
	}
	if creds.APIKey == "" && RequiresKey(creds.Provider) {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", ErrMissingModel
	}
	req.applyDefaults()

	start := time.Now()
	text, err := p.complete(ctx, creds, req)
	if err != nil {
		b.logger.Warn("llm completion failed",
			"provider", creds.Provider,
			"model", req.Model,
			"duration", time.Since(start),
			"error", err,
		)
		return "", err
	}

	b.logger.Debug("llm completion",
		"provider", creds.Provider,
		"model", req.Model,
		"prompt_chars", len(req.Prompt),
		"response_chars", len(text),
		"duration", time.Since(start),
	)
	return text, nil
}

var _ Completer = (*Bridge)(nil)
