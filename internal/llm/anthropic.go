package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

type anthropicProvider struct {
	baseURL string
	client  *http.Client
}

func newAnthropicProvider(baseURL string, client *http.Client) *anthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &anthropicProvider{baseURL: baseURL, client: client}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (p *anthropicProvider) complete(ctx context.Context, creds Credentials, req CompletionRequest) (string, error) {
	base := p.baseURL
	if creds.BaseURL != "" {
		base = creds.BaseURL
	}

	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.temperature(),
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	headers := map[string]string{
		"x-api-key":         creds.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var out anthropicResponse
	if err := postJSON(ctx, p.client, ProviderAnthropic, strings.TrimRight(base, "/")+"/v1/messages", headers, body, &out, anthropicErrorMessage); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ExternalServiceError{Provider: ProviderAnthropic, Message: "response contained no text"}
	}
	return sb.String(), nil
}

func anthropicErrorMessage(raw []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
