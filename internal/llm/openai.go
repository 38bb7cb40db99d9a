package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIProvider also serves OpenAI-compatible endpoints (Ollama, DeepSeek)
// by swapping the base URL.
type openAIProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func newOpenAIProvider(name, baseURL string, client *http.Client) *openAIProvider {
	return &openAIProvider{name: name, baseURL: baseURL, httpClient: client}
}

func (p *openAIProvider) client(creds Credentials) *openai.Client {
	cfg := openai.DefaultConfig(creds.APIKey)
	if creds.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(creds.BaseURL, "/")
	} else if p.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(p.baseURL, "/")
	}
	cfg.HTTPClient = p.httpClient
	return openai.NewClientWithConfig(cfg)
}

func (p *openAIProvider) complete(ctx context.Context, creds Credentials, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := float32(req.temperature())
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := p.client(creds).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ExternalServiceError{Provider: p.name, Message: "response contained no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ExternalServiceError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ExternalServiceError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ExternalServiceError{Provider: p.name, Message: err.Error()}
}
