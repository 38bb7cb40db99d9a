package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hugh/testforge/pkg/config"
	"github.com/hugh/testforge/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T, srv *httptest.Server) *Bridge {
	t.Helper()
	return NewBridge(config.LLMConfig{
		TimeoutSeconds:   5,
		OpenAIBaseURL:    srv.URL + "/v1",
		AnthropicBaseURL: srv.URL,
		GeminiBaseURL:    srv.URL,
	}, util.DiscardLogger())
}

func TestBridge_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Feature: Login"}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	out, err := newTestBridge(t, srv).Complete(context.Background(),
		Credentials{Provider: "OpenAI", APIKey: "sk-test"},
		CompletionRequest{Model: "gpt-4o", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Feature: Login", out)
}

func TestBridge_OpenAIUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer srv.Close()

	_, err := newTestBridge(t, srv).Complete(context.Background(),
		Credentials{Provider: ProviderOpenAI, APIKey: "sk-bad"},
		CompletionRequest{Model: "gpt-4o", Prompt: "hi"})

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr), "got %v", err)
	assert.Equal(t, ProviderOpenAI, extErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, extErr.StatusCode)
	assert.Contains(t, extErr.Message, "Incorrect API key")
}

func TestBridge_Anthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1024, body.MaxTokens)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "Feature: "}, {"type": "text", "text": "Checkout"}]}`))
	}))
	defer srv.Close()

	out, err := newTestBridge(t, srv).Complete(context.Background(),
		Credentials{Provider: ProviderAnthropic, APIKey: "sk-ant"},
		CompletionRequest{Model: "claude-3-haiku-20240307", Prompt: "x", MaxTokens: 1024})
	require.NoError(t, err)
	assert.Equal(t, "Feature: Checkout", out)
}

func TestBridge_AnthropicError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer srv.Close()

	_, err := newTestBridge(t, srv).Complete(context.Background(),
		Credentials{Provider: ProviderAnthropic, APIKey: "k"},
		CompletionRequest{Model: "m", Prompt: "x"})

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, http.StatusTooManyRequests, extErr.StatusCode)
	assert.Equal(t, "slow down", extErr.Message)
}

func TestBridge_Gemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "prompt", body.Contents[0].Parts[0].Text)
		assert.Equal(t, DefaultMaxTokens, body.GenerationConfig.MaxOutputTokens)

		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "[]"}]}}]}`))
	}))
	defer srv.Close()

	out, err := newTestBridge(t, srv).Complete(context.Background(),
		Credentials{Provider: ProviderGemini, APIKey: "g-key"},
		CompletionRequest{Model: "gemini-2.0-flash", Prompt: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestBridge_GeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	_, err := newTestBridge(t, srv).Complete(context.Background(),
		Credentials{Provider: ProviderGemini, APIKey: "g"},
		CompletionRequest{Model: "gemini-2.0-flash", Prompt: "p"})

	var extErr *ExternalServiceError
	assert.True(t, errors.As(err, &extErr))
}

func TestBridge_Temperature(t *testing.T) {
	var received float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Temperature      *float64 `json:"temperature"`
			GenerationConfig struct {
				Temperature *float64 `json:"temperature"`
			} `json:"generationConfig"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		received = -1
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			if body.Temperature != nil {
				received = *body.Temperature
			}
			_, _ = w.Write([]byte(`{"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}]}`))
		case strings.HasSuffix(r.URL.Path, "/messages"):
			if body.Temperature != nil {
				received = *body.Temperature
			}
			_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}]}`))
		default:
			if body.GenerationConfig.Temperature != nil {
				received = *body.GenerationConfig.Temperature
			}
			_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
		}
	}))
	defer srv.Close()

	b := newTestBridge(t, srv)
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		t.Run(provider+" zero", func(t *testing.T) {
			_, err := b.Complete(context.Background(),
				Credentials{Provider: provider, APIKey: "k"},
				CompletionRequest{Model: "m", Prompt: "p", Temperature: Float(0)})
			require.NoError(t, err)
			assert.InDelta(t, 0, received, 1e-6)
		})

		t.Run(provider+" explicit", func(t *testing.T) {
			_, err := b.Complete(context.Background(),
				Credentials{Provider: provider, APIKey: "k"},
				CompletionRequest{Model: "m", Prompt: "p", Temperature: Float(0.2)})
			require.NoError(t, err)
			assert.InDelta(t, 0.2, received, 1e-6)
		})

		t.Run(provider+" default", func(t *testing.T) {
			_, err := b.Complete(context.Background(),
				Credentials{Provider: provider, APIKey: "k"},
				CompletionRequest{Model: "m", Prompt: "p"})
			require.NoError(t, err)
			assert.InDelta(t, DefaultTemperature, received, 1e-6)
		})
	}
}

func TestBridge_Validation(t *testing.T) {
	b := NewBridge(config.LLMConfig{TimeoutSeconds: 1}, util.DiscardLogger())
	ctx := context.Background()

	_, err := b.Complete(ctx, Credentials{Provider: "cohere", APIKey: "k"}, CompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = b.Complete(ctx, Credentials{Provider: ProviderOpenAI}, CompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = b.Complete(ctx, Credentials{Provider: ProviderOpenAI, APIKey: "k"}, CompletionRequest{})
	assert.Error(t, err)
}

func TestBridge_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newTestBridge(t, srv).Complete(ctx,
		Credentials{Provider: ProviderAnthropic, APIKey: "k"},
		CompletionRequest{Model: "m", Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrompts(t *testing.T) {
	p, err := GherkinFromScenario("  user logs in with valid credentials ")
	require.NoError(t, err)
	assert.Contains(t, p, "Scenario: user logs in with valid credentials\n")
	assert.True(t, strings.HasSuffix(p, "Generate valid Gherkin syntax:"))

	p, err = GherkinForFeature("Checkout", "Pay with card", 0)
	require.NoError(t, err)
	assert.Contains(t, p, "Generate 1 Gherkin scenario(s) for the feature 'Checkout'")
	assert.True(t, strings.HasSuffix(p, "Feature Description:\nPay with card"))

	p, err = TestCasesForRequirement(TestCasePrompt{
		Requirement: "Requirement summary: Login",
		ProjectKey:  `QA"X`,
		VersionName: "1.0",
		FolderPath:  "/Auth",
		Count:       3,
	})
	require.NoError(t, err)
	assert.Contains(t, p, "Generate 3 test case(s)")
	assert.Contains(t, p, `"key": "QA\"X"`)
	assert.Contains(t, p, `"xray_test_repository_folder": "/Auth"`)
	assert.Contains(t, p, "written in English")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"prose", "Here you go:\n{\"a\":1}\nEnjoy", `{"a":1}`},
		{"no json", "nothing", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "Feature: X", StripCodeFences("```gherkin\nFeature: X\n```"))
	assert.Equal(t, "Feature: X", StripCodeFences("  Feature: X  "))
}
