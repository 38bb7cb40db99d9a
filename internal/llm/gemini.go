package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type geminiProvider struct {
	baseURL string
	client  *http.Client
}

func newGeminiProvider(baseURL string, client *http.Client) *geminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &geminiProvider{baseURL: baseURL, client: client}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (p *geminiProvider) complete(ctx context.Context, creds Credentials, req CompletionRequest) (string, error) {
	base := p.baseURL
	if creds.BaseURL != "" {
		base = creds.BaseURL
	}
	endpoint := strings.TrimRight(base, "/") + "/v1beta/models/" + url.PathEscape(req.Model) + ":generateContent"

	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	body.GenerationConfig.Temperature = req.temperature()
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens

	headers := map[string]string{"x-goog-api-key": creds.APIKey}

	var out geminiResponse
	if err := postJSON(ctx, p.client, ProviderGemini, endpoint, headers, body, &out, geminiErrorMessage); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 {
		return "", &ExternalServiceError{Provider: ProviderGemini, Message: "response contained no candidates"}
	}
	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func geminiErrorMessage(raw []byte) string {
	var e struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
