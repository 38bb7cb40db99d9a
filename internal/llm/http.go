package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 4 << 10

// postJSON sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses become an ExternalServiceError using extractMessage on the body.
func postJSON(ctx context.Context, client *http.Client, providerName, url string, headers map[string]string, body, out interface{}, extractMessage func([]byte) string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExternalServiceError{Provider: providerName, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := extractMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &ExternalServiceError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ExternalServiceError{Provider: providerName, StatusCode: resp.StatusCode, Message: "decoding response: " + err.Error()}
	}
	return nil
}
