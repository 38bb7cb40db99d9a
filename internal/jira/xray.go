package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hugh/testforge/internal/llm"
)

const (
	xrayServiceName = "xray"
	maxErrorBody    = 4 << 10
)

var ErrNoTestCases = errors.New("no test cases to import")

// TestCase is one entry of the Xray bulk test import format.
type TestCase struct {
	TestType string     `json:"testtype"`
	Fields   TestFields `json:"fields"`
	Steps    []TestStep `json:"steps"`
	Folder   string     `json:"xray_test_repository_folder,omitempty"`
}

type TestFields struct {
	Project     ProjectRef   `json:"project"`
	FixVersions []VersionRef `json:"fixVersions,omitempty"`
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
}

type ProjectRef struct {
	Key string `json:"key"`
}

type VersionRef struct {
	Name string `json:"name"`
}

type TestStep struct {
	Action string `json:"action"`
	Data   string `json:"data"`
	Result string `json:"result"`
}

// ImportResult is the asynchronous job Xray creates for a bulk import.
type ImportResult struct {
	JobID string `json:"jobId"`
}

type XrayClient struct {
	baseURL string
	http    *http.Client
}

func NewXrayClient(baseURL string, timeout time.Duration) *XrayClient {
	return &XrayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Authenticate exchanges client credentials for a bearer token.
func (c *XrayClient) Authenticate(ctx context.Context, clientID, clientSecret string) (string, error) {
	body := map[string]string{"client_id": clientID, "client_secret": clientSecret}

	raw, err := c.post(ctx, "/api/v2/authenticate", "", body)
	if err != nil {
		return "", err
	}

	// The token comes back as a bare JSON string.
	token := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if token == "" {
		return "", &llm.ExternalServiceError{Provider: xrayServiceName, Message: "empty token"}
	}
	return token, nil
}

// ImportTests posts a batch to the bulk import endpoint.
func (c *XrayClient) ImportTests(ctx context.Context, token string, tests []TestCase) (*ImportResult, error) {
	if len(tests) == 0 {
		return nil, ErrNoTestCases
	}

	raw, err := c.post(ctx, "/api/v2/import/test/bulk", token, tests)
	if err != nil {
		return nil, err
	}

	var result ImportResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &llm.ExternalServiceError{Provider: xrayServiceName, Message: "decoding import response: " + err.Error()}
	}
	return &result, nil
}

func (c *XrayClient) post(ctx context.Context, path, token string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &llm.ExternalServiceError{Provider: xrayServiceName, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return nil, &llm.ExternalServiceError{Provider: xrayServiceName, StatusCode: resp.StatusCode, Message: text}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.ExternalServiceError{Provider: xrayServiceName, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return raw, nil
}
