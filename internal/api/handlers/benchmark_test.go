package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/jira"
	"github.com/hugh/testforge/internal/llm"
	"github.com/hugh/testforge/internal/store"
)

func benchAPIKeys(n int) []models.APIKey {
	keys := make([]models.APIKey, n)
	now := time.Now()
	for i := range keys {
		keys[i] = models.APIKey{
			Name:           "key-" + string(rune('a'+i%26)),
			KeyType:        "openai",
			EncryptedValue: strings.Repeat("x", 200),
			KeyPrefix:      "sk-abc123",
			IsActive:       true,
		}
		keys[i].ID = uuid.New()
		keys[i].CreatedAt = now
		keys[i].UpdatedAt = now
	}
	return keys
}

// BenchmarkJSONSerialization benchmarks JSON encoding of common response types
func BenchmarkJSONSerialization(b *testing.B) {
	b.Run("ErrorResponse", func(b *testing.B) {
		resp := dto.ErrorResponse{
			Error: "Validation failed",
			Details: map[string]string{
				"name":     "Name is required",
				"provider": "Unsupported provider",
			},
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("APIKeyList", func(b *testing.B) {
		resp := dto.NewAPIKeyList(benchAPIKeys(20))
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("TestCases", func(b *testing.B) {
		cases := make([]jira.TestCase, 20)
		for i := range cases {
			cases[i] = jira.TestCase{
				TestType: "Manual",
				Fields: jira.TestFields{
					Project:     jira.ProjectRef{Key: "PROJ"},
					FixVersions: []jira.VersionRef{{Name: "1.0"}},
					Summary:     "Test case: login with valid credentials",
					Description: "Goal: verify that a registered user can log in",
				},
				Steps: []jira.TestStep{
					{Action: "Open the login page", Result: "The form is shown"},
					{Action: "Submit valid credentials", Data: "alice / secret", Result: "The dashboard is shown"},
				},
				Folder: "/Login",
			}
		}
		resp := dto.NewTestCasesResponse(cases)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("AuthResponse", func(b *testing.B) {
		user := &models.User{Username: "alice", Email: "alice@example.com", FirstName: "Alice", IsActive: true}
		user.ID = uuid.New()
		resp := dto.AuthResponse{
			Token:     "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoiMTIzIn0.abc123",
			ExpiresAt: time.Now().Format(time.RFC3339),
			User:      dto.NewUserDTO(user),
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})
}

// BenchmarkRequestValidation benchmarks request validation
func BenchmarkRequestValidation(b *testing.B) {
	b.Run("RegisterRequest", func(b *testing.B) {
		req := dto.RegisterRequest{
			Username:        "alice",
			Email:           "alice@example.com",
			Password:        "Str0ngPass",
			ConfirmPassword: "Str0ngPass",
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("FeatureGherkinRequest", func(b *testing.B) {
		req := dto.FeatureGherkinRequest{
			FeatureName:         "Checkout",
			ScenarioDescription: strings.Repeat("Paying with a saved card. ", 20),
			ScenarioCount:       5,
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("DecodeCreateAgentSetting", func(b *testing.B) {
		body := `{"name":"writer","provider":"anthropic","model":"claude-3-5-sonnet","temperature":0.2,"api_key":"sk-ant-0123456789"}`
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.CreateAgentSettingRequest
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/agent-settings", strings.NewReader(body))
			_ = decode(w, r, &req)
		}
	})
}

// BenchmarkWriteError benchmarks mapping service errors onto responses
func BenchmarkWriteError(b *testing.B) {
	errs := map[string]error{
		"NotFound":   store.ErrNotFound,
		"Validation": &store.ValidationError{Fields: map[string]string{"name": "Name is required"}},
		"Upstream":   &llm.ExternalServiceError{Provider: "openai", StatusCode: 429, Message: "rate limited"},
		"Wrapped":    errors.Join(errors.New("resolving agent"), llm.ErrMissingAPIKey),
	}
	r := httptest.NewRequest(http.MethodGet, "/api/run-agent", nil)
	for name, err := range errs {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				w := httptest.NewRecorder()
				writeError(w, r, err)
			}
		})
	}
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"store validation", &store.ValidationError{Fields: map[string]string{"name": "x"}}, http.StatusBadRequest},
		{"missing key", llm.ErrMissingAPIKey, http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"no batch yet", jira.ErrNoTestCases, http.StatusBadRequest},
		{"duplicate", store.ErrDuplicateName, http.StatusConflict},
		{"upstream", &llm.ExternalServiceError{Provider: "jira", StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, r, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(w.Body.String(), "disk on fire") {
				t.Error("internal error details leaked to the client")
			}
		})
	}
}
