package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "alice@x.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"valid_dot", "user.name@example.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_no_user", "@example.com", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_spaces", "user @example.com", false},
		{"invalid_no_tld", "user@example", false},
		{"too_long", strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email), "Email: %s", tt.email)
		})
	}
}

func TestUsernameProblem(t *testing.T) {
	tests := []struct {
		name     string
		username string
		errMsg   string
	}{
		{"valid", "alice", ""},
		{"valid_underscore_digits", "qa_user_42", ""},
		{"too_short", "al", "at least 3"},
		{"too_long", strings.Repeat("a", 51), "at most 50"},
		{"dash", "alice-b", "letters, numbers and underscores"},
		{"space", "alice b", "letters, numbers and underscores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := UsernameProblem(tt.username)
			if tt.errMsg == "" {
				assert.Empty(t, msg)
			} else {
				assert.Contains(t, msg, tt.errMsg)
			}
		})
	}
}

func TestPasswordProblem(t *testing.T) {
	tests := []struct {
		name     string
		password string
		errMsg   string
	}{
		{"valid_no_special", "Passw0rd1", ""},
		{"valid_with_special", "Tr0ng!Pass#2024", ""},
		{"too_short", "Pass1", "at least 8 characters"},
		{"too_long", "Pa1" + strings.Repeat("x", 126), "at most 128 characters"},
		{"no_uppercase", "passw0rd1", "uppercase letter"},
		{"no_lowercase", "PASSW0RD1", "lowercase letter"},
		{"no_number", "Password", "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := PasswordProblem(tt.password)
			if tt.errMsg == "" {
				assert.Empty(t, msg)
			} else {
				assert.Contains(t, msg, tt.errMsg)
			}
		})
	}
}

func TestIsValidHTTPURL(t *testing.T) {
	assert.True(t, IsValidHTTPURL("https://acme.atlassian.net"))
	assert.True(t, IsValidHTTPURL("http://localhost:8080/jira"))
	assert.False(t, IsValidHTTPURL("acme.atlassian.net"))
	assert.False(t, IsValidHTTPURL("ftp://acme.atlassian.net"))
	assert.False(t, IsValidHTTPURL("https://"))
}

func TestJiraKeys(t *testing.T) {
	assert.True(t, IsValidProjectKey("QA"))
	assert.True(t, IsValidProjectKey("PROJ_2"))
	assert.False(t, IsValidProjectKey("qa"))
	assert.False(t, IsValidProjectKey("Q"))

	assert.True(t, IsValidIssueKey("PROJ-123"))
	assert.False(t, IsValidIssueKey("PROJ-"))
	assert.False(t, IsValidIssueKey("proj-1"))
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsValidUUID("model_settings"))
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean_text", "Hello World", "Hello World"},
		{"null_bytes", "Hello\x00World", "HelloWorld"},
		{"control_chars", "Hello\x01\x02World", "HelloWorld"},
		{"keep_newlines", "Given\nWhen\nThen", "Given\nWhen\nThen"},
		{"keep_tabs", "Hello\tWorld", "Hello\tWorld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeString(tt.input))
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"shorter_than_max", "Hello", 10, "Hello"},
		{"equal_to_max", "Hello", 5, "Hello"},
		{"longer_than_max", "Hello World", 5, "Hello"},
		{"multibyte", "héllo", 2, "hé"},
		{"zero_max", "Hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateString(tt.input, tt.maxLen))
		})
	}
}
