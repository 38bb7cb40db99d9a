package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^\w+$`)

	// Jira keys: PROJ and PROJ-123
	projectKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,9}$`)
	issueKeyRegex   = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,9}-\d+$`)
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 50
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// UsernameProblem returns a user-facing reason the username is rejected, or "".
func UsernameProblem(username string) string {
	switch {
	case len(username) < MinUsernameLen:
		return "Username must be at least 3 characters"
	case len(username) > MaxUsernameLen:
		return "Username must be at most 50 characters"
	case !usernameRegex.MatchString(username):
		return "Username can only contain letters, numbers and underscores"
	}
	return ""
}

// PasswordProblem returns a user-facing reason the password is too weak, or "".
func PasswordProblem(password string) string {
	if len(password) < MinPasswordLen {
		return "Password must be at least 8 characters"
	}
	if len(password) > MaxPasswordLen {
		return "Password must be at most 128 characters"
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return "Password must contain at least one uppercase letter"
	}
	if !hasLower {
		return "Password must contain at least one lowercase letter"
	}
	if !hasNumber {
		return "Password must contain at least one number"
	}
	return ""
}

func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IsValidHTTPURL accepts absolute http(s) URLs with a host.
func IsValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func IsValidProjectKey(key string) bool {
	return projectKeyRegex.MatchString(key)
}

func IsValidIssueKey(key string) bool {
	return issueKeyRegex.MatchString(key)
}

// SanitizeString strips null bytes and control characters other than
// newlines, carriage returns and tabs.
func SanitizeString(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// TruncateString truncates a string to maxLen runes
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	return string(runes[:maxLen])
}
