package models

// MaskSuffix follows the visible prefix of a masked secret.
const MaskSuffix = "..."

const (
	maskPrefixLen = 9
	maskMinHidden = 6
)

// MaskPrefix returns the part of a secret that may be stored and shown in
// clear: up to nine characters, always leaving at least six hidden.
func MaskPrefix(secret string) string {
	runes := []rune(secret)
	n := len(runes) - maskMinHidden
	if n > maskPrefixLen {
		n = maskPrefixLen
	}
	if n < 0 {
		n = 0
	}
	return string(runes[:n])
}

// Masked renders a stored prefix for display. Empty means no secret is set.
func Masked(prefix string, hasSecret bool) string {
	if !hasSecret {
		return ""
	}
	return prefix + MaskSuffix
}
