package utils

import (
	"regexp"
	"strings"
)

// emailRegex is a simple regex for validating email format.
// It checks for: local-part@domain.tld format.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail checks if the given string is a valid email address format.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailRegex.MatchString(email)
}

// NormalizeIdentity trims surrounding whitespace and lowercases the domain part
// of an identity. The local part is kept as-is.
func NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	at := strings.LastIndex(identity, "@")
	if at < 0 {
		return identity
	}
	return identity[:at+1] + strings.ToLower(identity[at+1:])
}

// Dedupe returns items with duplicates and empty strings removed, keeping first
// occurrence order.
func Dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
