// Package util provides common utility functions used across scopegate.
// These utilities handle string manipulation and scope-set operations that
// don't fit into domain-specific packages.
package util

import (
	"strings"
	"unicode"
)

// SafeTruncate safely truncates a string to maxLen characters without
// panicking. This is used when logging sensitive data like tokens, where
// only a prefix should be shown.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Capitalize upper-cases the first rune of s. Used for the display-name
// projection in userinfo responses.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ParseScopes splits a space-separated scope string into scope tokens.
// An empty string yields an empty slice.
func ParseScopes(scope string) []string {
	return strings.Fields(scope)
}

// JoinScopes joins scope tokens into the space-separated wire form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ContainsScope reports whether scopes contains scope.
func ContainsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// MissingScope returns the first scope in requested that is not in allowed,
// and ok=false if every requested scope is allowed. This powers the
// fail-fast scope subset checks: the offending scope is named in the error.
func MissingScope(requested, allowed []string) (scope string, ok bool) {
	for _, r := range requested {
		if !ContainsScope(allowed, r) {
			return r, false
		}
	}
	return "", true
}
