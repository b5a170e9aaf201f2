package util

import (
	"testing"
)

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"shorter than max", "short", 10, "short"},
		{"longer than max", "very-long-token-abc123", 8, "very-lon"},
		{"exact length", "exact", 5, "exact"},
		{"empty string", "", 5, ""},
		{"zero max", "anything", 0, ""},
		{"negative max", "test", -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeTruncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("SafeTruncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"alice", "Alice"},
		{"Bob", "Bob"},
		{"", ""},
		{"x", "X"},
	}

	for _, tt := range tests {
		if got := Capitalize(tt.input); got != tt.want {
			t.Errorf("Capitalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseScopes(t *testing.T) {
	got := ParseScopes("read write profile")
	if len(got) != 3 || got[0] != "read" || got[1] != "write" || got[2] != "profile" {
		t.Errorf("ParseScopes() = %v, want [read write profile]", got)
	}

	if got := ParseScopes(""); len(got) != 0 {
		t.Errorf("ParseScopes(\"\") = %v, want empty", got)
	}

	// Extra whitespace collapses
	if got := ParseScopes("  read   write "); len(got) != 2 {
		t.Errorf("ParseScopes with extra spaces = %v, want 2 tokens", got)
	}
}

func TestJoinScopes(t *testing.T) {
	if got := JoinScopes([]string{"read", "write"}); got != "read write" {
		t.Errorf("JoinScopes() = %q, want %q", got, "read write")
	}
	if got := JoinScopes(nil); got != "" {
		t.Errorf("JoinScopes(nil) = %q, want empty", got)
	}
}

func TestMissingScope(t *testing.T) {
	allowed := []string{"read", "write", "profile"}

	if scope, ok := MissingScope([]string{"read", "write"}, allowed); !ok || scope != "" {
		t.Errorf("MissingScope(subset) = (%q, %v), want (\"\", true)", scope, ok)
	}

	if scope, ok := MissingScope([]string{"read", "admin"}, allowed); ok || scope != "admin" {
		t.Errorf("MissingScope(superset) = (%q, %v), want (\"admin\", false)", scope, ok)
	}

	if _, ok := MissingScope(nil, allowed); !ok {
		t.Error("MissingScope(empty requested) should be ok")
	}
}

func TestContainsScope(t *testing.T) {
	scopes := []string{"read", "write"}
	if !ContainsScope(scopes, "read") {
		t.Error("ContainsScope should find read")
	}
	if ContainsScope(scopes, "admin") {
		t.Error("ContainsScope should not find admin")
	}
}
