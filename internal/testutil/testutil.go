// Package testutil provides testing utilities and helpers for scopegate.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/security"
	"github.com/scopegate/scopegate/storage"
	"github.com/scopegate/scopegate/storage/memory"
)

// Demo client secret used by the seeded fixture client. Seeded stores hash
// this with bcrypt; tests authenticate with the plaintext.
const DemoClientSecret = "demo-client-secret"

// NewSeededStore creates an in-memory store populated with the demo fixtures
// used across the test suite:
//
//	alice / password123  (read, write, profile)
//	bob   / secret456    (read)
//	admin / admin789     (read, write, profile, admin)
//	demo-client-id       (read, write, profile, admin)
func NewSeededStore(t *testing.T) *memory.Store {
	t.Helper()

	s := memory.NewWithInterval(time.Hour)
	t.Cleanup(s.Stop)

	ctx := context.Background()

	secretHash, err := security.HashClientSecret(DemoClientSecret)
	AssertNoError(t, err)

	AssertNoError(t, s.SaveClient(ctx, &storage.Client{
		ID:           "demo-client-id",
		SecretHash:   secretHash,
		RedirectURIs: []string{"http://localhost:8080/callback"},
		Scopes:       []string{"read", "write", "profile", "admin"},
		Name:         "Demo Client",
	}))

	users := []*storage.User{
		{Username: "alice", PasswordHash: security.HashPassword("password123"), Email: "alice@example.com", Scopes: []string{"read", "write", "profile"}},
		{Username: "bob", PasswordHash: security.HashPassword("secret456"), Email: "bob@example.com", Scopes: []string{"read"}},
		{Username: "admin", PasswordHash: security.HashPassword("admin789"), Email: "admin@example.com", Scopes: []string{"read", "write", "profile", "admin"}},
	}
	for _, u := range users {
		AssertNoError(t, s.SaveUser(ctx, u))
	}

	return s
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertErrorCode fails the test unless err is an *scopegate.OAuthError with
// the given protocol error code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %q error but got nil", code)
	}
	var oauthErr *scopegate.OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected OAuthError with code %q, got %T: %v", code, err, err)
	}
	if oauthErr.Code != code {
		t.Fatalf("error code = %q (%s), want %q", oauthErr.Code, oauthErr.Description, code)
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertTrue fails the test if condition is false
func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Errorf("assertion failed: %s", message)
	}
}

// AssertFalse fails the test if condition is true
func AssertFalse(t *testing.T, condition bool, message string) {
	t.Helper()
	if condition {
		t.Errorf("assertion failed: %s", message)
	}
}

// AssertStringContains fails the test if s does not contain substr
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("string %q does not contain %q", s, substr)
	}
}

// AssertScopes fails the test unless the space-separated scope string equals
// want in order.
func AssertScopes(t *testing.T, scope string, want ...string) {
	t.Helper()
	got := strings.Fields(scope)
	if len(got) != len(want) {
		t.Fatalf("scopes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scopes = %v, want %v", got, want)
		}
	}
}
