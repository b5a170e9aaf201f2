package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scopegate/scopegate/security"
	"github.com/scopegate/scopegate/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewWithInterval(time.Hour) // keep cleanup out of the way
	t.Cleanup(s.Stop)
	return s
}

func seedClient(t *testing.T, s *Store, id, secret string) *storage.Client {
	t.Helper()
	hash, err := security.HashClientSecret(secret)
	if err != nil {
		t.Fatalf("HashClientSecret: %v", err)
	}
	client := &storage.Client{
		ID:           id,
		SecretHash:   hash,
		RedirectURIs: []string{"http://localhost:8080/callback"},
		Scopes:       []string{"read", "write", "profile"},
		Name:         "Test Client",
	}
	if err := s.SaveClient(context.Background(), client); err != nil {
		t.Fatalf("SaveClient: %v", err)
	}
	return client
}

func seedUser(t *testing.T, s *Store, username, password string, scopes []string) *storage.User {
	t.Helper()
	user := &storage.User{
		Username:     username,
		PasswordHash: security.HashPassword(password),
		Email:        username + "@example.com",
		Scopes:       scopes,
	}
	if err := s.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	return user
}

func TestClientRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClient(t, s, "demo-client-id", "demo-client-secret")

	t.Run("get existing client", func(t *testing.T) {
		client, err := s.GetClient(ctx, "demo-client-id")
		if err != nil {
			t.Fatalf("GetClient: %v", err)
		}
		if client.Name != "Test Client" {
			t.Errorf("unexpected client name %q", client.Name)
		}
	})

	t.Run("get unknown client", func(t *testing.T) {
		_, err := s.GetClient(ctx, "nope")
		if !errors.Is(err, storage.ErrClientNotFound) {
			t.Errorf("expected ErrClientNotFound, got %v", err)
		}
	})

	t.Run("validate correct secret", func(t *testing.T) {
		if err := s.ValidateClientSecret(ctx, "demo-client-id", "demo-client-secret"); err != nil {
			t.Errorf("ValidateClientSecret: %v", err)
		}
	})

	t.Run("validate wrong secret", func(t *testing.T) {
		err := s.ValidateClientSecret(ctx, "demo-client-id", "wrong")
		if !errors.Is(err, storage.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("validate unknown client gives same error", func(t *testing.T) {
		err := s.ValidateClientSecret(ctx, "ghost", "demo-client-secret")
		if !errors.Is(err, storage.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountClients(ctx)
		if err != nil || n != 1 {
			t.Errorf("CountClients = (%d, %v), want (1, nil)", n, err)
		}
	})
}

func TestVerifyPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice", "password123", []string{"read", "write", "profile"})

	if err := s.VerifyPassword(ctx, "alice", "password123"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}

	wrongPw := s.VerifyPassword(ctx, "alice", "bad")
	unknownUser := s.VerifyPassword(ctx, "mallory", "password123")

	if !errors.Is(wrongPw, storage.ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", wrongPw)
	}
	if !errors.Is(unknownUser, storage.ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", unknownUser)
	}
	// The two failure modes must be indistinguishable
	if wrongPw.Error() != unknownUser.Error() {
		t.Errorf("failure modes differ: %q vs %q", wrongPw, unknownUser)
	}
}

func TestTakeAuthorizationCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := &storage.AuthorizationCode{
		Code:        "test-code",
		ClientID:    "demo-client-id",
		Username:    "alice",
		Scopes:      []string{"read"},
		RedirectURI: "http://localhost:8080/callback",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	if err := s.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("SaveAuthorizationCode: %v", err)
	}

	got, err := s.TakeAuthorizationCode(ctx, "test-code")
	if err != nil {
		t.Fatalf("TakeAuthorizationCode: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("unexpected username %q", got.Username)
	}

	// Second take must fail: the code was consumed
	_, err = s.TakeAuthorizationCode(ctx, "test-code")
	if !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("replay: expected ErrCodeNotFound, got %v", err)
	}
}

func TestTakeAuthorizationCodeExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := &storage.AuthorizationCode{
		Code:      "stale-code",
		ClientID:  "demo-client-id",
		Username:  "alice",
		CreatedAt: time.Now().Add(-20 * time.Minute),
		ExpiresAt: time.Now().Add(-10 * time.Minute),
	}
	if err := s.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("SaveAuthorizationCode: %v", err)
	}

	_, err := s.TakeAuthorizationCode(ctx, "stale-code")
	if !errors.Is(err, storage.ErrCodeExpired) {
		t.Errorf("expected ErrCodeExpired, got %v", err)
	}

	// Expired code is deleted, not left behind
	_, err = s.TakeAuthorizationCode(ctx, "stale-code")
	if !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("after expiry take: expected ErrCodeNotFound, got %v", err)
	}
}

func TestTakeAuthorizationCodeConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := &storage.AuthorizationCode{
		Code:      "contested-code",
		ClientID:  "demo-client-id",
		Username:  "alice",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := s.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("SaveAuthorizationCode: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	var successes, failures int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.TakeAuthorizationCode(ctx, "contested-code")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures++
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful take, got %d", successes)
	}
	if failures != workers-1 {
		t.Errorf("expected %d failed takes, got %d", workers-1, failures)
	}
}

func TestAccessTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := &storage.AccessToken{
		Token:     "at-1",
		ClientID:  "demo-client-id",
		Username:  "alice",
		Scopes:    []string{"read"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.SaveAccessToken(ctx, token); err != nil {
		t.Fatalf("SaveAccessToken: %v", err)
	}

	got, err := s.GetAccessToken(ctx, "at-1")
	if err != nil {
		t.Fatalf("GetAccessToken: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("unexpected username %q", got.Username)
	}

	if err := s.DeleteAccessToken(ctx, "at-1"); err != nil {
		t.Fatalf("DeleteAccessToken: %v", err)
	}
	if _, err := s.GetAccessToken(ctx, "at-1"); !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound after delete, got %v", err)
	}

	// Deleting an absent token is not an error
	if err := s.DeleteAccessToken(ctx, "at-1"); err != nil {
		t.Errorf("second delete should be idempotent, got %v", err)
	}
}

func TestGetAccessTokenReturnsExpiredRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := &storage.AccessToken{
		Token:     "expired-at",
		ClientID:  "demo-client-id",
		Username:  "alice",
		Scopes:    []string{"read"},
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := s.SaveAccessToken(ctx, token); err != nil {
		t.Fatalf("SaveAccessToken: %v", err)
	}

	// The record itself is still readable; the caller decides activeness
	got, err := s.GetAccessToken(ctx, "expired-at")
	if err != nil {
		t.Fatalf("GetAccessToken should return expired record, got %v", err)
	}
	if !security.IsExpired(got.ExpiresAt) {
		t.Error("record should be past expiry")
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := &storage.RefreshToken{
		Token:     "rt-1",
		ClientID:  "demo-client-id",
		Username:  "alice",
		Scopes:    []string{"read", "write"},
		CreatedAt: time.Now(),
	}
	if err := s.SaveRefreshToken(ctx, token); err != nil {
		t.Fatalf("SaveRefreshToken: %v", err)
	}

	got, err := s.GetRefreshToken(ctx, "rt-1")
	if err != nil {
		t.Fatalf("GetRefreshToken: %v", err)
	}
	if len(got.Scopes) != 2 {
		t.Errorf("unexpected scopes %v", got.Scopes)
	}

	if err := s.DeleteRefreshToken(ctx, "rt-1"); err != nil {
		t.Fatalf("DeleteRefreshToken: %v", err)
	}
	if _, err := s.GetRefreshToken(ctx, "rt-1"); !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound after delete, got %v", err)
	}
	if err := s.DeleteRefreshToken(ctx, "rt-1"); err != nil {
		t.Errorf("second delete should be idempotent, got %v", err)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:      "live",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	_ = s.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:      "dead",
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	_ = s.SaveAccessToken(ctx, &storage.AccessToken{
		Token:     "live-at",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	_ = s.SaveAccessToken(ctx, &storage.AccessToken{
		Token:     "dead-at",
		ExpiresAt: time.Now().Add(-time.Hour),
	})

	s.cleanup()

	if n, _ := s.CountAuthorizationCodes(ctx); n != 1 {
		t.Errorf("codes after cleanup = %d, want 1", n)
	}
	if n, _ := s.CountAccessTokens(ctx); n != 1 {
		t.Errorf("access tokens after cleanup = %d, want 1", n)
	}
	if _, err := s.GetAccessToken(ctx, "live-at"); err != nil {
		t.Errorf("live token should survive cleanup: %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewWithInterval(time.Hour)
	s.Stop()
	s.Stop() // must not panic
}
