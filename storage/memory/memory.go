// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scopegate/scopegate/instrumentation"
	"github.com/scopegate/scopegate/internal/util"
	"github.com/scopegate/scopegate/security"
	"github.com/scopegate/scopegate/storage"
)

const (
	// tokenLogLength is the number of characters to include when logging
	// tokens and codes. Enough uniqueness for debugging, nothing usable.
	tokenLogLength = 8
)

// Store is an in-memory implementation of all storage interfaces.
// It implements ClientRegistry, UserStore, CodeStore, AccessTokenStore,
// and RefreshTokenStore.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.Client
	users         map[string]*storage.User
	codes         map[string]*storage.AuthorizationCode
	accessTokens  map[string]*storage.AccessToken
	refreshTokens map[string]*storage.RefreshToken

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	codesCountAtomic         atomic.Int64
	accessTokensCountAtomic  atomic.Int64
	refreshTokensCountAtomic atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.ClientRegistry    = (*Store)(nil)
	_ storage.UserStore         = (*Store)(nil)
	_ storage.CodeStore         = (*Store)(nil)
	_ storage.AccessTokenStore  = (*Store)(nil)
	_ storage.RefreshTokenStore = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval.
// If cleanupInterval is 0 or negative, the default of 1 minute is used.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		users:           make(map[string]*storage.User),
		codes:           make(map[string]*storage.AuthorizationCode),
		accessTokens:    make(map[string]*storage.AccessToken),
		refreshTokens:   make(map[string]*storage.RefreshToken),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	// Start background cleanup
	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}

	// Seed atomic counters with current sizes
	s.codesCountAtomic.Store(int64(len(s.codes)))
	s.accessTokensCountAtomic.Store(int64(len(s.accessTokens)))
	s.refreshTokensCountAtomic.Store(int64(len(s.refreshTokens)))
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.codesCountAtomic.Load() },
			func() int64 { return s.accessTokensCountAtomic.Load() },
			func() int64 { return s.refreshTokensCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop gracefully stops the cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// ============================================================
// Seeding
// ============================================================

// SaveClient registers a client. Intended for startup seeding; clients are
// immutable once the server is serving requests.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("client and client ID are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
	return nil
}

// SaveUser registers a user account. Intended for startup seeding.
func (s *Store) SaveUser(ctx context.Context, user *storage.User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("user and username are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
	return nil
}

// ============================================================
// ClientRegistry Implementation
// ============================================================

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = storage.ErrClientNotFound
		return nil, err
	}
	return client, nil
}

// ValidateClientSecret validates a client's secret. One bcrypt comparison is
// performed whether or not the client exists, so timing does not reveal which
// client IDs are registered.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	ctx, span := s.startStorageSpan(ctx, "validate_client_secret")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "validate_client_secret", err, startTime)
	}()

	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()

	storedHash := ""
	if ok {
		storedHash = client.SecretHash
	}

	if compareErr := security.CompareClientSecret(storedHash, clientSecret); compareErr != nil {
		err = storage.ErrInvalidCredentials
		return err
	}
	return nil
}

// CountClients returns the number of registered clients
func (s *Store) CountClients(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), nil
}

// ============================================================
// UserStore Implementation
// ============================================================

// GetUser retrieves a user by username
func (s *Store) GetUser(ctx context.Context, username string) (*storage.User, error) {
	ctx, span := s.startStorageSpan(ctx, "get_user")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_user", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		err = storage.ErrUserNotFound
		return nil, err
	}
	return user, nil
}

// VerifyPassword checks a username/password pair. Unknown users and wrong
// passwords both return ErrInvalidCredentials, and the hash comparison runs
// either way so the two cases are not distinguishable from outside.
func (s *Store) VerifyPassword(ctx context.Context, username, password string) error {
	ctx, span := s.startStorageSpan(ctx, "verify_password")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "verify_password", err, startTime)
	}()

	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()

	storedHash := ""
	if ok {
		storedHash = user.PasswordHash
	}

	if !security.VerifyPasswordHash(storedHash, password) || !ok {
		err = storage.ErrInvalidCredentials
		return err
	}
	return nil
}

// CountUsers returns the number of user accounts
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveAuthorizationCode stores an issued authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		err = fmt.Errorf("authorization code cannot be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.codes[code.Code]
	s.codes[code.Code] = code
	if !existed {
		s.codesCountAtomic.Add(1)
	}

	s.logger.Debug("Authorization code saved",
		"code_prefix", util.SafeTruncate(code.Code, tokenLogLength),
		"client_id", code.ClientID,
		"expires_at", code.ExpiresAt)
	return nil
}

// TakeAuthorizationCode atomically retrieves and deletes a code. The lookup
// and delete happen under one write lock, so exactly one concurrent caller
// observes the code; everyone else gets ErrCodeNotFound. An expired code is
// deleted and reported as ErrCodeExpired.
func (s *Store) TakeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	ctx, span := s.startStorageSpan(ctx, "take_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "take_authorization_code", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[code]
	if !ok {
		err = storage.ErrCodeNotFound
		return nil, err
	}

	delete(s.codes, code)
	s.codesCountAtomic.Add(-1)

	if security.IsExpired(record.ExpiresAt) {
		s.logger.Debug("Authorization code expired at exchange",
			"code_prefix", util.SafeTruncate(code, tokenLogLength),
			"expired_at", record.ExpiresAt)
		err = storage.ErrCodeExpired
		return nil, err
	}

	return record, nil
}

// CountAuthorizationCodes returns the number of stored authorization codes
func (s *Store) CountAuthorizationCodes(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes), nil
}

// ============================================================
// AccessTokenStore Implementation
// ============================================================

// SaveAccessToken stores an access token
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) error {
	ctx, span := s.startStorageSpan(ctx, "save_access_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_access_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		err = fmt.Errorf("access token cannot be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.accessTokens[token.Token]
	s.accessTokens[token.Token] = token
	if !existed {
		s.accessTokensCountAtomic.Add(1)
	}

	s.logger.Debug("Access token saved",
		"token_prefix", util.SafeTruncate(token.Token, tokenLogLength),
		"client_id", token.ClientID,
		"expires_at", token.ExpiresAt)
	return nil
}

// GetAccessToken retrieves an access token. Expired records are returned as
// stored; introspection reports their attributes with active=false until the
// background sweep collects them.
func (s *Store) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	ctx, span := s.startStorageSpan(ctx, "get_access_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_access_token", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.accessTokens[token]
	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}
	return record, nil
}

// DeleteAccessToken removes an access token. Absent tokens are not an error.
func (s *Store) DeleteAccessToken(ctx context.Context, token string) error {
	ctx, span := s.startStorageSpan(ctx, "delete_access_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "delete_access_token", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accessTokens[token]; ok {
		delete(s.accessTokens, token)
		s.accessTokensCountAtomic.Add(-1)
	}
	return nil
}

// CountAccessTokens returns the number of stored access tokens
func (s *Store) CountAccessTokens(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accessTokens), nil
}

// ============================================================
// RefreshTokenStore Implementation
// ============================================================

// SaveRefreshToken stores a refresh token
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	ctx, span := s.startStorageSpan(ctx, "save_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_refresh_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		err = fmt.Errorf("refresh token cannot be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.refreshTokens[token.Token]
	s.refreshTokens[token.Token] = token
	if !existed {
		s.refreshTokensCountAtomic.Add(1)
	}

	s.logger.Debug("Refresh token saved",
		"token_prefix", util.SafeTruncate(token.Token, tokenLogLength),
		"client_id", token.ClientID)
	return nil
}

// GetRefreshToken retrieves a refresh token
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	ctx, span := s.startStorageSpan(ctx, "get_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_refresh_token", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.refreshTokens[token]
	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}
	return record, nil
}

// DeleteRefreshToken removes a refresh token. Absent tokens are not an error.
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	ctx, span := s.startStorageSpan(ctx, "delete_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "delete_refresh_token", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[token]; ok {
		delete(s.refreshTokens, token)
		s.refreshTokensCountAtomic.Add(-1)
	}
	return nil
}

// CountRefreshTokens returns the number of stored refresh tokens
func (s *Store) CountRefreshTokens(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refreshTokens), nil
}

// ============================================================
// Cleanup
// ============================================================

// cleanupLoop periodically removes expired authorization codes and access
// tokens. Refresh tokens never expire and are only removed by revocation.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired codes and access tokens in one pass
func (s *Store) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removedCodes := 0
	for code, record := range s.codes {
		if security.IsExpiredAt(record.ExpiresAt, now) {
			delete(s.codes, code)
			s.codesCountAtomic.Add(-1)
			removedCodes++
		}
	}

	removedTokens := 0
	for token, record := range s.accessTokens {
		if security.IsExpiredAt(record.ExpiresAt, now) {
			delete(s.accessTokens, token)
			s.accessTokensCountAtomic.Add(-1)
			removedTokens++
		}
	}

	if removedCodes > 0 || removedTokens > 0 {
		s.logger.Debug("Cleaned up expired credentials",
			"codes_removed", removedCodes,
			"access_tokens_removed", removedTokens)
	}
}

// ============================================================
// Instrumentation helpers
// ============================================================

// startStorageSpan starts a trace span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
