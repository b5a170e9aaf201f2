// Package gateway implements the resource gateway: scope-guarded access to
// protected operations backed by a short-TTL introspection cache.
//
// The cache is advisory. A revoked token keeps working at a gateway holding a
// fresh cache entry until that entry's TTL lapses; this staleness window is a
// deliberate availability trade-off, bounded by the TTL, not a defect.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/instrumentation"
	"github.com/scopegate/scopegate/internal/util"
	"github.com/scopegate/scopegate/security"
)

// Introspector answers token introspection queries. In the embedded topology
// this is the authserver.Server itself; in the decoupled topology it is an
// HTTPIntrospector talking to a remote authorization server.
type Introspector interface {
	Introspect(ctx context.Context, token string) (*scopegate.IntrospectionResponse, error)
}

// StatsSource reports store sizes for the admin resource. Optional: without
// one the admin resource reports zeroes.
type StatsSource interface {
	CountUsers(ctx context.Context) (int, error)
	CountClients(ctx context.Context) (int, error)
	CountAccessTokens(ctx context.Context) (int, error)
	CountRefreshTokens(ctx context.Context) (int, error)
}

// UserContext is the caller identity a passed guard injects into handlers.
// Username is empty for tokens minted by the client_credentials grant.
type UserContext struct {
	Username string
	Scopes   []string
}

// HasScope reports whether the caller holds the named scope
func (u *UserContext) HasScope(scope string) bool {
	return util.ContainsScope(u.Scopes, scope)
}

// HandlerFunc is a protected operation invoked with the validated caller.
type HandlerFunc func(ctx context.Context, user *UserContext) (any, error)

// ProtectedHandler is a HandlerFunc wrapped by RequireScope: it takes the raw
// bearer token and performs validation and scope checking before the inner
// handler runs.
type ProtectedHandler func(ctx context.Context, token string) (any, error)

// Config holds gateway configuration
type Config struct {
	// CacheTTL is how long introspection results are served from cache.
	// Default: 300 seconds.
	CacheTTL time.Duration

	// IntrospectionTimeout bounds each remote introspection call. Timeouts
	// are transient failures: the protected operation fails and nothing is
	// cached. Default: 5 seconds.
	IntrospectionTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = scopegate.DefaultIntrospectionCacheTTL
	}
	if c.IntrospectionTimeout <= 0 {
		c.IntrospectionTimeout = scopegate.DefaultIntrospectionTimeout
	}
}

// cacheEntry is a cached introspection result. Inactive results are cached
// too, so repeated presentation of a dead token doesn't re-hit the network,
// but they still fail every call.
type cacheEntry struct {
	info        *scopegate.IntrospectionResponse
	cachedUntil time.Time
}

// Gateway fronts protected operations with token validation and scope
// enforcement.
type Gateway struct {
	introspector Introspector
	config       Config

	mu    sync.RWMutex
	cache map[string]*cacheEntry

	// Collapses concurrent introspections of the same token into one
	// remote call.
	group singleflight.Group

	stats StatsSource

	docsMu    sync.RWMutex
	documents map[string]*Document

	logger  *slog.Logger
	auditor *security.Auditor

	instrumentation *instrumentation.Instrumentation
}

// New creates a gateway over the given introspector.
func New(introspector Introspector, config Config) (*Gateway, error) {
	if introspector == nil {
		return nil, fmt.Errorf("introspector is required")
	}
	config.applyDefaults()

	logger := slog.Default()
	return &Gateway{
		introspector: introspector,
		config:       config,
		cache:        make(map[string]*cacheEntry),
		documents:    make(map[string]*Document),
		logger:       logger,
		auditor:      security.NewAuditor(logger, true),
	}, nil
}

// SetLogger sets a custom logger. The audit logger follows it.
func (g *Gateway) SetLogger(logger *slog.Logger) {
	g.logger = logger
	g.auditor = security.NewAuditor(logger, true)
}

// SetInstrumentation sets OpenTelemetry instrumentation for the gateway
func (g *Gateway) SetInstrumentation(inst *instrumentation.Instrumentation) {
	g.instrumentation = inst
}

// SetStatsSource wires the store whose sizes the admin resource reports
func (g *Gateway) SetStatsSource(stats StatsSource) {
	g.stats = stats
}

// Validate resolves a token to its introspection info, serving from cache
// when a fresh entry exists. An inactive result fails with invalid_token on
// every call, cached or not. Transient introspection failures (including
// timeouts) fail the operation and are never cached.
func (g *Gateway) Validate(ctx context.Context, token string) (*scopegate.IntrospectionResponse, error) {
	if token == "" {
		return nil, scopegate.ErrInvalidToken("no token provided")
	}

	if info, ok := g.cachedInfo(token); ok {
		if g.instrumentation != nil {
			g.instrumentation.Metrics().RecordCacheHit(ctx)
		}
		return g.checkActive(info)
	}

	if g.instrumentation != nil {
		g.instrumentation.Metrics().RecordCacheMiss(ctx)
	}

	// Concurrent validations of the same token share one remote call;
	// independent tokens proceed in parallel. The flight is detached from
	// the initiating caller's context: its cancellation must not fail the
	// siblings waiting on the same result. The timeout still bounds it.
	v, err, _ := g.group.Do(token, func() (any, error) {
		introspectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.config.IntrospectionTimeout)
		defer cancel()

		info, err := g.introspector.Introspect(introspectCtx, token)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.cache[token] = &cacheEntry{
			info:        info,
			cachedUntil: time.Now().Add(g.config.CacheTTL),
		}
		g.mu.Unlock()

		return info, nil
	})
	if err != nil {
		g.logger.Warn("Token introspection failed", "error", err)
		return nil, scopegate.ErrServerError("token introspection unavailable")
	}

	return g.checkActive(v.(*scopegate.IntrospectionResponse))
}

// cachedInfo returns the cached introspection result if it is still fresh
func (g *Gateway) cachedInfo(token string) (*scopegate.IntrospectionResponse, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.cache[token]
	if !ok || !time.Now().Before(entry.cachedUntil) {
		return nil, false
	}
	return entry.info, true
}

func (g *Gateway) checkActive(info *scopegate.IntrospectionResponse) (*scopegate.IntrospectionResponse, error) {
	if !info.Active {
		return nil, scopegate.ErrInvalidToken("token is inactive")
	}
	return info, nil
}

// Invalidate drops a token's cache entry, forcing the next Validate to
// re-introspect. Callers that learn of a revocation out of band can use this
// to close the staleness window early.
func (g *Gateway) Invalidate(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cache, token)
}

// FlushCache drops every cache entry
func (g *Gateway) FlushCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = make(map[string]*cacheEntry)
}

// RequireScope wraps a handler in a scope guard. The returned handler
// validates the bearer token, rejects it when the required scope is absent,
// and otherwise invokes the inner handler with the caller's identity.
//
// Authentication failure (invalid_token) and authorization failure
// (insufficient_scope) are reported distinctly so callers can react
// differently: re-authenticate versus request broader scope.
func (g *Gateway) RequireScope(required string, handler HandlerFunc) ProtectedHandler {
	return func(ctx context.Context, token string) (any, error) {
		info, err := g.Validate(ctx, token)
		if err != nil {
			return nil, err
		}

		scopes := util.ParseScopes(info.Scope)
		if !util.ContainsScope(scopes, required) {
			return nil, scopegate.ErrInsufficientScope(fmt.Sprintf("requires %q scope", required))
		}

		return handler(ctx, &UserContext{
			Username: info.Username,
			Scopes:   scopes,
		})
	}
}

// BatchResult is the outcome of one token in a ValidateBatch call
type BatchResult struct {
	Token string
	Info  *scopegate.IntrospectionResponse
	Err   error
}

// ValidateBatch validates many tokens concurrently. Each token gets its own
// result; a failure for one token never affects its siblings.
func (g *Gateway) ValidateBatch(ctx context.Context, tokens []string) []BatchResult {
	results := make([]BatchResult, len(tokens))

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			info, err := g.Validate(ctx, token)
			results[i] = BatchResult{Token: token, Info: info, Err: err}
		}(i, token)
	}
	wg.Wait()

	return results
}
