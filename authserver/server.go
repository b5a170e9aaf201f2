// Package authserver implements the OAuth 2.0 authorization server: the
// authorize, token, introspect, revoke, userinfo, and metadata operations
// over pluggable storage backends.
package authserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scopegate/scopegate"
	"github.com/scopegate/scopegate/instrumentation"
	"github.com/scopegate/scopegate/security"
	"github.com/scopegate/scopegate/storage"
)

// Config holds authorization server configuration
type Config struct {
	// Issuer is the authorization server's issuer identifier URL,
	// used in discovery metadata (e.g., "http://localhost:9000")
	Issuer string

	// AuthorizationCodeTTL is how long issued codes are redeemable.
	// Default: 600 seconds.
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is the lifetime of issued access tokens.
	// Default: 3600 seconds.
	AccessTokenTTL time.Duration

	// SupportedScopes lists the scopes advertised in discovery metadata
	SupportedScopes []string
}

// applyDefaults fills in zero-valued configuration fields
func (c *Config) applyDefaults() {
	if c.AuthorizationCodeTTL <= 0 {
		c.AuthorizationCodeTTL = scopegate.DefaultAuthorizationCodeTTL
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = scopegate.DefaultAccessTokenTTL
	}
	if len(c.SupportedScopes) == 0 {
		c.SupportedScopes = []string{"read", "write", "profile", "admin"}
	}
}

// Stores bundles the storage interfaces the server operates over.
// A single implementation (like memory.Store) may satisfy all of them.
type Stores struct {
	Clients       storage.ClientRegistry
	Users         storage.UserStore
	Codes         storage.CodeStore
	AccessTokens  storage.AccessTokenStore
	RefreshTokens storage.RefreshTokenStore
}

// Server is the authorization server. All operations return structured
// *scopegate.OAuthError values on protocol failures.
type Server struct {
	clients       storage.ClientRegistry
	users         storage.UserStore
	codes         storage.CodeStore
	accessTokens  storage.AccessTokenStore
	refreshTokens storage.RefreshTokenStore

	config  Config
	logger  *slog.Logger
	auditor *security.Auditor

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

// New creates an authorization server over the given stores.
func New(stores Stores, config Config) (*Server, error) {
	if stores.Clients == nil || stores.Users == nil || stores.Codes == nil ||
		stores.AccessTokens == nil || stores.RefreshTokens == nil {
		return nil, fmt.Errorf("all stores are required")
	}
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	config.applyDefaults()

	logger := slog.Default()
	return &Server{
		clients:       stores.Clients,
		users:         stores.Users,
		codes:         stores.Codes,
		accessTokens:  stores.AccessTokens,
		refreshTokens: stores.RefreshTokens,
		config:        config,
		logger:        logger,
		auditor:       security.NewAuditor(logger, true),
	}, nil
}

// SetLogger sets a custom logger. The audit logger follows it.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
	s.auditor = security.NewAuditor(logger, true)
}

// SetInstrumentation sets OpenTelemetry instrumentation for the server
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("authserver")
	}
}

// Config returns a copy of the server's effective configuration
func (s *Server) Config() Config {
	return s.config
}

// startSpan starts a trace span for a server operation
func (s *Server) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, "authserver."+operation,
		trace.WithAttributes(attribute.String("operation", operation)))
}

// Metadata returns the RFC 8414 authorization server metadata document.
func (s *Server) Metadata() *scopegate.ServerMetadata {
	return &scopegate.ServerMetadata{
		Issuer:                s.config.Issuer,
		AuthorizationEndpoint: s.config.Issuer + "/authorize",
		TokenEndpoint:         s.config.Issuer + "/token",
		IntrospectionEndpoint: s.config.Issuer + "/introspect",
		RevocationEndpoint:    s.config.Issuer + "/revoke",
		ResponseTypesSupported: []string{
			"code",
		},
		GrantTypesSupported: []string{
			scopegate.GrantTypeAuthorizationCode,
			scopegate.GrantTypeRefreshToken,
			scopegate.GrantTypeClientCredentials,
		},
		ScopesSupported:                   s.config.SupportedScopes,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
	}
}
