// Package storage defines interfaces for persisting OAuth clients, users,
// authorization codes, and tokens.
package storage

import (
	"context"
	"time"
)

// Client represents a registered OAuth client.
// Clients are loaded once at startup and never mutated afterwards.
type Client struct {
	ID           string
	SecretHash   string // bcrypt hash
	RedirectURIs []string
	Scopes       []string
	Name         string
}

// AllowsRedirectURI reports whether uri is exactly one of the client's
// registered redirect URIs.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// User represents a user account.
// Users are loaded once at startup and never mutated afterwards.
type User struct {
	Username     string
	PasswordHash string // sha256 hex; see security.HashPassword for the caveat
	Email        string
	Scopes       []string
}

// AuthorizationCode is a single-use credential binding client, user, scope,
// and redirect URI. It is created by authorize and destroyed either by a
// successful exchange or by expiry.
type AuthorizationCode struct {
	Code        string
	ClientID    string
	Username    string
	Scopes      []string
	RedirectURI string // must match the token request exactly
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// AccessToken is a short-lived opaque credential. Username is empty for
// tokens minted by the client_credentials grant.
type AccessToken struct {
	Token     string
	ClientID  string
	Username  string
	Scopes    []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RefreshToken is a long-lived opaque credential. It carries no expiry and
// lives until explicitly revoked.
type RefreshToken struct {
	Token     string
	ClientID  string
	Username  string
	Scopes    []string
	CreatedAt time.Time
}

// ClientRegistry provides read access to registered OAuth clients.
// All methods accept context.Context for tracing and cancellation.
type ClientRegistry interface {
	// GetClient retrieves a client by ID
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret validates a client's secret.
	// Implementations must take constant time regardless of whether the
	// client exists, to avoid leaking client existence via timing.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// CountClients returns the number of registered clients
	CountClients(ctx context.Context) (int, error)
}

// UserStore provides read access to user accounts and credential verification.
// All methods accept context.Context for tracing and cancellation.
type UserStore interface {
	// GetUser retrieves a user by username
	GetUser(ctx context.Context, username string) (*User, error)

	// VerifyPassword checks a username/password pair. It returns
	// ErrInvalidCredentials uniformly whether the user is unknown or the
	// password is wrong, and takes constant structure either way.
	VerifyPassword(ctx context.Context, username, password string) error

	// CountUsers returns the number of user accounts
	CountUsers(ctx context.Context) (int, error)
}

// CodeStore manages single-use authorization codes.
type CodeStore interface {
	// SaveAuthorizationCode stores an issued authorization code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// TakeAuthorizationCode atomically retrieves and deletes a code.
	// Exactly one concurrent caller can succeed for a given code; all others
	// receive ErrCodeNotFound. An expired code is deleted and reported as
	// ErrCodeExpired. No caller may observe a code as both present and
	// already consumed.
	TakeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// AccessTokenStore manages access tokens.
//
// Expired access tokens are not removed on read: introspection reports their
// attributes with active=false until the background sweep collects them.
type AccessTokenStore interface {
	// SaveAccessToken stores an access token
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken retrieves an access token. The record is returned even
	// when past its expiry; callers decide activeness.
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// DeleteAccessToken removes an access token. Deleting an absent token is
	// not an error (revocation is idempotent).
	DeleteAccessToken(ctx context.Context, token string) error

	// CountAccessTokens returns the number of stored access tokens
	CountAccessTokens(ctx context.Context) (int, error)
}

// RefreshTokenStore manages refresh tokens.
type RefreshTokenStore interface {
	// SaveRefreshToken stores a refresh token
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a refresh token
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// DeleteRefreshToken removes a refresh token. Deleting an absent token is
	// not an error (revocation is idempotent).
	DeleteRefreshToken(ctx context.Context, token string) error

	// CountRefreshTokens returns the number of stored refresh tokens
	CountRefreshTokens(ctx context.Context) (int, error)
}
