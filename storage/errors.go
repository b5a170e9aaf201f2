package storage

import "errors"

// Sentinel errors returned by storage implementations. Callers use errors.Is
// to map these to protocol errors at the component boundary.
var (
	// ErrClientNotFound indicates the client ID is not registered
	ErrClientNotFound = errors.New("client not found")

	// ErrUserNotFound indicates the username is unknown
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials indicates a username/password or client
	// credential check failed. Deliberately does not distinguish an unknown
	// principal from a wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCodeNotFound indicates the authorization code is absent,
	// already consumed, or never existed
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrCodeExpired indicates the authorization code was past its expiry
	// and has been deleted
	ErrCodeExpired = errors.New("authorization code expired")

	// ErrTokenNotFound indicates the token is absent or revoked
	ErrTokenNotFound = errors.New("token not found")
)
