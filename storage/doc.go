// Package storage provides interfaces and record types for OAuth client,
// user, code, and token persistence.
//
// The storage package defines the core storage interfaces used throughout
// scopegate:
//   - ClientRegistry: read-only registered OAuth clients
//   - UserStore: read-only user accounts with credential verification
//   - CodeStore: single-use authorization codes with atomic take-and-delete
//   - AccessTokenStore, RefreshTokenStore: opaque bearer tokens
//
// Implementations are provided in subpackages:
//   - storage/memory: mutex-guarded in-memory storage
package storage
