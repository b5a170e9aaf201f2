// Package scopegate provides a minimal OAuth2 authorization server paired
// with a token-validating resource gateway.
//
// The authorization server (package authserver) issues, exchanges,
// introspects, and revokes opaque bearer tokens over in-memory stores
// (package storage/memory). The resource gateway (package gateway) enforces
// scope-based access control on protected operations, caching introspection
// results for a short TTL to avoid re-validating every call.
//
// This root package holds the shared protocol surface: the structured error
// taxonomy, the request/response value contracts exposed to transports, and
// the protocol defaults. Transports (package httpapi) own request decoding
// and response encoding only.
package scopegate
