// Package security provides security features for the authorization server
// and gateway: rate limiting, audit logging, credential hashing, opaque
// token generation, and secure header management.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
// Usernames are hashed before logging; token values are never logged.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Username  string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"username_hash", hashForLogging(event.Username),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs when tokens are minted by a grant
func (a *Auditor) LogTokenIssued(username, clientID, grantType, scope string) {
	a.LogEvent(Event{
		Type:     EventTokenIssued,
		Username: username,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"scope":      scope,
		},
	})
}

// LogTokenRevoked logs when a token is revoked
func (a *Auditor) LogTokenRevoked(username, clientID, tokenType string) {
	a.LogEvent(Event{
		Type:     EventTokenRevoked,
		Username: username,
		ClientID: clientID,
		Details: map[string]any{
			"token_type": tokenType,
		},
	})
}

// LogAuthFailure logs an authentication failure
func (a *Auditor) LogAuthFailure(username, clientID, reason string) {
	a.LogEvent(Event{
		Type:     EventAuthFailure,
		Username: username,
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAccessDenied logs a resource-level authorization refusal
func (a *Auditor) LogAccessDenied(username, resource, reason string) {
	a.LogEvent(Event{
		Type:     EventAccessDenied,
		Username: username,
		Details: map[string]any{
			"resource": resource,
			"reason":   reason,
		},
	})
}

// hashForLogging hashes a value so audit lines correlate without exposing PII.
// Empty values stay empty so client-credentials events remain readable.
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}
