package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// EventTokenIssued is logged when a grant mints tokens
	EventTokenIssued = "token_issued"

	// EventTokenRevoked is logged when a token is revoked
	EventTokenRevoked = "token_revoked"

	// EventCodeIssued is logged when an authorization code is issued
	EventCodeIssued = "authorization_code_issued"

	// EventCodeReplayed is logged when an absent or already-consumed
	// authorization code is presented for exchange
	EventCodeReplayed = "authorization_code_replayed"

	// EventAuthFailure is logged when user or client authentication fails
	EventAuthFailure = "auth_failure"

	// EventAccessDenied is logged when a resource-level ownership check refuses access
	EventAccessDenied = "access_denied"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
