package security

import "time"

// IsExpired reports whether a credential with the given expiry is past it.
// A zero expiry means the credential never expires (refresh tokens).
// The boundary is inclusive: a credential is expired at exactly its expiry
// instant, so lifetimes are never silently extended.
func IsExpired(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(expiresAt)
}

// IsExpiredAt is IsExpired evaluated against an explicit clock, for callers
// that carry their own time source in tests.
func IsExpiredAt(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt)
}
