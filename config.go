package scopegate

import "time"

// Protocol defaults. These mirror the documented token lifetimes: codes live
// ten minutes, access tokens one hour, refresh tokens until revoked, and
// gateway-side introspection results are cached for five minutes.
const (
	// DefaultAuthorizationCodeTTL is how long authorization codes are valid
	DefaultAuthorizationCodeTTL = 600 * time.Second

	// DefaultAccessTokenTTL is how long access tokens are valid
	DefaultAccessTokenTTL = 3600 * time.Second

	// DefaultIntrospectionCacheTTL is how long a resource gateway may serve a
	// cached introspection result. A revoked token may keep working for up to
	// this long at a gateway that holds a fresh cache entry; that staleness
	// window is a deliberate availability trade-off.
	DefaultIntrospectionCacheTTL = 300 * time.Second

	// DefaultIntrospectionTimeout bounds a gateway's remote introspection call.
	// Timeouts are treated as transient failures and are never cached.
	DefaultIntrospectionTimeout = 5 * time.Second

	// DefaultCleanupInterval is how often stores sweep expired codes and tokens
	DefaultCleanupInterval = time.Minute
)
