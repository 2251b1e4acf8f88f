package security

// Key namespaces in the TTL key store.
const (
	PrefixBlacklist      = "blacklist:"
	PrefixLockout        = "lockout:"
	PrefixFailedAttempts = "failed_attempts:"
	PrefixRequestCount   = "req_count:"

	// RecentEventsKey holds the newest-first buffer of recent events.
	RecentEventsKey = "security:recent_events"
)

// BlacklistKey returns the key marking ip as blacklisted.
func BlacklistKey(ip string) string { return PrefixBlacklist + ip }

// LockoutKey returns the key marking identity as locked out.
func LockoutKey(identity string) string { return PrefixLockout + identity }

// FailedAttemptsKey returns the failed-attempt counter key for identity.
func FailedAttemptsKey(identity string) string { return PrefixFailedAttempts + identity }

// RequestCountKey returns the request counter key for identity.
func RequestCountKey(identity string) string { return PrefixRequestCount + identity }
