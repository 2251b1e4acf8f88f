package security

import (
	"context"
	"time"
)

// CountFilter selects events for EventStore.Count.
type CountFilter struct {
	Since      time.Time
	Severities []Severity // empty means any severity
}

// EventStore is the append-only sink for security events.
// Implementations return ErrSchemaUnavailable when the events table is missing
// and ErrStoreUnavailable when the backend cannot be reached.
type EventStore interface {
	Insert(ctx context.Context, event Event) error
	Count(ctx context.Context, filter CountFilter) (int64, error)
}

// KeyStore is the TTL key store holding counters, lockouts, blacklists and the
// recent-events buffer.
type KeyStore interface {
	// Keys lists keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// TTL returns the remaining time to live. Values <= 0 mean the key is
	// logically expired (including keys without expiry or already gone).
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
	// Set stores value with the given ttl; ttl <= 0 stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Push prepends value to the list at key.
	Push(ctx context.Context, key, value string) error
	// Trim keeps list elements in [start, stop], inclusive.
	Trim(ctx context.Context, key string, start, stop int64) error
}
