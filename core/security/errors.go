package security

import "errors"

var (
	// ErrSchemaUnavailable is returned by an EventStore whose backing table does
	// not exist. Callers degrade instead of failing.
	ErrSchemaUnavailable = errors.New("security event schema unavailable")

	// ErrStoreUnavailable is returned when a store cannot be reached.
	ErrStoreUnavailable = errors.New("security store unavailable")

	// ErrNoEventStore is returned by New when no event store is configured.
	ErrNoEventStore = errors.New("event store is required")

	// ErrNoKeyStore is returned by New when no key store is configured.
	ErrNoKeyStore = errors.New("key store is required")
)

// IsDegradation reports whether err is a collaborator outage that should
// lower the reported status rather than surface as a failure.
func IsDegradation(err error) bool {
	return errors.Is(err, ErrSchemaUnavailable) || errors.Is(err, ErrStoreUnavailable)
}
