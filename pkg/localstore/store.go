package localstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by writes on a closed store.
var ErrClosed = errors.New("localstore: store is closed")

// Change describes a single mutation observed by a watcher.
type Change struct {
	Key     string
	Value   string
	Removed bool
}

// Store is a string key-value store shared by several handles, modelled after
// browser local storage. Watch delivers changes made through other handles.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	// Watch streams changes until ctx is cancelled. The channel is closed afterwards.
	Watch(ctx context.Context) <-chan Change
}
