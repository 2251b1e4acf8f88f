package security

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryKeyStore is an in-memory KeyStore. Keys never expire on their own;
// expired entries linger until deleted, like a driver without native TTL.
type MemoryKeyStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	lists map[string][]string
	now   func() time.Time
	err   error
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

var _ KeyStore = (*MemoryKeyStore)(nil)

// NewMemoryKeyStore creates an empty store using now as its clock (time.Now if nil).
func NewMemoryKeyStore(now func() time.Time) *MemoryKeyStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryKeyStore{
		items: make(map[string]memoryItem),
		lists: make(map[string][]string),
		now:   now,
	}
}

// SetUnavailable makes every subsequent call fail with err. Nil restores service.
func (m *MemoryKeyStore) SetUnavailable(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemoryKeyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	keys := make([]string, 0)
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for k := range m.lists {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// TTL mirrors Redis: -1 for keys without expiry, -2 for missing keys.
func (m *MemoryKeyStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}

	item, ok := m.items[key]
	if !ok {
		if _, isList := m.lists[key]; isList {
			return -1, nil
		}
		return -2, nil
	}
	if item.expiresAt.IsZero() {
		return -1, nil
	}
	return max(item.expiresAt.Sub(m.now()), 0), nil
}

func (m *MemoryKeyStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, k := range keys {
		delete(m.items, k)
		delete(m.lists, k)
	}
	return nil
}

func (m *MemoryKeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryKeyStore) Push(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

// Trim follows LTRIM semantics for non-negative indexes.
func (m *MemoryKeyStore) Trim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		delete(m.lists, key)
		return nil
	}
	m.lists[key] = slices.Clone(list[start : stop+1])
	return nil
}

// List returns a copy of the list at key.
func (m *MemoryKeyStore) List(key string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.lists[key])
}

// Get returns the value stored at key.
func (m *MemoryKeyStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	return item.value, ok
}

// MemoryEventStore keeps events in memory.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []Event
	err    error
}

var _ EventStore = (*MemoryEventStore)(nil)

// NewMemoryEventStore creates an empty event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

// SetUnavailable makes every subsequent call fail with err. Nil restores service.
func (m *MemoryEventStore) SetUnavailable(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemoryEventStore) Insert(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryEventStore) Count(ctx context.Context, filter CountFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, ev := range m.events {
		if ev.Timestamp.Before(filter.Since) {
			continue
		}
		if len(filter.Severities) > 0 && !slices.Contains(filter.Severities, ev.Severity) {
			continue
		}
		n++
	}
	return n, nil
}

// Events returns a copy of the stored events.
func (m *MemoryEventStore) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}
