package localstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// Memory is an in-process backend shared by any number of tabs.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers map[uint64]*watcher
	nextID   atomic.Uint64
	buffer   int
}

type watcher struct {
	tab uint64
	ch  chan Change
}

// NewMemory creates an empty backend. Each watcher buffers up to 64 changes;
// changes beyond that are dropped for that watcher only.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]string),
		watchers: make(map[uint64]*watcher),
		buffer:   64,
	}
}

// Tab returns a new handle. Changes written through the handle are delivered
// to watchers of every other handle, never to its own.
func (m *Memory) Tab() *MemoryTab {
	return &MemoryTab{mem: m, id: m.nextID.Add(1)}
}

// Keys returns a snapshot of stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) notify(origin uint64, c Change) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.watchers {
		if w.tab == origin {
			continue
		}
		select {
		case w.ch <- c:
		default:
		}
	}
}

// MemoryTab is one handle onto a Memory backend.
type MemoryTab struct {
	mem *Memory
	id  uint64
}

var _ Store = (*MemoryTab)(nil)

// Get returns the value for key.
func (t *MemoryTab) Get(key string) (string, bool) {
	t.mem.mu.RLock()
	defer t.mem.mu.RUnlock()
	v, ok := t.mem.data[key]
	return v, ok
}

// Set stores value under key and notifies other tabs.
func (t *MemoryTab) Set(key, value string) error {
	t.mem.mu.Lock()
	t.mem.data[key] = value
	t.mem.mu.Unlock()

	t.mem.notify(t.id, Change{Key: key, Value: value})
	return nil
}

// Remove deletes key. Removing a missing key does not notify.
func (t *MemoryTab) Remove(key string) error {
	t.mem.mu.Lock()
	_, existed := t.mem.data[key]
	delete(t.mem.data, key)
	t.mem.mu.Unlock()

	if existed {
		t.mem.notify(t.id, Change{Key: key, Removed: true})
	}
	return nil
}

// Watch registers a watcher for changes made by other tabs.
func (t *MemoryTab) Watch(ctx context.Context) <-chan Change {
	w := &watcher{tab: t.id, ch: make(chan Change, t.mem.buffer)}
	wid := t.mem.nextID.Add(1)

	t.mem.mu.Lock()
	t.mem.watchers[wid] = w
	t.mem.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mem.mu.Lock()
		delete(t.mem.watchers, wid)
		close(w.ch)
		t.mem.mu.Unlock()
	}()

	return w.ch
}
