package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/sentinel/pkg/localstore"
)

// DefaultLinger is how long a broadcast stays in its storage slot.
const DefaultLinger = 100 * time.Millisecond

// StorageBroadcaster publishes through a single slot of a shared localstore.
// Each broadcast writes the slot and retracts it after the linger period, so
// the slot is a transient signal rather than a log. Handles that are not
// watching at the moment of the write miss the message.
type StorageBroadcaster[T any] struct {
	store      localstore.Store
	key        string
	linger     time.Duration
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*storageSubscriber[T]]struct{}
}

// StorageOption configures a StorageBroadcaster.
type StorageOption func(*storageOptions)

type storageOptions struct {
	linger     time.Duration
	bufferSize int
	logger     *slog.Logger
}

// WithLinger sets how long a message stays in the slot before it is retracted.
func WithLinger(d time.Duration) StorageOption {
	return func(o *storageOptions) {
		if d > 0 {
			o.linger = d
		}
	}
}

// WithBufferSize sets the per-subscriber buffer.
func WithBufferSize(n int) StorageOption {
	return func(o *storageOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithLogger sets the logger for decode and storage failures.
func WithLogger(l *slog.Logger) StorageOption {
	return func(o *storageOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewStorageBroadcaster creates a broadcaster bound to key inside store.
func NewStorageBroadcaster[T any](store localstore.Store, key string, opts ...StorageOption) *StorageBroadcaster[T] {
	o := &storageOptions{
		linger:     DefaultLinger,
		bufferSize: 16,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &StorageBroadcaster[T]{
		store:      store,
		key:        key,
		linger:     o.linger,
		bufferSize: o.bufferSize,
		logger:     o.logger,
		subs:       make(map[*storageSubscriber[T]]struct{}),
	}
}

// Broadcast writes msg.Data as JSON into the slot and schedules its retraction.
func (b *StorageBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBroadcasterClosed
	}

	payload, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("broadcast: encode: %w", err)
	}
	value := string(payload)

	if err := b.store.Set(b.key, value); err != nil {
		return fmt.Errorf("broadcast: write slot: %w", err)
	}

	time.AfterFunc(b.linger, func() {
		// A newer broadcast owns the slot now; leave it alone.
		if current, ok := b.store.Get(b.key); !ok || current != value {
			return
		}
		if err := b.store.Remove(b.key); err != nil {
			b.logger.Warn("failed to retract broadcast slot", slog.String("key", b.key), slog.Any("error", err))
		}
	})

	return nil
}

// Subscribe watches the slot and decodes every write into a message.
func (b *StorageBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &storageSubscriber[T]{
		ch:     make(chan Message[T], b.bufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		close(sub.ch)
		close(sub.done)
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	changes := b.store.Watch(subCtx)
	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
			close(sub.done)
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			case c, ok := <-changes:
				if !ok {
					return
				}
				if c.Key != b.key || c.Removed {
					continue
				}
				var data T
				if err := json.Unmarshal([]byte(c.Value), &data); err != nil {
					b.logger.Warn("dropping undecodable broadcast", slog.String("key", b.key), slog.Any("error", err))
					continue
				}
				select {
				case sub.ch <- Message[T]{Data: data}:
				default:
				}
			}
		}
	}()

	return sub
}

// Close stops all subscribers. Broadcast returns ErrBroadcasterClosed afterwards.
func (b *StorageBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*storageSubscriber[T], 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

type storageSubscriber[T any] struct {
	ch     chan Message[T]
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *storageSubscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

func (s *storageSubscriber[T]) Close() error {
	s.cancel()
	<-s.done
	return nil
}
