package broadcast

import (
	"context"
	"errors"
)

// ErrBroadcasterClosed is returned by StorageBroadcaster.Broadcast after Close.
var ErrBroadcasterClosed = errors.New("broadcaster is closed")

// Message wraps a broadcast payload.
type Message[T any] struct {
	Data T
}

// Broadcaster sends messages to every active subscriber.
type Broadcaster[T any] interface {
	Broadcast(ctx context.Context, msg Message[T]) error
	Subscribe(ctx context.Context) Subscriber[T]
	Close() error
}

// Subscriber receives broadcast messages.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the subscriber
	// is closed or its subscription context is cancelled.
	Receive(ctx context.Context) <-chan Message[T]
	Close() error
}
