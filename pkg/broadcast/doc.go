// Package broadcast provides generic pub/sub over two backends: an in-process
// fan-out and a slot in a shared localstore.Store that every tab watches.
//
// Both implement Broadcaster[T] and hand out Subscriber[T] values whose
// Receive channel is closed when the subscriber is closed, its subscription
// context is cancelled, or the broadcaster is closed. Payloads travel as
// Message[T]{Data: v}.
//
// # Memory
//
// MemoryBroadcaster delivers to subscribers of the same process. Delivery never
// blocks: a subscriber whose buffer is full misses the message.
//
//	b := broadcast.NewMemoryBroadcaster[string](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	go func() {
//		for msg := range sub.Receive(ctx) {
//			handle(msg.Data)
//		}
//	}()
//	_ = b.Broadcast(ctx, broadcast.Message[string]{Data: "hello"})
//
// Broadcast after Close is a silent no-op.
//
// # Storage slot
//
// StorageBroadcaster is the cross-tab channel. Broadcast encodes Data as JSON,
// writes it into one key of the store and removes the key again after the
// linger period (DefaultLinger unless WithLinger is given). Subscribers watch
// that key; every write becomes a message and removals are ignored. Since the
// slot is retracted, a handle that starts watching later never sees the old
// message.
//
//	tab := localstore.NewMemory().Tab()
//	b := broadcast.NewStorageBroadcaster[Event](tab, "session_sync",
//		broadcast.WithLinger(50*time.Millisecond),
//		broadcast.WithLogger(log),
//	)
//
// With localstore.MemoryTab a tab does not observe its own writes; with
// localstore.File it does, so receivers filter by a source field in the payload.
// Values that fail to decode are logged and dropped.
//
// Broadcast returns ErrBroadcasterClosed after Close, and wraps encode and
// storage write failures. Close closes every live subscriber and waits for its
// watch goroutine to exit.
package broadcast
