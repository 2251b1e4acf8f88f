package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sentinel/pkg/broadcast"
	"github.com/dmitrymomot/sentinel/pkg/localstore"
)

type event struct {
	Action string `json:"action"`
	Source string `json:"source"`
}

func next[T any](t *testing.T, ch <-chan broadcast.Message[T]) broadcast.Message[T] {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscriber channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return broadcast.Message[T]{}
}

func TestMemoryBroadcaster(t *testing.T) {
	t.Parallel()

	t.Run("delivers to every subscriber", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := broadcast.NewMemoryBroadcaster[string](4)
		defer b.Close()

		s1 := b.Subscribe(ctx)
		s2 := b.Subscribe(ctx)

		require.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "clear"}))

		assert.Equal(t, "clear", next(t, s1.Receive(ctx)).Data)
		assert.Equal(t, "clear", next(t, s2.Receive(ctx)).Data)
	})

	t.Run("slow subscriber drops instead of blocking", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		b := broadcast.NewMemoryBroadcaster[int](1)
		defer b.Close()

		sub := b.Subscribe(ctx)
		for i := range 5 {
			require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: i}))
		}

		assert.Equal(t, 0, next(t, sub.Receive(ctx)).Data)
		select {
		case msg := <-sub.Receive(ctx):
			t.Fatalf("unexpected buffered message %v", msg)
		default:
		}
	})

	t.Run("close ends subscriptions", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		b := broadcast.NewMemoryBroadcaster[int](1)
		sub := b.Subscribe(ctx)

		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		_, ok := <-sub.Receive(ctx)
		assert.False(t, ok)
		assert.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 1}))
	})

	t.Run("cancelled context unsubscribes", func(t *testing.T) {
		t.Parallel()
		b := broadcast.NewMemoryBroadcaster[int](1)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)
		cancel()

		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Receive(context.Background()):
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})
}

func TestStorageBroadcaster(t *testing.T) {
	t.Parallel()

	t.Run("other tab receives and slot is retracted", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mem := localstore.NewMemory()
		tabA, tabB := mem.Tab(), mem.Tab()

		sender := broadcast.NewStorageBroadcaster[event](tabA, "session_sync", broadcast.WithLinger(20*time.Millisecond))
		receiver := broadcast.NewStorageBroadcaster[event](tabB, "session_sync")
		defer sender.Close()
		defer receiver.Close()

		sub := receiver.Subscribe(ctx)

		require.NoError(t, sender.Broadcast(ctx, broadcast.Message[event]{Data: event{Action: "clear", Source: "a"}}))

		msg := next(t, sub.Receive(ctx))
		assert.Equal(t, event{Action: "clear", Source: "a"}, msg.Data)

		assert.Eventually(t, func() bool {
			_, ok := tabB.Get("session_sync")
			return !ok
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("ignores other keys and garbage", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mem := localstore.NewMemory()
		tabA, tabB := mem.Tab(), mem.Tab()
		receiver := broadcast.NewStorageBroadcaster[event](tabB, "session_sync")
		defer receiver.Close()
		sub := receiver.Subscribe(ctx)

		require.NoError(t, tabA.Set("user_id", "u-1"))
		require.NoError(t, tabA.Set("session_sync", "{not json"))
		require.NoError(t, tabA.Set("session_sync", `{"action":"save","source":"a"}`))

		assert.Equal(t, "save", next(t, sub.Receive(ctx)).Data.Action)
	})

	t.Run("closed broadcaster rejects broadcasts", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		b := broadcast.NewStorageBroadcaster[event](localstore.NewMemory().Tab(), "slot")
		sub := b.Subscribe(ctx)

		require.NoError(t, b.Close())
		_, ok := <-sub.Receive(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, b.Broadcast(ctx, broadcast.Message[event]{}), broadcast.ErrBroadcasterClosed)
	})
}
