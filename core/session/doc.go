// Package session manages the client-held session of a single tab: saving,
// restoring, validating, refreshing and clearing it, and keeping sibling tabs
// coherent.
//
// Session fields live in a localstore.Store under fixed keys (see KeyToken and
// friends) so that every tab sharing the store sees the same session. Changes
// are announced on a broadcast.Broadcaster as SyncEvent values; a tab that
// sees another tab clear the session runs its reload hook instead of silently
// diverging. Save events are informational.
//
// # Usage
//
//	mem := localstore.NewMemory()
//
//	mgr := session.New(
//		session.WithStorage(mem.Tab()),
//		session.WithAuthProvider(provider),
//		session.WithLogger(log),
//		session.WithReloadHook(func(ev session.SyncEvent) {
//			// re-render from a signed-out state
//		}),
//	)
//	defer mgr.Close()
//
//	mgr.Initialize(ctx, provider.Refresh)
//
//	if _, ok := mgr.Get(); !ok {
//		mgr.Restore(ctx)
//	}
//
// # Refresh
//
// A background check runs every CheckInterval (15 minutes by default). When
// the session expires within RefreshThreshold (24 hours) it calls the
// registered RefreshFunc. A successful refresh replaces the token and sets
// the expiry to now plus Lifetime (30 days), whatever expiry the provider
// reports. A failed refresh is logged and the session is kept until it
// expires naturally.
//
// Concurrent Refresh calls share a single exchange.
//
// # Failure model
//
// Nothing in this package panics or surfaces provider failures as errors:
// Restore, Refresh and ValidateWithProvider report false and log. Save and
// Clear return errors only for storage failures.
package session
