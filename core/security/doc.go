// Package security records security incidents and summarises recent activity.
//
// A Service sits between request-time enforcement and two external stores:
//
//   - EventStore: append-only sink for Event records (Postgres or SQLite in
//     production, MemoryEventStore in tests).
//   - KeyStore: TTL key store holding blacklist:, lockout:, failed_attempts:
//     and req_count: keys plus the recent-events list (Redis in production).
//
// Recording never fails outward. When the events table is missing the store
// returns ErrSchemaUnavailable and the event is dropped with a warning; other
// store errors are logged.
//
//	svc, err := security.New(eventStore, keyStore, security.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	svc.LogEvent(ctx, "sql_injection", security.SeverityHigh, map[string]any{
//		"ip": clientIP,
//	})
//
// Stats runs its three queries concurrently and reports ACTIVE, DEGRADED or
// ERROR. All three are valid steady states:
//
//	stats, _ := svc.Stats(ctx)
//	if stats.Status == security.StatusDegraded {
//		// counts from the failing store are zero
//	}
//
// The detector set (SQL injection, script injection, path traversal) and the
// user-agent denylist are evaluated by Evaluate and Inspect. Guard applies them
// to incoming requests, rejecting blacklisted clients and requests whose score
// exceeds ScoreThreshold:
//
//	mux.Handle("GET /status", security.Guard(svc, security.WithAutoBlock(true))(h))
//
// Block writes a blacklist key for LockoutDuration; Blocked reports whether one
// is live.
package security
