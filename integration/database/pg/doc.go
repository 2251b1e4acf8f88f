// Package pg connects to PostgreSQL, applies the security schema and stores
// security events.
//
// Connect builds a pgx pool from Config, pings it with retries and returns it
// ready to use. Migrate applies the embedded goose migrations that create the
// security_events table. Healthcheck returns a ping function for readiness
// probes.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, log); err != nil {
//		return err
//	}
//
//	events, err := pg.NewEventStore(ctx, pool, pg.WithLogger(log))
//
// # Event store
//
// EventStore checks for its table with to_regclass when it is built. While
// the table is missing, Insert and Count return security.ErrSchemaUnavailable
// and re-check on each call, so a late migration is picked up without a
// restart. If the table disappears at runtime the undefined-table error
// (42P01) is mapped to the same sentinel. Connection failures are joined with
// security.ErrStoreUnavailable.
//
// Insert participates in a transaction attached with WithTx.
//
// # Error classification
//
//	pg.IsNotFoundError(err)       // pgx.ErrNoRows
//	pg.IsDuplicateKeyError(err)   // 23505
//	pg.IsUndefinedTableError(err) // 42P01
//	pg.IsConnectionError(err)     // class 08, dial failures, timeouts
package pg
