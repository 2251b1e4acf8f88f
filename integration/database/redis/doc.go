// Package redis connects to Redis and adapts it to the security key store.
//
// Connect validates the URL (redis:// or rediss://), then pings with retries,
// doubling the delay between attempts, until the server answers or the
// connect timeout expires. Healthcheck returns a ping function suitable for
// readiness probes.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	keys := redis.NewKeyStore(client, cfg.ScanBatchSize)
//	svc, err := security.New(events, keys)
//
// # Key store
//
// KeyStore implements security.KeyStore with SCAN (never KEYS), TTL, DEL,
// LPUSH, LTRIM and SET. TTL keeps the server's conventions: -1 for a key
// without expiry and -2 for a missing key. The monitor treats both as
// expired.
//
// Errors that never reached the server, such as dial failures, timeouts or a
// closed client, are joined with security.ErrStoreUnavailable so that
// statistics degrade instead of failing.
//
// # Errors
//
//   - ErrEmptyConnectionURL: no URL configured
//   - ErrFailedToParseRedisConnString: the URL is malformed or uses another scheme
//   - ErrRedisNotReady: the server did not answer within the retry budget
//   - ErrHealthcheckFailed: a health ping failed
package redis
