// Package server runs the HTTP surface of the sentinel service (health
// probes, metrics and the security status endpoint) with graceful shutdown.
//
// A Server is usually driven from an errgroup alongside the security monitor:
//
//	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(mon.Run(ctx))
//	eg.Go(srv.Run(ctx, mux))
//	return eg.Wait()
//
// Run blocks until ctx is cancelled, then calls Stop, which waits up to the
// shutdown timeout for in-flight requests.
//
// Config reads SERVER_ADDR, the SERVER_*_TIMEOUT durations,
// SERVER_MAX_HEADER_BYTES and the optional SERVER_TLS_CERT_FILE and
// SERVER_TLS_KEY_FILE pair.
package server
