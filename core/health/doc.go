// Package health provides HTTP probe handlers.
//
//   - Liveness: the process is serving, no dependency checks
//   - Readiness: every registered Check passes, otherwise 503
//   - NoContent: 204 for minimal overhead
//
// Checks share the func(context.Context) error shape of the integration
// packages' Healthcheck helpers and of monitor.Monitor.Healthcheck.
package health
