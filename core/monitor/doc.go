// Package monitor runs the background security monitor.
//
// Two independent loops drive it. The security check (every 5 minutes by
// default) reads aggregate statistics, raises a critical log when more than
// ThreatThreshold high-severity events arrived in the last hour, and sweeps
// expired blacklist and failed-attempt keys. The cleanup pass (hourly) trims
// the recent-events list and sweeps expired request counters and lockouts.
//
// Every pass has its own failure boundary: store errors are logged and
// counted, panics are recovered, and the loop carries on. Only the initial
// pass run by Start can fail the monitor.
//
//	mon, err := monitor.NewFromConfig(cfg.Monitor, securityService, keyStore,
//		monitor.WithLogger(log),
//		monitor.WithRegisterer(prometheus.DefaultRegisterer),
//	)
//	if err != nil {
//		return err
//	}
//	eg.Go(mon.Run(ctx))
package monitor
