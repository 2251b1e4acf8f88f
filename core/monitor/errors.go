package monitor

import "errors"

var (
	ErrNoStatsSource     = errors.New("monitor: stats source is nil")
	ErrNoKeyStore        = errors.New("monitor: key store is nil")
	ErrStartFailed       = errors.New("monitor: failed to start")
	ErrShutdownTimeout   = errors.New("monitor: shutdown timeout exceeded")
	ErrHealthcheckFailed = errors.New("monitor: healthcheck failed")
	ErrNotRunning        = errors.New("monitor: not running")
)
