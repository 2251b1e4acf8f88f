package monitor

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds monitor timing and thresholds.
type Config struct {
	CheckInterval     time.Duration `env:"MONITOR_CHECK_INTERVAL" envDefault:"5m"`
	CleanupInterval   time.Duration `env:"MONITOR_CLEANUP_INTERVAL" envDefault:"60m"`
	ThreatThreshold   int64         `env:"MONITOR_THREAT_THRESHOLD" envDefault:"10"`
	RecentEventsLimit int64         `env:"MONITOR_RECENT_EVENTS_LIMIT" envDefault:"1000"`
	ShutdownTimeout   time.Duration `env:"MONITOR_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Verbose           bool          `env:"MONITOR_VERBOSE" envDefault:"false"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:     5 * time.Minute,
		CleanupInterval:   60 * time.Minute,
		ThreatThreshold:   10,
		RecentEventsLimit: 1000,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Option is a functional option for configuring a monitor.
type Option func(*options)

type options struct {
	cfg             Config
	recentEventsKey string
	logger          *slog.Logger
	registerer      prometheus.Registerer
}

// WithCheckInterval sets how often the security check runs.
func WithCheckInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.CheckInterval = d
		}
	}
}

// WithCleanupInterval sets how often the cleanup pass runs.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.CleanupInterval = d
		}
	}
}

// WithThreatThreshold sets the hourly high-severity count above which an alert is raised.
func WithThreatThreshold(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.cfg.ThreatThreshold = n
		}
	}
}

// WithRecentEventsLimit sets how many entries the recent-events list keeps.
func WithRecentEventsLimit(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.cfg.RecentEventsLimit = n
		}
	}
}

// WithRecentEventsKey sets the list trimmed by the cleanup pass.
func WithRecentEventsKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.recentEventsKey = key
		}
	}
}

// WithShutdownTimeout sets how long Stop waits for in-flight passes.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cfg.ShutdownTimeout = d
		}
	}
}

// WithVerbose logs lifecycle transitions at info level instead of debug.
func WithVerbose(v bool) Option {
	return func(o *options) {
		o.cfg.Verbose = v
	}
}

// WithLogger sets the monitor logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegisterer registers the monitor's collectors with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}
