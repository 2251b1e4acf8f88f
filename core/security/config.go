package security

import (
	"log/slog"
	"time"
)

// Config holds the tunables consumed by request-time enforcement.
type Config struct {
	// ScoreThreshold is the cumulative detector score at which a request is
	// considered hostile.
	ScoreThreshold int `env:"SECURITY_SCORE_THRESHOLD" envDefault:"100"`
	// LockoutDuration is how long a lockout key lives.
	LockoutDuration time.Duration `env:"SECURITY_LOCKOUT_DURATION" envDefault:"900s"`
	// RecentEventsKey names the list that buffers recent events.
	RecentEventsKey string `env:"SECURITY_RECENT_EVENTS_KEY" envDefault:"security:recent_events"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:  100,
		LockoutDuration: 900 * time.Second,
		RecentEventsKey: RecentEventsKey,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDetectors replaces the default detector set.
func WithDetectors(detectors ...Detector) Option {
	return func(s *Service) {
		if len(detectors) > 0 {
			s.detectors = detectors
		}
	}
}

// WithSuspiciousAgents replaces the default user-agent denylist.
func WithSuspiciousAgents(agents ...string) Option {
	return func(s *Service) {
		if len(agents) > 0 {
			s.agents = agents
		}
	}
}

// WithScoreThreshold overrides Config.ScoreThreshold.
func WithScoreThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cfg.ScoreThreshold = n
		}
	}
}

// WithLockoutDuration overrides Config.LockoutDuration.
func WithLockoutDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cfg.LockoutDuration = d
		}
	}
}

// WithRecentEventsKey overrides Config.RecentEventsKey.
func WithRecentEventsKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.cfg.RecentEventsKey = key
		}
	}
}
