package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/security"
)

// State is the monitor lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// StatsSource reports aggregate security statistics. *security.Service implements it.
type StatsSource interface {
	Stats(ctx context.Context) (security.Stats, error)
}

// Status is the monitor's view of itself. Stats fields are flattened into
// the JSON form when present.
type Status struct {
	Active  bool   `json:"active"`
	Healthy *bool  `json:"healthy,omitempty"`
	Error   string `json:"error,omitempty"`
	*security.Stats
}

// Monitor periodically evaluates threat statistics and sweeps expired
// ephemeral keys. The check and cleanup loops are independent; a pass never
// overlaps with the next tick of its own loop.
type Monitor struct {
	stats           StatsSource
	keys            security.KeyStore
	cfg             Config
	recentEventsKey string
	logger          *slog.Logger
	metrics         *metrics

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor with default configuration.
func New(stats StatsSource, keys security.KeyStore, opts ...Option) (*Monitor, error) {
	if stats == nil {
		return nil, ErrNoStatsSource
	}
	if keys == nil {
		return nil, ErrNoKeyStore
	}

	o := &options{
		cfg:             DefaultConfig(),
		recentEventsKey: security.RecentEventsKey,
		logger:          logger.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Monitor{
		stats:           stats,
		keys:            keys,
		cfg:             o.cfg,
		recentEventsKey: o.recentEventsKey,
		logger:          o.logger.With(logger.Component("security_monitor")),
		metrics:         newMetrics(o.registerer),
	}, nil
}

// NewFromConfig creates a monitor from cfg. Additional options override config values.
func NewFromConfig(cfg Config, stats StatsSource, keys security.KeyStore, opts ...Option) (*Monitor, error) {
	allOpts := append([]Option{
		WithCheckInterval(cfg.CheckInterval),
		WithCleanupInterval(cfg.CleanupInterval),
		WithThreatThreshold(cfg.ThreatThreshold),
		WithRecentEventsLimit(cfg.RecentEventsLimit),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithVerbose(cfg.Verbose),
	}, opts...)

	return New(stats, keys, allOpts...)
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start runs one monitoring pass and then schedules the check and cleanup
// loops. Starting a running monitor is a no-op. If the initial pass fails
// the monitor stays stopped and ErrStartFailed is returned.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateRunning {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.state = StateRunning
	m.cancel = cancel
	m.mu.Unlock()

	if err := m.guard(context.WithoutCancel(runCtx), "security_check", m.PerformSecurityCheck); err != nil {
		m.mu.Lock()
		m.state = StateStopped
		m.cancel = nil
		m.mu.Unlock()
		cancel()
		m.logger.ErrorContext(ctx, "security monitor failed to start", logger.Error(err))
		return errors.Join(ErrStartFailed, err)
	}

	m.mu.Lock()
	if m.state != StateRunning {
		// Stopped while the initial pass was running.
		m.mu.Unlock()
		return nil
	}
	m.wg.Add(2)
	m.mu.Unlock()

	go m.loop(runCtx, "security_check", m.cfg.CheckInterval, m.PerformSecurityCheck)
	go m.loop(runCtx, "cleanup", m.cfg.CleanupInterval, m.PerformCleanup)

	m.metrics.running.Set(1)
	m.lifecycle(ctx, "security monitor started",
		logger.Interval(m.cfg.CheckInterval),
		slog.Duration("cleanup_interval", m.cfg.CleanupInterval))
	return nil
}

// Stop cancels both loops and waits for in-flight passes up to the shutdown
// timeout. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return nil
	}
	m.state = StateStopped
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.metrics.running.Set(0)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.lifecycle(context.Background(), "security monitor stopped")
		return nil
	case <-time.After(m.cfg.ShutdownTimeout):
		m.logger.Warn("security monitor shutdown timeout exceeded, abandoning in-flight pass",
			slog.Duration("timeout", m.cfg.ShutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, m.cfg.ShutdownTimeout)
	}
}

// Run provides errgroup compatibility: it starts the monitor and stops it
// when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) func() error {
	return func() error {
		if err := m.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		if err := m.Stop(); err != nil && !errors.Is(err, ErrShutdownTimeout) {
			return err
		}
		return nil
	}
}

// EmergencyShutdown logs reason at critical level and stops the monitor.
func (m *Monitor) EmergencyShutdown(reason string) error {
	m.logger.Log(context.Background(), logger.LevelCritical, "emergency shutdown of security monitor",
		logger.Reason(reason))
	return m.Stop()
}

// Status reports whether the monitor is running and, if so, the latest
// security statistics.
func (m *Monitor) Status(ctx context.Context) Status {
	if m.State() != StateRunning {
		return Status{Active: false}
	}

	stats, err := m.stats.Stats(ctx)
	if err != nil {
		healthy := false
		return Status{Active: true, Healthy: &healthy, Error: err.Error()}
	}
	return Status{Active: true, Stats: &stats}
}

// Healthcheck returns nil while the monitor is running.
func (m *Monitor) Healthcheck(ctx context.Context) error {
	if m.State() != StateRunning {
		return errors.Join(ErrHealthcheckFailed, ErrNotRunning)
	}
	return nil
}

// PerformSecurityCheck evaluates the last hour of threats and sweeps expired
// blacklist and failed-attempt keys. Failures are logged; nothing is returned.
func (m *Monitor) PerformSecurityCheck(ctx context.Context) {
	stats, err := m.stats.Stats(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to collect security stats", logger.Error(err))
	} else {
		m.metrics.threats.Set(float64(stats.HighSeverityLastHour))
		if stats.HighSeverityLastHour > m.cfg.ThreatThreshold {
			m.metrics.alerts.Inc()
			m.logger.Log(ctx, logger.LevelCritical, "high threat activity detected",
				slog.Int64("threats_last_hour", stats.HighSeverityLastHour),
				slog.Int64("threshold", m.cfg.ThreatThreshold),
				logger.Status(string(stats.Status)))
		}
	}

	if n, err := m.CleanupExpiredBlacklists(ctx); err != nil {
		m.logger.ErrorContext(ctx, "blacklist sweep failed", logger.Count("deleted", n), logger.Error(err))
	}
	if n, err := m.CleanupOldFailedAttempts(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed attempts sweep failed", logger.Count("deleted", n), logger.Error(err))
	}
}

// PerformCleanup trims the recent-events list and sweeps expired request
// counters and lockouts.
func (m *Monitor) PerformCleanup(ctx context.Context) {
	if err := m.keys.Trim(ctx, m.recentEventsKey, 0, m.cfg.RecentEventsLimit-1); err != nil {
		m.logger.ErrorContext(ctx, "failed to trim recent events", logger.Key("key", m.recentEventsKey), logger.Error(err))
	}

	for _, prefix := range []string{security.PrefixRequestCount, security.PrefixLockout} {
		if n, err := m.sweep(ctx, prefix); err != nil {
			m.logger.ErrorContext(ctx, "key sweep failed", logger.Prefix(prefix), logger.Count("deleted", n), logger.Error(err))
		}
	}
}

// CleanupExpiredBlacklists deletes blacklist keys whose TTL has run out.
func (m *Monitor) CleanupExpiredBlacklists(ctx context.Context) (int, error) {
	return m.sweep(ctx, security.PrefixBlacklist)
}

// CleanupOldFailedAttempts deletes failed-attempt counters whose TTL has run out.
func (m *Monitor) CleanupOldFailedAttempts(ctx context.Context) (int, error) {
	return m.sweep(ctx, security.PrefixFailedAttempts)
}

func (m *Monitor) loop(ctx context.Context, task string, interval time.Duration, pass func(context.Context)) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// In-flight passes finish even when Stop cancels the loop.
			if err := m.guard(context.WithoutCancel(ctx), task, pass); err != nil {
				m.logger.ErrorContext(ctx, "monitor pass aborted", logger.Action(task), logger.Error(err))
			}
		}
	}
}

// guard runs pass and converts a panic into an error.
func (m *Monitor) guard(ctx context.Context, task string, pass func(context.Context)) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", task, r)
			m.metrics.passes.WithLabelValues(task, "panic").Inc()
			return
		}
		m.metrics.passes.WithLabelValues(task, "ok").Inc()
		m.logger.DebugContext(ctx, "monitor pass complete", logger.Action(task), logger.Elapsed(start))
	}()

	pass(ctx)
	return nil
}

func (m *Monitor) lifecycle(ctx context.Context, msg string, attrs ...any) {
	level := slog.LevelDebug
	if m.cfg.Verbose {
		level = slog.LevelInfo
	}
	m.logger.Log(ctx, level, msg, attrs...)
}
