package session

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/sentinel/pkg/broadcast"
	"github.com/dmitrymomot/sentinel/pkg/localstore"
)

// Config holds session manager timing.
type Config struct {
	CheckInterval    time.Duration `env:"SESSION_CHECK_INTERVAL" envDefault:"15m"`    // How often the refresh check runs
	RefreshThreshold time.Duration `env:"SESSION_REFRESH_THRESHOLD" envDefault:"24h"` // Remaining lifetime that triggers a refresh
	Lifetime         time.Duration `env:"SESSION_LIFETIME" envDefault:"720h"`         // Extension applied on refresh and missing expiry
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval:    15 * time.Minute,
		RefreshThreshold: 24 * time.Hour,
		Lifetime:         30 * 24 * time.Hour,
	}
}

// Option is a functional option for configuring the session manager.
type Option func(*Manager)

// WithStorage sets the local store holding session fields.
func WithStorage(s localstore.Store) Option {
	return func(m *Manager) {
		if s != nil {
			m.storage = s
		}
	}
}

// WithBroadcaster sets the cross-tab channel. Defaults to a storage
// broadcaster on SyncKey of the configured storage.
func WithBroadcaster(b broadcast.Broadcaster[SyncEvent]) Option {
	return func(m *Manager) {
		m.bc = b
	}
}

// WithAuthProvider sets the provider used by Restore and ValidateWithProvider.
func WithAuthProvider(p AuthProvider) Option {
	return func(m *Manager) {
		m.auth = p
	}
}

// WithProfileResolver sets the profile lookup used by Restore.
func WithProfileResolver(r ProfileResolver) Option {
	return func(m *Manager) {
		m.profiles = r
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCheckInterval sets how often the refresh check runs.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cfg.CheckInterval = d
		}
	}
}

// WithRefreshThreshold sets the remaining lifetime below which a refresh is due.
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cfg.RefreshThreshold = d
		}
	}
}

// WithSessionLifetime sets the extension granted by a refresh.
func WithSessionLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cfg.Lifetime = d
		}
	}
}

// WithReloadHook sets the callback run when another tab clears the session.
func WithReloadHook(fn func(SyncEvent)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.reload = fn
		}
	}
}
