package monitor_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/monitor"
	"github.com/dmitrymomot/sentinel/core/security"
)

// mockStats implements monitor.StatsSource for testing
type mockStats struct {
	mock.Mock
}

func (m *mockStats) Stats(ctx context.Context) (security.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(security.Stats), args.Error(1)
}

// mockKeyStore implements security.KeyStore for testing
type mockKeyStore struct {
	mock.Mock
}

func (m *mockKeyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockKeyStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *mockKeyStore) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockKeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockKeyStore) Push(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockKeyStore) Trim(ctx context.Context, key string, start, stop int64) error {
	args := m.Called(ctx, key, start, stop)
	return args.Error(0)
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func activeStats(threats int64) security.Stats {
	return security.Stats{HighSeverityLastHour: threats, EventsLast24h: threats * 3, Status: security.StatusActive}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := monitor.New(nil, security.NewMemoryKeyStore(nil))
	assert.ErrorIs(t, err, monitor.ErrNoStatsSource)

	_, err = monitor.New(&mockStats{}, nil)
	assert.ErrorIs(t, err, monitor.ErrNoKeyStore)

	m, err := monitor.NewFromConfig(monitor.DefaultConfig(), &mockStats{}, security.NewMemoryKeyStore(nil))
	require.NoError(t, err)
	assert.Equal(t, monitor.StateStopped, m.State())
	assert.Equal(t, "stopped", m.State().String())
}

func TestMonitor_Sweeps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removes expired and unbounded keys only", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		keys := security.NewMemoryKeyStore(clock)
		require.NoError(t, keys.Set(ctx, security.LockoutKey("a"), "1", time.Minute))
		require.NoError(t, keys.Set(ctx, security.LockoutKey("b"), "1", 3*time.Minute))
		require.NoError(t, keys.Set(ctx, security.RequestCountKey("a"), "7", 0))
		require.NoError(t, keys.Set(ctx, security.BlacklistKey("10.0.0.1"), "1", time.Minute))
		require.NoError(t, keys.Set(ctx, security.FailedAttemptsKey("a"), "3", time.Hour))

		mu.Lock()
		now = now.Add(2 * time.Minute)
		mu.Unlock()

		m, err := monitor.New(&mockStats{}, keys)
		require.NoError(t, err)

		m.PerformCleanup(ctx)
		_, ok := keys.Get(security.LockoutKey("a"))
		assert.False(t, ok)
		_, ok = keys.Get(security.LockoutKey("b"))
		assert.True(t, ok)
		_, ok = keys.Get(security.RequestCountKey("a"))
		assert.False(t, ok)

		n, err := m.CleanupExpiredBlacklists(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = m.CleanupOldFailedAttempts(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		_, ok = keys.Get(security.FailedAttemptsKey("a"))
		assert.True(t, ok)
	})

	t.Run("one failing key does not stop the sweep", func(t *testing.T) {
		t.Parallel()
		keys := &mockKeyStore{}
		keys.On("Keys", mock.Anything, security.PrefixBlacklist).Return([]string{"blacklist:1", "blacklist:2", "blacklist:3"}, nil)
		keys.On("TTL", mock.Anything, "blacklist:1").Return(time.Duration(0), nil)
		keys.On("TTL", mock.Anything, "blacklist:2").Return(time.Duration(0), errors.New("timeout"))
		keys.On("TTL", mock.Anything, "blacklist:3").Return(time.Duration(-1), nil)
		keys.On("Delete", mock.Anything, []string{"blacklist:1", "blacklist:3"}).Return(nil)

		m, err := monitor.New(&mockStats{}, keys)
		require.NoError(t, err)

		n, err := m.CleanupExpiredBlacklists(ctx)
		assert.Error(t, err)
		assert.Equal(t, 2, n)
		keys.AssertExpectations(t)
	})

	t.Run("one failing prefix does not stop the others", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(activeStats(0), nil)
		keys := &mockKeyStore{}
		keys.On("Keys", mock.Anything, security.PrefixBlacklist).Return(nil, security.ErrStoreUnavailable)
		keys.On("Keys", mock.Anything, security.PrefixFailedAttempts).Return([]string{"failed_attempts:x"}, nil)
		keys.On("TTL", mock.Anything, "failed_attempts:x").Return(time.Duration(-2), nil)
		keys.On("Delete", mock.Anything, []string{"failed_attempts:x"}).Return(nil)

		m, err := monitor.New(stats, keys)
		require.NoError(t, err)

		m.PerformSecurityCheck(ctx)
		keys.AssertExpectations(t)
	})
}

func TestMonitor_PerformCleanup_TrimsRecentEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	keys := security.NewMemoryKeyStore(nil)
	for _, v := range []string{"e1", "e2", "e3", "e4", "e5"} {
		require.NoError(t, keys.Push(ctx, security.RecentEventsKey, v))
	}

	m, err := monitor.New(&mockStats{}, keys, monitor.WithRecentEventsLimit(3))
	require.NoError(t, err)
	m.PerformCleanup(ctx)

	assert.Equal(t, []string{"e5", "e4", "e3"}, keys.List(security.RecentEventsKey))

	trim := &mockKeyStore{}
	trim.On("Trim", mock.Anything, "custom:events", int64(0), int64(999)).Return(nil)
	trim.On("Keys", mock.Anything, mock.Anything).Return([]string{}, nil)
	m, err = monitor.New(&mockStats{}, trim, monitor.WithRecentEventsKey("custom:events"))
	require.NoError(t, err)
	m.PerformCleanup(ctx)
	trim.AssertExpectations(t)
}

func TestMonitor_PerformSecurityCheck_Alert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name      string
		threats   int64
		wantAlert bool
	}{
		{"at threshold", 10, false},
		{"above threshold", 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := &syncBuffer{}
			reg := prometheus.NewRegistry()
			stats := &mockStats{}
			stats.On("Stats", mock.Anything).Return(activeStats(tt.threats), nil)

			m, err := monitor.New(stats, security.NewMemoryKeyStore(nil),
				monitor.WithLogger(logger.New(logger.WithOutput(out), logger.WithJSONFormatter())),
				monitor.WithRegisterer(reg),
			)
			require.NoError(t, err)

			m.PerformSecurityCheck(ctx)

			assert.Equal(t, tt.wantAlert, bytes.Contains([]byte(out.String()), []byte(`"level":"CRITICAL"`)))
			assert.Equal(t, float64(tt.threats), counterValue(t, reg, "sentinel_monitor_threats_last_hour"))
			want := 0.0
			if tt.wantAlert {
				want = 1
			}
			assert.Equal(t, want, counterValue(t, reg, "sentinel_monitor_alerts_total"))
		})
	}

	t.Run("stats failure still sweeps", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(security.Stats{}, context.Canceled)
		keys := &mockKeyStore{}
		keys.On("Keys", mock.Anything, security.PrefixBlacklist).Return([]string{}, nil).Once()
		keys.On("Keys", mock.Anything, security.PrefixFailedAttempts).Return([]string{}, nil).Once()

		m, err := monitor.New(stats, keys)
		require.NoError(t, err)
		m.PerformSecurityCheck(ctx)
		keys.AssertExpectations(t)
	})
}

func TestMonitor_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("start runs an initial pass and is idempotent", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(activeStats(1), nil)
		reg := prometheus.NewRegistry()

		m, err := monitor.New(stats, security.NewMemoryKeyStore(nil), monitor.WithRegisterer(reg))
		require.NoError(t, err)

		require.NoError(t, m.Start(ctx))
		stats.AssertNumberOfCalls(t, "Stats", 1)
		assert.Equal(t, monitor.StateRunning, m.State())
		assert.Equal(t, 1.0, counterValue(t, reg, "sentinel_monitor_running"))
		assert.NoError(t, m.Healthcheck(ctx))

		require.NoError(t, m.Start(ctx))
		stats.AssertNumberOfCalls(t, "Stats", 1)

		require.NoError(t, m.Stop())
		require.NoError(t, m.Stop())
		assert.Equal(t, monitor.StateStopped, m.State())
		assert.Equal(t, 0.0, counterValue(t, reg, "sentinel_monitor_running"))
		assert.ErrorIs(t, m.Healthcheck(ctx), monitor.ErrNotRunning)
	})

	t.Run("failing initial pass leaves the monitor stopped", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Run(func(mock.Arguments) { panic("boom") })

		m, err := monitor.New(stats, security.NewMemoryKeyStore(nil))
		require.NoError(t, err)

		err = m.Start(ctx)
		assert.ErrorIs(t, err, monitor.ErrStartFailed)
		assert.Equal(t, monitor.StateStopped, m.State())
		assert.NoError(t, m.Stop())
	})

	t.Run("loops keep ticking", func(t *testing.T) {
		t.Parallel()
		var checks, trims atomic.Int32
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Run(func(mock.Arguments) { checks.Add(1) }).Return(activeStats(0), nil)
		keys := &mockKeyStore{}
		keys.On("Keys", mock.Anything, mock.Anything).Return([]string{}, nil)
		keys.On("Trim", mock.Anything, security.RecentEventsKey, int64(0), int64(999)).
			Run(func(mock.Arguments) { trims.Add(1) }).Return(nil)

		m, err := monitor.New(stats, keys,
			monitor.WithCheckInterval(10*time.Millisecond),
			monitor.WithCleanupInterval(10*time.Millisecond),
		)
		require.NoError(t, err)
		require.NoError(t, m.Start(ctx))
		t.Cleanup(func() { _ = m.Stop() })

		require.Eventually(t, func() bool {
			return checks.Load() >= 3 && trims.Load() >= 2
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("emergency shutdown stops", func(t *testing.T) {
		t.Parallel()
		out := &syncBuffer{}
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(activeStats(0), nil)

		m, err := monitor.New(stats, security.NewMemoryKeyStore(nil),
			monitor.WithLogger(logger.New(logger.WithOutput(out), logger.WithJSONFormatter())))
		require.NoError(t, err)
		require.NoError(t, m.Start(ctx))

		require.NoError(t, m.EmergencyShutdown("key store compromised"))
		assert.Equal(t, monitor.StateStopped, m.State())
		assert.Contains(t, out.String(), "key store compromised")
		assert.Contains(t, out.String(), `"level":"CRITICAL"`)
	})

	t.Run("run stops on context cancel", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(activeStats(0), nil)
		m, err := monitor.New(stats, security.NewMemoryKeyStore(nil))
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- m.Run(runCtx)() }()

		require.Eventually(t, func() bool { return m.State() == monitor.StateRunning }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not return")
		}
		assert.Equal(t, monitor.StateStopped, m.State())
	})
}

func TestMonitor_Status(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	stats := &mockStats{}
	stats.On("Stats", mock.Anything).Return(activeStats(4), nil).Once()
	m, err := monitor.New(stats, security.NewMemoryKeyStore(nil))
	require.NoError(t, err)

	st := m.Status(ctx)
	assert.False(t, st.Active)
	assert.Nil(t, st.Stats)
	assert.Nil(t, st.Healthy)

	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { _ = m.Stop() })

	stats.On("Stats", mock.Anything).Return(activeStats(5), nil).Once()
	st = m.Status(ctx)
	assert.True(t, st.Active)
	require.NotNil(t, st.Stats)
	assert.Equal(t, int64(5), st.HighSeverityLastHour)
	assert.Equal(t, security.StatusActive, st.Stats.Status)

	stats.On("Stats", mock.Anything).Return(security.Stats{Status: security.StatusError}, errors.New("cancelled")).Once()
	st = m.Status(ctx)
	assert.True(t, st.Active)
	require.NotNil(t, st.Healthy)
	assert.False(t, *st.Healthy)
	assert.Equal(t, "cancelled", st.Error)
}
