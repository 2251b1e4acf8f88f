package security_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sentinel/core/security"
)

// mockEventStore implements security.EventStore for testing
type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) Insert(ctx context.Context, event security.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventStore) Count(ctx context.Context, filter security.CountFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newService(t *testing.T, events security.EventStore, keys security.KeyStore, opts ...security.Option) *security.Service {
	t.Helper()
	svc, err := security.New(events, keys, append([]security.Option{security.WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := security.New(nil, security.NewMemoryKeyStore(nil))
	assert.ErrorIs(t, err, security.ErrNoEventStore)

	_, err = security.New(security.NewMemoryEventStore(), nil)
	assert.ErrorIs(t, err, security.ErrNoKeyStore)

	svc, err := security.NewFromConfig(security.Config{ScoreThreshold: 50}, security.NewMemoryEventStore(), security.NewMemoryKeyStore(nil))
	require.NoError(t, err)
	assert.Equal(t, 50, svc.Config().ScoreThreshold)
	assert.Equal(t, 900*time.Second, svc.Config().LockoutDuration)
	assert.Equal(t, security.RecentEventsKey, svc.Config().RecentEventsKey)
}

func TestService_LogEvent(t *testing.T) {
	t.Parallel()

	t.Run("persists and buffers the event", func(t *testing.T) {
		t.Parallel()
		events := security.NewMemoryEventStore()
		keys := security.NewMemoryKeyStore(clock)
		svc := newService(t, events, keys)

		ev := svc.LogEvent(context.Background(), "xss", security.SeverityHigh, map[string]any{"ip": "10.0.0.1"})

		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", ev.ID.String())
		assert.Equal(t, fixedNow, ev.Timestamp)
		require.Len(t, events.Events(), 1)
		assert.Equal(t, ev.ID, events.Events()[0].ID)

		buffered := keys.List(security.RecentEventsKey)
		require.Len(t, buffered, 1)
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(buffered[0]), &rec))
		assert.Equal(t, "xss", rec["type"])
		assert.Equal(t, "HIGH", rec["severity"])
		assert.Equal(t, "10.0.0.1", rec["ip"])
	})

	t.Run("missing schema is tolerated", func(t *testing.T) {
		t.Parallel()
		events := &mockEventStore{}
		events.On("Insert", mock.Anything, mock.Anything).Return(security.ErrSchemaUnavailable).Once()
		keys := security.NewMemoryKeyStore(clock)
		svc := newService(t, events, keys)

		assert.NotPanics(t, func() {
			svc.LogEvent(context.Background(), "login_failed", security.SeverityLow, nil)
		})
		assert.Len(t, keys.List(security.RecentEventsKey), 1)
		events.AssertExpectations(t)
	})

	t.Run("any store failure is swallowed", func(t *testing.T) {
		t.Parallel()
		events := security.NewMemoryEventStore()
		events.SetUnavailable(errors.New("connection reset"))
		keys := security.NewMemoryKeyStore(clock)
		keys.SetUnavailable(security.ErrStoreUnavailable)
		svc := newService(t, events, keys)

		ev := svc.LogEvent(context.Background(), "path_traversal", security.SeverityMedium, nil)
		assert.Equal(t, "path_traversal", ev.Type)
	})

	t.Run("unknown severity is dropped before insert", func(t *testing.T) {
		t.Parallel()
		events := &mockEventStore{}
		events.On("Insert", mock.Anything, mock.MatchedBy(func(ev security.Event) bool {
			return ev.Type == "xss" && ev.Severity == ""
		})).Return(nil).Once()
		svc := newService(t, events, security.NewMemoryKeyStore(clock))

		ev := svc.LogEvent(context.Background(), "xss", security.Severity("SEVERE"), nil)

		assert.Empty(t, ev.Severity)
		events.AssertExpectations(t)
	})

	t.Run("event data is copied", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, security.NewMemoryEventStore(), security.NewMemoryKeyStore(clock))
		data := map[string]any{"ip": "1.1.1.1"}

		ev := svc.LogEvent(context.Background(), "xss", security.SeverityHigh, data)
		data["ip"] = "2.2.2.2"

		assert.Equal(t, "1.1.1.1", ev.Data["ip"])
	})
}

func TestService_Stats(t *testing.T) {
	t.Parallel()

	seed := func(events *security.MemoryEventStore) {
		ctx := context.Background()
		add := func(age time.Duration, sev security.Severity) {
			require.NoError(t, events.Insert(ctx, security.NewEvent("t", sev, nil, fixedNow.Add(-age))))
		}
		add(10*time.Minute, security.SeverityHigh)
		add(20*time.Minute, security.SeverityCritical)
		add(30*time.Minute, security.SeverityLow)
		add(2*time.Hour, security.SeverityHigh)
		add(30*time.Hour, security.SeverityCritical)
	}

	t.Run("active when every store answers", func(t *testing.T) {
		t.Parallel()
		events := security.NewMemoryEventStore()
		seed(events)
		keys := security.NewMemoryKeyStore(clock)
		ctx := context.Background()
		require.NoError(t, keys.Set(ctx, security.BlacklistKey("10.0.0.1"), "1", time.Hour))
		require.NoError(t, keys.Set(ctx, security.BlacklistKey("10.0.0.2"), "1", time.Hour))
		require.NoError(t, keys.Set(ctx, security.LockoutKey("bob"), "1", time.Hour))

		stats, err := newService(t, events, keys).Stats(ctx)
		require.NoError(t, err)

		assert.Equal(t, security.StatusActive, stats.Status)
		assert.Equal(t, int64(2), stats.HighSeverityLastHour)
		assert.Equal(t, int64(4), stats.EventsLast24h)
		assert.Equal(t, 2, stats.BlacklistedIdentities)
		assert.Equal(t, fixedNow, stats.CheckedAt)
	})

	t.Run("degraded with zero counts when event store is unreachable", func(t *testing.T) {
		t.Parallel()
		events := security.NewMemoryEventStore()
		seed(events)
		events.SetUnavailable(security.ErrStoreUnavailable)

		stats, err := newService(t, events, security.NewMemoryKeyStore(clock)).Stats(context.Background())
		require.NoError(t, err)

		assert.Equal(t, security.StatusDegraded, stats.Status)
		assert.Zero(t, stats.HighSeverityLastHour)
		assert.Zero(t, stats.EventsLast24h)
	})

	t.Run("degraded when schema is missing", func(t *testing.T) {
		t.Parallel()
		events := &mockEventStore{}
		events.On("Count", mock.Anything, mock.Anything).Return(int64(0), security.ErrSchemaUnavailable)

		stats, err := newService(t, events, security.NewMemoryKeyStore(clock)).Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, security.StatusDegraded, stats.Status)
		events.AssertNumberOfCalls(t, "Count", 2)
	})

	t.Run("hourly query filters on elevated severities", func(t *testing.T) {
		t.Parallel()
		events := &mockEventStore{}
		events.On("Count", mock.Anything, security.CountFilter{
			Since:      fixedNow.Add(-time.Hour),
			Severities: []security.Severity{security.SeverityHigh, security.SeverityCritical},
		}).Return(int64(7), nil)
		events.On("Count", mock.Anything, security.CountFilter{
			Since: fixedNow.Add(-24 * time.Hour),
		}).Return(int64(40), nil)

		stats, err := newService(t, events, security.NewMemoryKeyStore(clock)).Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), stats.HighSeverityLastHour)
		assert.Equal(t, int64(40), stats.EventsLast24h)
		events.AssertExpectations(t)
	})

	t.Run("error on unexpected failure", func(t *testing.T) {
		t.Parallel()
		events := security.NewMemoryEventStore()
		events.SetUnavailable(errors.New("syntax error at or near"))

		stats, err := newService(t, events, security.NewMemoryKeyStore(clock)).Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, security.StatusError, stats.Status)
	})

	t.Run("key store outage only zeroes the blacklist", func(t *testing.T) {
		t.Parallel()
		events := security.NewMemoryEventStore()
		seed(events)
		keys := security.NewMemoryKeyStore(clock)
		keys.SetUnavailable(security.ErrStoreUnavailable)

		stats, err := newService(t, events, keys).Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, security.StatusDegraded, stats.Status)
		assert.Equal(t, int64(4), stats.EventsLast24h)
		assert.Zero(t, stats.BlacklistedIdentities)
	})

	t.Run("cancelled context is reported", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		stats, err := newService(t, security.NewMemoryEventStore(), security.NewMemoryKeyStore(clock)).Stats(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, security.StatusError, stats.Status)
	})
}
