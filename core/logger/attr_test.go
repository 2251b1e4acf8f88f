package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sentinel/core/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("stats", slog.String("status", "ACTIVE"), slog.Int("threats", 2))
	require.Equal(t, "stats", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "status", g[0].Key)
	assert.Equal(t, "threats", g[1].Key)
}

// ============================================================================
// Error Handling Tests
// ============================================================================

func TestErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "0", g[0].Key)
	assert.Equal(t, "2", g[1].Key)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

// ============================================================================
// Timing Tests
// ============================================================================

func TestDurationAndInterval(t *testing.T) {
	t.Parallel()
	d := 5 * time.Minute

	attr := logger.Duration(d)
	require.Equal(t, "duration", attr.Key)
	assert.Equal(t, d, attr.Value.Duration())

	attr = logger.Interval(d)
	require.Equal(t, "interval", attr.Key)
	assert.Equal(t, d, attr.Value.Duration())
}

func TestElapsed(t *testing.T) {
	t.Parallel()
	start := time.Now().Add(-50 * time.Millisecond)
	attr := logger.Elapsed(start)
	require.Equal(t, "elapsed", attr.Key)
	assert.GreaterOrEqual(t, attr.Value.Duration(), 50*time.Millisecond)
}

// ============================================================================
// Metadata Tests
// ============================================================================

func TestStringAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		val  string
	}{
		{"component", logger.Component("monitor"), "component", "monitor"},
		{"event", logger.Event("sql_injection"), "event", "sql_injection"},
		{"action", logger.Action("sweep"), "action", "sweep"},
		{"result", logger.Result("success"), "result", "success"},
		{"severity", logger.Severity("HIGH"), "severity", "HIGH"},
		{"user id", logger.UserID("u-1"), "user_id", "u-1"},
		{"prefix", logger.Prefix("lockout:"), "prefix", "lockout:"},
		{"status", logger.Status("DEGRADED"), "status", "DEGRADED"},
		{"reason", logger.Reason("db lost"), "reason", "db lost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.val, tt.attr.Value.String())
		})
	}
}

func TestEmptyValuesAreDropped(t *testing.T) {
	t.Parallel()
	assert.True(t, logger.Severity("").Equal(slog.Attr{}))
	assert.True(t, logger.UserID("").Equal(slog.Attr{}))
	assert.True(t, logger.Reason("").Equal(slog.Attr{}))
	assert.True(t, logger.Key("k", nil).Equal(slog.Attr{}))
}

func TestCountAndKey(t *testing.T) {
	t.Parallel()
	attr := logger.Count("deleted", 3)
	require.Equal(t, "deleted", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())

	attr = logger.Key("ttl", 120)
	require.Equal(t, "ttl", attr.Key)
	assert.Equal(t, int64(120), attr.Value.Int64())
}
