package monitor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sentinel/core/monitor"
	"github.com/dmitrymomot/sentinel/core/security"
)

func getStatus(t *testing.T, m *monitor.Monitor) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	m.StatusHandler()(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMonitor_StatusHandler(t *testing.T) {
	t.Parallel()

	t.Run("stopped", func(t *testing.T) {
		t.Parallel()
		m, err := monitor.New(&mockStats{}, security.NewMemoryKeyStore(nil))
		require.NoError(t, err)

		body := getStatus(t, m)
		assert.Equal(t, false, body["active"])
		assert.NotContains(t, body, "threatsLastHour")
	})

	t.Run("running with stats flattened", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(activeStats(4), nil)

		m, err := monitor.New(stats, security.NewMemoryKeyStore(nil),
			monitor.WithCheckInterval(time.Hour), monitor.WithCleanupInterval(time.Hour))
		require.NoError(t, err)
		require.NoError(t, m.Start(context.Background()))
		defer m.Stop()

		body := getStatus(t, m)
		assert.Equal(t, true, body["active"])
		assert.Equal(t, float64(4), body["threatsLastHour"])
		assert.Equal(t, "ACTIVE", body["systemStatus"])
		assert.NotContains(t, body, "healthy")
	})

	t.Run("running but stats failing", func(t *testing.T) {
		t.Parallel()
		stats := &mockStats{}
		stats.On("Stats", mock.Anything).Return(security.Stats{}, errors.New("context canceled"))

		m, err := monitor.New(stats, security.NewMemoryKeyStore(nil),
			monitor.WithCheckInterval(time.Hour), monitor.WithCleanupInterval(time.Hour))
		require.NoError(t, err)
		require.NoError(t, m.Start(context.Background()))
		defer m.Stop()

		body := getStatus(t, m)
		assert.Equal(t, true, body["active"])
		assert.Equal(t, false, body["healthy"])
		assert.Equal(t, "context canceled", body["error"])
	})
}
