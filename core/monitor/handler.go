package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrymomot/sentinel/core/logger"
)

// StatusHandler serves Status as JSON. A stopped or unhealthy monitor still
// answers 200; the body carries the state.
func (m *Monitor) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := m.Status(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			m.logger.ErrorContext(r.Context(), "failed to encode monitor status", logger.Error(err))
		}
	}
}
