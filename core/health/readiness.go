package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/sentinel/core/logger"
)

// Check verifies a single dependency.
type Check func(ctx context.Context) error

// Readiness runs every check in order and answers "READY", or 503 on the first
// failure. Failures are logged, never exposed in the response body.
//
//	mux.HandleFunc("GET /health/ready", health.Readiness(log,
//		pg.Healthcheck(pool),
//		redis.Healthcheck(client),
//		mon.Healthcheck,
//	))
func Readiness(log *slog.Logger, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for i, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component("health"),
					slog.Int("check", i),
					logger.Error(err))
				writeText(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
				return
			}
		}
		writeText(w, http.StatusOK, "READY")
	}
}
