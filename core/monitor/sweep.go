package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/sentinel/core/logger"
)

// sweep deletes every key under prefix whose TTL is zero or negative. Keys
// without an expiry report -1 and are removed too. A failure on one key does
// not stop the sweep; the deleted count is returned alongside any errors.
func (m *Monitor) sweep(ctx context.Context, prefix string) (int, error) {
	keys, err := m.keys.Keys(ctx, prefix)
	if err != nil {
		m.metrics.sweepErrors.WithLabelValues(prefix).Inc()
		return 0, fmt.Errorf("list %s keys: %w", prefix, err)
	}

	var (
		expired []string
		errs    []error
	)
	for _, key := range keys {
		ttl, err := m.keys.TTL(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("ttl %s: %w", key, err))
			continue
		}
		if ttl <= 0 {
			expired = append(expired, key)
		}
	}

	deleted := 0
	if len(expired) > 0 {
		if err := m.keys.Delete(ctx, expired...); err != nil {
			errs = append(errs, fmt.Errorf("delete %s keys: %w", prefix, err))
		} else {
			deleted = len(expired)
		}
	}

	if len(errs) > 0 {
		m.metrics.sweepErrors.WithLabelValues(prefix).Inc()
	}
	if deleted > 0 {
		m.metrics.deleted.WithLabelValues(prefix).Add(float64(deleted))
		m.logger.DebugContext(ctx, "swept expired keys", logger.Prefix(prefix), logger.Count("deleted", deleted))
	}
	return deleted, errors.Join(errs...)
}
