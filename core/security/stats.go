package security

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sentinel/core/logger"
)

// Status is the operational mode reported with statistics. All three values
// are steady states; none of them requires escalation by the caller.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDegraded Status = "DEGRADED"
	StatusError    Status = "ERROR"
)

// Stats is a snapshot of recent security activity.
type Stats struct {
	HighSeverityLastHour  int64     `json:"threatsLastHour"`
	EventsLast24h         int64     `json:"eventsLast24h"`
	BlacklistedIdentities int       `json:"blacklistedIdentities"`
	Status                Status    `json:"systemStatus"`
	CheckedAt             time.Time `json:"checkedAt"`
}

// Stats gathers the hourly elevated-threat count, the daily event count and
// the number of blacklisted identities concurrently. Failing figures are
// reported as zero and lower the status. An error is returned only when ctx
// is done.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.now()

	var (
		hourly, daily   int64
		blacklisted     int
		hourErr, dayErr error
		blacklistErr    error
	)

	var g errgroup.Group
	g.Go(func() error {
		hourly, hourErr = s.events.Count(ctx, CountFilter{
			Since:      now.Add(-time.Hour),
			Severities: []Severity{SeverityHigh, SeverityCritical},
		})
		return nil
	})
	g.Go(func() error {
		daily, dayErr = s.events.Count(ctx, CountFilter{Since: now.Add(-24 * time.Hour)})
		return nil
	})
	g.Go(func() error {
		keys, err := s.keys.Keys(ctx, PrefixBlacklist)
		blacklisted, blacklistErr = len(keys), err
		return nil
	})
	_ = g.Wait()

	stats := Stats{
		HighSeverityLastHour:  hourly,
		EventsLast24h:         daily,
		BlacklistedIdentities: blacklisted,
		Status:                StatusActive,
		CheckedAt:             now,
	}

	for _, err := range []error{hourErr, dayErr, blacklistErr} {
		if err == nil {
			continue
		}
		if IsDegradation(err) {
			if stats.Status == StatusActive {
				stats.Status = StatusDegraded
			}
			continue
		}
		stats.Status = StatusError
	}

	// Partial event counts are misleading; report both as zero.
	if hourErr != nil || dayErr != nil {
		stats.HighSeverityLastHour, stats.EventsLast24h = 0, 0
	}
	if blacklistErr != nil {
		stats.BlacklistedIdentities = 0
	}

	if stats.Status != StatusActive {
		s.logger.WarnContext(ctx, "security stats incomplete",
			logger.Status(string(stats.Status)),
			logger.Errors(hourErr, dayErr, blacklistErr),
		)
	}

	if err := ctx.Err(); err != nil {
		stats.Status = StatusError
		return stats, err
	}
	return stats, nil
}
