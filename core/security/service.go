package security

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sentinel/core/logger"
)

// EventsTable is the relational table events are written to.
const EventsTable = "security_events"

// Service evaluates threat patterns, records security events and aggregates
// statistics. Recording is best-effort: a store outage never reaches callers.
type Service struct {
	events    EventStore
	keys      KeyStore
	cfg       Config
	detectors []Detector
	agents    []string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Service backed by the given stores.
func New(events EventStore, keys KeyStore, opts ...Option) (*Service, error) {
	if events == nil {
		return nil, ErrNoEventStore
	}
	if keys == nil {
		return nil, ErrNoKeyStore
	}

	s := &Service{
		events:    events,
		keys:      keys,
		cfg:       DefaultConfig(),
		detectors: DefaultDetectors(),
		agents:    DefaultSuspiciousAgents(),
		logger:    logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromConfig creates a Service from configuration. Options override config values.
func NewFromConfig(cfg Config, events EventStore, keys KeyStore, opts ...Option) (*Service, error) {
	all := append([]Option{
		WithScoreThreshold(cfg.ScoreThreshold),
		WithLockoutDuration(cfg.LockoutDuration),
		WithRecentEventsKey(cfg.RecentEventsKey),
	}, opts...)
	return New(events, keys, all...)
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// LogEvent records an incident. The event is returned for the caller's own
// bookkeeping; whether it was persisted is deliberately not reported. An
// unknown severity is dropped and the event is recorded without one.
func (s *Service) LogEvent(ctx context.Context, eventType string, severity Severity, data map[string]any) Event {
	if severity != "" && !severity.Valid() {
		s.logger.WarnContext(ctx, "unknown security event severity, recording without one",
			logger.Event(eventType), logger.Severity(string(severity)))
		severity = ""
	}

	ev := NewEvent(eventType, severity, data, s.now())

	log := s.logger.With(
		logger.Event(ev.Type),
		logger.Severity(string(ev.Severity)),
		logger.Key("event_id", ev.ID.String()),
	)

	if err := s.events.Insert(ctx, ev); err != nil {
		switch {
		case errors.Is(err, ErrSchemaUnavailable):
			log.WarnContext(ctx, "security events table missing, event not persisted")
		default:
			log.ErrorContext(ctx, "failed to persist security event", logger.Error(err))
		}
	}

	s.remember(ctx, log, ev)

	if ev.Severity.Elevated() {
		log.WarnContext(ctx, "security event recorded")
	} else {
		log.DebugContext(ctx, "security event recorded")
	}

	return ev
}

// remember pushes the event onto the recent-events buffer. The monitor trims it.
func (s *Service) remember(ctx context.Context, log *slog.Logger, ev Event) {
	payload, err := ev.MarshalJSON()
	if err != nil {
		log.ErrorContext(ctx, "failed to encode security event", logger.Error(err))
		return
	}
	if err := s.keys.Push(ctx, s.cfg.RecentEventsKey, string(payload)); err != nil {
		log.WarnContext(ctx, "failed to buffer recent security event", logger.Error(err))
	}
}
