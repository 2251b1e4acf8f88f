package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/security"
)

// EventStore persists security events in PostgreSQL.
//
// Whether the table exists is checked when the store is built and again
// lazily until it appears; while it is missing every call returns
// security.ErrSchemaUnavailable without touching the table. Connection
// failures are joined with security.ErrStoreUnavailable.
type EventStore struct {
	pool   *pgxpool.Pool
	table  string
	ident  string
	logger *slog.Logger
	ready  atomic.Bool
}

var _ security.EventStore = (*EventStore)(nil)

// EventStoreOption configures an EventStore.
type EventStoreOption func(*EventStore)

// WithTable overrides the events table name.
func WithTable(name string) EventStoreOption {
	return func(s *EventStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) EventStoreOption {
	return func(s *EventStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewEventStore builds the store and runs the schema capability check. A
// missing table is logged, not returned; only a failed check is an error.
func NewEventStore(ctx context.Context, pool *pgxpool.Pool, opts ...EventStoreOption) (*EventStore, error) {
	s := &EventStore{
		pool:   pool,
		table:  security.EventsTable,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ident = pgx.Identifier{s.table}.Sanitize()

	ok, err := s.checkSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s schema: %w", s.table, classify(err))
	}
	if !ok {
		s.logger.WarnContext(ctx, "security events table is missing, events will not be persisted",
			slog.String("table", s.table))
	}
	return s, nil
}

// SchemaReady reports the result of the last capability check.
func (s *EventStore) SchemaReady() bool {
	return s.ready.Load()
}

// Insert writes event. A transaction stored in ctx with WithTx is used when present.
func (s *EventStore) Insert(ctx context.Context, event security.Event) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	details, err := event.DataJSON()
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}
	var severity *string
	if event.Severity != "" {
		v := string(event.Severity)
		severity = &v
	}

	q := `INSERT INTO ` + s.ident + ` (id, type, severity, details, timestamp) VALUES ($1, $2, $3, $4, $5)`
	args := []any{event.ID, event.Type, severity, details, event.Timestamp}

	var execErr error
	if tx, ok := TxFromContext(ctx); ok {
		_, execErr = tx.Exec(ctx, q, args...)
	} else {
		_, execErr = s.pool.Exec(ctx, q, args...)
	}
	return s.fail(execErr)
}

// Count returns the number of events matching filter.
func (s *EventStore) Count(ctx context.Context, filter security.CountFilter) (int64, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}

	q := `SELECT count(*) FROM ` + s.ident + ` WHERE timestamp >= $1`
	args := []any{filter.Since}
	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, sev := range filter.Severities {
			severities[i] = string(sev)
		}
		q += ` AND severity = ANY($2)`
		args = append(args, severities)
	}

	var n int64
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, s.fail(err)
	}
	return n, nil
}

func (s *EventStore) checkSchema(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, s.table).Scan(&exists); err != nil {
		return false, err
	}
	s.ready.Store(exists)
	return exists, nil
}

func (s *EventStore) ensureSchema(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	ok, err := s.checkSchema(ctx)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return security.ErrSchemaUnavailable
	}
	s.logger.InfoContext(ctx, "security events table is available", slog.String("table", s.table))
	return nil
}

// fail classifies err and forgets the schema when the table has gone away.
func (s *EventStore) fail(err error) error {
	if IsUndefinedTableError(err) {
		s.ready.Store(false)
	}
	return classify(err)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsUndefinedTableError(err):
		return errors.Join(security.ErrSchemaUnavailable, err)
	case IsConnectionError(err):
		return errors.Join(security.ErrStoreUnavailable, err)
	default:
		return err
	}
}
