package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/security"
)

// EventStore persists security events in SQLite. Timestamps are stored as
// Unix milliseconds.
type EventStore struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
	ready  atomic.Bool
}

var _ security.EventStore = (*EventStore)(nil)

// NewEventStore builds the store and checks whether the events table exists.
func NewEventStore(ctx context.Context, db *sql.DB, log *slog.Logger) (*EventStore, error) {
	if log == nil {
		log = logger.Discard()
	}
	s := &EventStore{db: db, table: security.EventsTable, logger: log}

	ok, err := s.checkSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s schema: %w", s.table, err)
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

func (s *EventStore) Insert(ctx context.Context, event security.Event) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	details, err := event.DataJSON()
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}
	var severity sql.NullString
	if event.Severity != "" {
		severity = sql.NullString{String: string(event.Severity), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (id, type, severity, details, timestamp) VALUES (?, ?, ?, ?, ?)`,
		event.ID.String(), event.Type, severity, string(details), event.Timestamp.UnixMilli())
	return s.fail(err)
}

func (s *EventStore) Count(ctx context.Context, filter security.CountFilter) (int64, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}

	q := `SELECT count(*) FROM ` + s.table + ` WHERE timestamp >= ?`
	args := []any{filter.Since.UnixMilli()}
	if len(filter.Severities) > 0 {
		q += ` AND severity IN (?` + strings.Repeat(`, ?`, len(filter.Severities)-1) + `)`
		for _, sev := range filter.Severities {
			args = append(args, string(sev))
		}
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, s.fail(err)
	}
	return n, nil
}

func (s *EventStore) checkSchema(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, s.table).Scan(&n)
	if err != nil {
		return false, err
	}
	s.ready.Store(n > 0)
	return n > 0, nil
}

func (s *EventStore) ensureSchema(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	ok, err := s.checkSchema(ctx)
	if err != nil {
		return errors.Join(security.ErrStoreUnavailable, err)
	}
	if !ok {
		return security.ErrSchemaUnavailable
	}
	return nil
}

func (s *EventStore) fail(err error) error {
	switch {
	case err == nil:
		return nil
	case isNoSuchTable(err):
		s.ready.Store(false)
		return errors.Join(security.ErrSchemaUnavailable, err)
	case errors.Is(err, sql.ErrConnDone):
		return errors.Join(security.ErrStoreUnavailable, err)
	default:
		return err
	}
}

func isNoSuchTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
