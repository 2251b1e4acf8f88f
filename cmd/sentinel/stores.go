package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/sentinel/core/health"
	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/security"
	"github.com/dmitrymomot/sentinel/integration/database/pg"
	"github.com/dmitrymomot/sentinel/integration/database/redis"
	"github.com/dmitrymomot/sentinel/integration/database/sqlite"
)

// stores bundles the selected backends with their readiness checks and
// shutdown hooks.
type stores struct {
	events  security.EventStore
	keys    security.KeyStore
	checks  []health.Check
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg Config, log *slog.Logger) (*stores, error) {
	s := &stores{}

	if err := s.openKeyStore(ctx, cfg, log); err != nil {
		s.close()
		return nil, err
	}
	if err := s.openEventStore(ctx, cfg, log); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *stores) openKeyStore(ctx context.Context, cfg Config, log *slog.Logger) error {
	switch cfg.KeyStore {
	case backendRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.checks = append(s.checks, redis.Healthcheck(client))
		s.keys = redis.NewKeyStore(client, cfg.Redis.ScanBatchSize)
	case backendMemory:
		log.WarnContext(ctx, "using in-process key store, counters are not shared between instances",
			logger.Component("key_store"))
		s.keys = security.NewMemoryKeyStore(nil)
	default:
		return fmt.Errorf("unknown key store %q", cfg.KeyStore)
	}
	return nil
}

func (s *stores) openEventStore(ctx context.Context, cfg Config, log *slog.Logger) error {
	switch cfg.EventStore {
	case backendPostgres:
		pool, err := pg.Connect(ctx, cfg.DB)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)
		s.checks = append(s.checks, pg.Healthcheck(pool))

		// A failed migration leaves the store degraded rather than fatal.
		if err := pg.Migrate(ctx, pool, log.With(logger.Component("migration"))); err != nil {
			log.ErrorContext(ctx, "failed to migrate database", logger.Component("database.migration"), logger.Error(err))
		}
		events, err := pg.NewEventStore(ctx, pool, pg.WithLogger(log))
		if err != nil {
			return err
		}
		s.events = events
	case backendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.checks = append(s.checks, sqlite.Healthcheck(db))

		if err := sqlite.Migrate(ctx, db, log.With(logger.Component("migration"))); err != nil {
			log.ErrorContext(ctx, "failed to migrate database", logger.Component("database.migration"), logger.Error(err))
		}
		events, err := sqlite.NewEventStore(ctx, db, log)
		if err != nil {
			return err
		}
		s.events = events
	case backendMemory:
		s.events = security.NewMemoryEventStore()
	default:
		return fmt.Errorf("unknown event store %q", cfg.EventStore)
	}
	return nil
}
