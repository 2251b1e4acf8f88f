package main

import (
	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/monitor"
	"github.com/dmitrymomot/sentinel/core/security"
	"github.com/dmitrymomot/sentinel/core/server"
	"github.com/dmitrymomot/sentinel/core/session"
	"github.com/dmitrymomot/sentinel/integration/auth/oidcauth"
	"github.com/dmitrymomot/sentinel/integration/database/pg"
	"github.com/dmitrymomot/sentinel/integration/database/redis"
	"github.com/dmitrymomot/sentinel/integration/database/sqlite"
)

// Backend selectors.
const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
)

type Config struct {
	AppName string `env:"APP_NAME" envDefault:"sentinel"`
	AppEnv  string `env:"APP_ENV" envDefault:"production"`
	// LogLevel overrides the level implied by AppEnv when set.
	LogLevel string `env:"LOG_LEVEL"`

	// KeyStore is redis or memory; EventStore is postgres, sqlite or memory.
	KeyStore   string `env:"KEY_STORE" envDefault:"redis"`
	EventStore string `env:"EVENT_STORE" envDefault:"postgres"`

	// SessionDir enables the service-account session when OIDC is configured.
	SessionDir string `env:"SESSION_DIR" envDefault:"data/session"`

	// BlockOnThreat blacklists clients whose request crosses the score threshold.
	BlockOnThreat bool `env:"SECURITY_BLOCK_ON_THREAT" envDefault:"false"`
	// TrustProxy reads the client IP from forwarding headers. Set it only
	// behind a proxy that rewrites them.
	TrustProxy bool `env:"SECURITY_TRUST_PROXY" envDefault:"false"`

	Redis    redis.Config
	DB       pg.Config
	SQLite   sqlite.Config
	Security security.Config
	Monitor  monitor.Config
	Session  session.Config
	OIDC     oidcauth.Config
	Server   server.Config
}

func (c Config) development() bool {
	return c.AppEnv == "development"
}

func (c Config) logOptions() []logger.Option {
	opts := []logger.Option{logger.WithProduction(c.AppName)}
	if c.development() {
		opts[0] = logger.WithDevelopment(c.AppName)
	}
	if c.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(c.LogLevel)))
	}
	return opts
}
