// Package logger provides structured logging utilities built on Go's standard slog package.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/sentinel/core/logger"
//
//	// Development: text format, debug level, stdout
//	log := logger.New(logger.WithDevelopment("sentinel"))
//
//	// Production: JSON format, info level, stdout
//	log := logger.New(logger.WithProduction("sentinel"))
//
//	log.Info("monitor started",
//		logger.Component("monitor"),
//		logger.Interval(5*time.Minute),
//	)
//
// # Levels
//
// In addition to the slog levels the package defines LevelCritical, rendered as
// "CRITICAL". It is reserved for records an operator must not miss:
//
//	log.Log(ctx, logger.LevelCritical, "emergency shutdown", logger.Reason("db lost"))
//
// ParseLevel maps configuration strings (debug, info, warn, error, critical) onto
// levels and falls back to info for anything else.
//
// # Attribute Helpers
//
// Helpers return an empty slog.Attr for nil or empty input, so they can be passed
// unconditionally:
//
//	log.Error("failed to persist security event",
//		logger.Error(err),             // dropped when err == nil
//		logger.Event("sql_injection"),
//		logger.Severity("HIGH"),
//	)
//
// Components in this module default to Discard() when no logger is configured.
package logger
