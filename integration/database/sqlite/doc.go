// Package sqlite stores security events in an embedded SQLite database.
//
// It is the single-node alternative to the pg package: Open applies WAL
// pragmas and limits the pool to one connection, Migrate applies the embedded
// goose migrations, and EventStore implements security.EventStore. A missing
// table surfaces as security.ErrSchemaUnavailable.
package sqlite
