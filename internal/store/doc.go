// Package store persists transcription jobs in SQLite.
//
// The Store owns the database connection, schema initialization, and the
// guarded status transitions (pending → processing → completed|failed) that
// the orchestrator drives. It also answers the questions the upload sweep and
// expiry sweep ask: which source files are still in use, and which job
// records have outlived their retention window.
//
// The database is treated as transient storage for recent jobs rather than a
// long-term archive. Schema changes bump the version in schema.go; users
// delete the database to adopt the new schema.
package store
