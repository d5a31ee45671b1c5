// Package queue persists import jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, claim
// semantics for workers, heartbeat tracking, stale-job recovery, retry
// scheduling, and the stats queries used by status output. Jobs move through
// queued, active, completed and failed; completed and failed are final unless
// an operator explicitly retries.
//
// The database is treated as transient storage for in-flight work rather than
// an archive. Schema changes bump the version in schema.go; operators clear the
// database to adopt the new schema.
package queue
