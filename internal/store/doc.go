// Package store provides a SQLite-backed journal of finished compilations.
//
// Every compilation the driver finishes, successful or not, is appended as
// one row keyed by its request id. Rows carry the logical seq stamped by
// the driver's clock, the specialization, the content hashes of the
// specialization and of its typed IR, the outcome and, for successes, the
// printed lowered function.
//
// # Ordering
//
// History queries order by seq ASC, request_id ASC COLLATE BINARY, never by
// wall time, so a journal replayed into a fresh store reads back
// identically.
//
// # Database Configuration
//
// Open passes journal_mode=WAL, synchronous=NORMAL and busy_timeout=5000
// as go-sqlite3 DSN parameters and keeps a single connection. Older
// journals are upgraded by the migrations in store.go, tracked with
// PRAGMA user_version.
//
// Signatures are stored as canonical JSON (ir.MarshalCanonical).
package store
