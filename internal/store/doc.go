// Package store persists approval decisions in SQLite.
//
// Every request that passes through an approval gate is resolved exactly once
// (approved, denied, timeout or closed). The gate hands each resolution to a
// Recorder; SQLiteStore is that Recorder and keeps an append-only ledger that
// operators can list with `talkai-gateway approvals`.
//
// The database runs in WAL mode and the schema is created on open.
package store
