// Package store persists the output of time-agnostic queries.
//
// Three sinks are provided:
//   - SQL: every snapshot of a run becomes a named graph in a SQLite or
//     PostgreSQL database, tagged with its dcterms:date
//   - JSON-LD: the same named graphs written as one JSON-LD document
//   - HistoryCache: a BadgerDB cache of reconstructed entity histories,
//     used by the engine to skip replaying deltas across runs
//
// None of them is a source of truth. Writes are at-least-once and each
// snapshot is written in its own transaction, so an interrupted run leaves
// the snapshots it completed.
//
// # Database Configuration
//
// SQLite databases are opened with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// and versioned through PRAGMA user_version. PostgreSQL databases are
// reached through the pgx database/sql driver and only get the base schema.
//
// Graph fingerprints use ir.GraphFingerprint (canonical JSON, SHA-256).
package store
