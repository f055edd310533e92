// Package store provides persistent storage for explainit.
//
// # Architecture
//
// Persistence is split in two layers:
//
//   - KV: a simple key-value backend holding opaque JSON documents
//   - Collections: the history list and favorites set, stored under the
//     "history" and "favorites" keys of a KV
//
// SQLiteStore implements KV with modernc.org/sqlite. MockStore implements KV in
// memory for tests.
//
// # Invariants
//
// History is always most-recent-first and never longer than the limit reported by
// the LimitFunc at insert time; the oldest items are evicted on insert.
//
// Favorites hold at most one entry per exact Text value. AddFavorite is a no-op for
// a text that is already saved. IsFavorite checks by text, not id.
//
// Each Collections method performs its read-modify-write under one mutex, so
// mutations are applied in call order and never interleave. Returned slices are
// decoded fresh on every call; editing them does not change storage.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// Database file locations:
//
//   - Default: ~/.local/share/explainit/explainit.db
//   - Testing: :memory: (in-memory database)
package store
