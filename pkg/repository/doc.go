// Package repository loads and persists rule sets.
//
// The engine consumes an already-materialized, ordered rule set per call;
// this package owns where those sets come from and how they are cached.
// Four implementations share one interface:
//
//   - Memory: mutable in-process store, used by tests and the ad-hoc API.
//   - SQL: sqlx-backed store for SQLite (development) and PostgreSQL
//     (production), reading the legacy row format with string-encoded
//     criteria and sub-rule JSON.
//   - File: read-only rule packs from a directory, with an fsnotify
//     watcher that reloads on change and keeps serving the last good
//     packs when a reload fails.
//   - Git: read-only rule packs from a cloned repository, refreshed by
//     polling.
//
// Wrap any of them in Caching to memoize rule sets per (type, area) with
// a TTL; mutations invalidate the cache.
//
// # Load Discipline
//
// A rule set loads wholesale or not at all: any invalid definition
// rejects the whole set with the rule model's accumulated error list, so
// a half-broken area can never be half-enforced. Duplicate sequence
// numbers are legal but logged as a configuration smell.
package repository
