// Package store provides SQLite-backed persistence for rewind records and
// their diff logs.
//
// Tables:
//   - records: the current fields and version of every record, plus its
//     creation attribution
//   - diffs: the append-only diff log, one row per (entity_id, version)
//
// # Invariants
//
// Append-only log:
//   - Diff rows are never updated (enforced by trigger)
//   - Diff rows are removed only by cascading deletion of their record
//
// Gapless versions:
//   - AppendDiff updates the record and inserts its diff row in one
//     transaction, and only when the stored version is exactly one below
//     the new entry's version (optimistic concurrency)
//
// Deterministic reads:
//   - Records are listed ORDER BY created_at, id COLLATE BINARY
//   - Diff logs are read ORDER BY version in the requested direction
//
// Fields and payloads are stored as RFC 8785 canonical JSON; timestamps as
// RFC 3339 UTC text.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity (cascade deletes)
package store
