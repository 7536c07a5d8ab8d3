// Package history reconstructs past states of versioned records from their
// diff logs and reverts single historical edits.
//
// Engine holds the pure algorithms. It performs no I/O and never mutates
// its inputs:
//   - StateAtVersion: the snapshot as it was once a version's edit applied
//   - BuildView: that snapshot paired with the prior value of every field
//     the version touched
//   - UndoVersion: latest snapshot with one version's edit reverted and
//     every later edit kept
//
// Service composes an Engine with a RecordStore and a DiffLog. It is the
// only place where saves compute diffs and append log entries.
//
// Versioning: a record is at version 0 (CreationVersion) when created.
// Each save that changes the record appends one DiffEntry whose Version is
// the record version it produced, so entry versions run 1..N without
// gaps. Version 0 has no entry; its attribution comes from the record's
// creation metadata.
package history
