// Package diff computes structural differences between two snapshots and
// applies them forward (Patch) or backward (Unpatch).
//
// A Payload maps field names to a Delta. Delta is a closed set of variants:
//
//   - Added: the field did not exist before
//   - Removed: the field no longer exists
//   - Modified: whole-value replacement
//   - ArrayDelta: ordered insert/delete/replace/move operations on a sequence
//   - Nested: a recursive Payload keyed by object field or array index
//
// Every Delta has an exact inverse, so for any d = Diff(a, b):
//
//	Patch(a, d) == b
//	Unpatch(b, d) == a
//
// Arrays whose elements are objects carrying a unique identity key are
// diffed by identity, not position. When the identity sequence is
// unchanged and exactly one element differs, the change is recorded as a
// Nested delta keyed by that index. That distinction matters to selective
// undo, which can revert a Nested delta on one element but must report an
// ArrayDelta as only partially restorable.
package diff
