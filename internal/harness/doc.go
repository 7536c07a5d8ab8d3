// Package harness runs record-history scenarios as executable tests.
//
// A scenario creates and edits records through history.Service and then
// asserts on history listings, reconstructed states, change views and
// selective undo.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: three_actor_chain
//	description: "Each edit is attributed to its author"
//	identity_key: id
//	steps:
//	  - op: create
//	    record: r
//	    user: John
//	    collection: people
//	    fields: { name: one }
//	  - op: save
//	    record: r
//	    user: Jane
//	    set: { name: two }
//	    unset: [nick]
//	  - op: undo
//	    record: r
//	    user: admin
//	    version: 1
//	assertions:
//	  - type: history_actors
//	    record: r
//	    users: [John, Jane, admin]
//	  - type: state_at
//	    record: r
//	    version: 1
//	    expect: { name: two }
//
// Steps name records by alias; the harness maps aliases to generated IDs.
// A save starts from the latest fields, replaces every field in set and
// deletes every field in unset.
//
// # Assertion Types
//
//   - history_actors: users of the history listing, creation first
//   - history_fields: changed fields listed for one version
//   - state_at: exact fields reconstructed at a version
//   - previous_values: previous values of the change view at a version
//   - latest: exact latest fields
//   - partial_undo: fields a dry-run undo of a version reports as partial
//   - array_changes: reconciliation actions for an array field at a version
//   - not_found: the version cannot be reconstructed
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with
// testutil.DeterministicClock and testutil.SequentialIDGenerator, so the
// trace of a scenario is identical across runs and can be compared with
// a golden file.
package harness
