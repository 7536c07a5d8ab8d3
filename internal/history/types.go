package history

import (
	"time"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/value"
)

// CreationVersion is the synthetic version of a freshly created record.
const CreationVersion int64 = 0

// Attribution records who made a change and why.
type Attribution struct {
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// Actor supplies attribution for a change.
type Actor interface {
	Attribution() Attribution
}

// Session is the plain Actor implementation.
type Session struct {
	Username string
	Reason   string
}

// Attribution implements Actor.
func (s Session) Attribution() Attribution {
	return Attribution{Username: s.Username, Reason: s.Reason}
}

// Record is a versioned entity. Fields holds only the current values;
// history lives in the diff log.
type Record struct {
	ID         string       `json:"id"`
	Collection string       `json:"collection"`
	Fields     value.Object `json:"fields"`
	Version    int64        `json:"version"`
	CreatedBy  Attribution  `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// DiffEntry is one immutable log entry. Version is the record version the
// entry produced. Checksum is the fingerprint of the snapshot after the
// entry was applied.
type DiffEntry struct {
	EntityID string       `json:"entity_id"`
	Version  int64        `json:"version"`
	Payload  diff.Payload `json:"payload"`
	User     string       `json:"user"`
	Reason   string       `json:"reason,omitempty"`
	At       time.Time    `json:"at"`
	Checksum string       `json:"checksum"`
}

// By returns the entry's attribution.
func (e DiffEntry) By() Attribution {
	return Attribution{Username: e.User, Reason: e.Reason}
}

// View pairs the state at a version with the value each touched field held
// immediately before that version's edit. Fields that did not exist before
// the edit are absent from PreviousValues.
type View struct {
	Version        int64        `json:"version"`
	Current        value.Object `json:"current"`
	PreviousValues value.Object `json:"previous_values"`
	Changed        []string     `json:"changed"`
	By             Attribution  `json:"by"`
	At             time.Time    `json:"at"`
}

// UndoResult is the latest snapshot with one version's edit reverted.
// Partial lists array or nested fields the undone version changed. They
// were reverted only if no later version touched them.
type UndoResult struct {
	Version  int64        `json:"version"`
	Snapshot value.Object `json:"snapshot"`
	By       Attribution  `json:"by"`
	Partial  []string     `json:"partial,omitempty"`
}

// HistoryItem is one step of a record's history listing. Version 0 is the
// creation step.
type HistoryItem struct {
	Version int64     `json:"version"`
	User    string    `json:"user"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
	Fields  []string  `json:"fields"`
	Comment string    `json:"comment"`
}

// Order selects the direction of a diff log read.
type Order int

const (
	Ascending Order = iota
	Descending
)
