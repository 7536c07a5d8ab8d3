package history

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/value"
)

// Engine runs reconstruction, change views and selective undo over an
// in-memory snapshot and diff log. Every method expects the log in
// descending version order, gapless, with its newest entry matching the
// latest snapshot.
//
// Thread-safety: Engine is stateless apart from its logger and safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{logger: logger}
}

// StateAtVersion returns the snapshot as it existed immediately after the
// target version's edit was applied. Every entry newer than target is
// unpatched, newest first.
func (e *Engine) StateAtVersion(latest value.Object, log []DiffEntry, target int64) (value.Object, error) {
	if err := checkOrder(log); err != nil {
		return nil, err
	}
	if err := checkReachable(log, target); err != nil {
		return nil, err
	}
	return unpatchAbove(latest, log, target)
}

// BuildView returns the state at target together with the value each
// field touched by target's entry held immediately before that edit.
// Entries older than target are never consulted. For CreationVersion the
// view holds the creation state and no previous values.
func (e *Engine) BuildView(latest value.Object, log []DiffEntry, target int64) (*View, error) {
	current, err := e.StateAtVersion(latest, log, target)
	if err != nil {
		return nil, err
	}

	view := &View{
		Version:        target,
		Current:        current,
		PreviousValues: value.Object{},
		Changed:        []string{},
	}
	if target == CreationVersion {
		return view, nil
	}

	entry, _ := findEntry(log, target)
	before, err := diff.Unpatch(current, entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("unpatch version %d: %w", target, err)
	}
	for _, field := range entry.Payload.Fields() {
		if v, ok := before[field]; ok {
			view.PreviousValues[field] = v
		}
	}
	view.Changed = entry.Payload.Fields()
	view.By = entry.By()
	view.At = entry.At
	return view, nil
}

// unpatchAbove unpatches every entry with version > target from a copy of
// latest. log must be validated.
func unpatchAbove(latest value.Object, log []DiffEntry, target int64) (value.Object, error) {
	state := latest.Clone()
	for _, entry := range log {
		if entry.Version <= target {
			break
		}
		next, err := diff.Unpatch(state, entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("unpatch version %d: %w", entry.Version, err)
		}
		state = next
	}
	return state, nil
}

// checkOrder requires strictly descending, gapless versions >= 1.
func checkOrder(log []DiffEntry) error {
	for i, entry := range log {
		if entry.Version < 1 {
			return fmt.Errorf("%w: entry %d has version %d", ErrLogOrder, i, entry.Version)
		}
		if i > 0 && entry.Version != log[i-1].Version-1 {
			return fmt.Errorf("%w: version %d follows %d", ErrLogOrder, entry.Version, log[i-1].Version)
		}
	}
	return nil
}

// checkReachable requires target to be the creation version with the log
// reaching down to version 1, or a version present in the log.
func checkReachable(log []DiffEntry, target int64) error {
	if target < CreationVersion {
		return newVersionNotFound(target)
	}
	if target == CreationVersion {
		if len(log) > 0 && log[len(log)-1].Version != 1 {
			return newVersionNotFound(target)
		}
		return nil
	}
	if _, ok := findEntry(log, target); !ok {
		return newVersionNotFound(target)
	}
	return nil
}

func findEntry(log []DiffEntry, version int64) (DiffEntry, bool) {
	for _, entry := range log {
		if entry.Version == version {
			return entry, true
		}
	}
	return DiffEntry{}, false
}
