package history

import (
	"fmt"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/value"
)

// UndoVersion reverts the edit made at target while keeping every later
// edit. The result is attributed to actor.
//
// Fields the entry added, removed or replaced take the value (or absence)
// they had immediately before target, reconstructed by unpatching every
// entry from the newest down to target. Fields the entry changed
// structurally (ArrayDelta or Nested) are restored only while their latest
// value still equals their value at target, that is when no later version
// touched them. Otherwise the latest value is kept, since later edits may
// have moved the elements the entry addressed by index. Structural fields
// are listed in UndoResult.Partial either way and a *PartialUndoError is
// returned alongside the result.
//
// Fields the entry did not touch keep their latest values.
func (e *Engine) UndoVersion(latest value.Object, log []DiffEntry, target int64, actor Actor) (*UndoResult, error) {
	by, err := attributionOf(actor)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(log); err != nil {
		return nil, err
	}
	entry, ok := findEntry(log, target)
	if !ok {
		return nil, newVersionNotFound(target)
	}

	at, err := unpatchAbove(latest, log, target)
	if err != nil {
		return nil, err
	}
	before, err := diff.Unpatch(at, entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("unpatch version %d: %w", target, err)
	}

	result := latest.Clone()
	var partial []string
	for _, field := range entry.Payload.Fields() {
		d := entry.Payload[field]
		if !diff.IsStructural(d) {
			if v, ok := before[field]; ok {
				result[field] = value.Clone(v)
			} else {
				delete(result, field)
			}
			continue
		}

		partial = append(partial, field)
		if !value.Equal(latest[field], at[field]) {
			e.logger.Warn("structural field changed after undone version, keeping latest value",
				"field", field,
				"version", target,
			)
			continue
		}
		e.logger.Warn("structural field reverted",
			"field", field,
			"version", target,
		)
		if v, ok := before[field]; ok {
			result[field] = value.Clone(v)
		} else {
			delete(result, field)
		}
	}

	res := &UndoResult{
		Version:  target,
		Snapshot: result,
		By:       by,
		Partial:  partial,
	}
	if len(partial) > 0 {
		return res, &PartialUndoError{Version: target, Fields: partial}
	}
	return res, nil
}

func attributionOf(actor Actor) (Attribution, error) {
	if actor == nil {
		return Attribution{}, ErrNoActor
	}
	a := actor.Attribution()
	if a.Username == "" {
		return Attribution{}, ErrNoActor
	}
	return a, nil
}
