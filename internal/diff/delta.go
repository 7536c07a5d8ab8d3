package diff

import (
	"slices"

	"github.com/roach88/rewind/internal/value"
)

// Delta is a sealed interface describing the change of one field.
// Implementations: Added, Removed, Modified, ArrayDelta, Nested.
type Delta interface {
	// Invert returns the delta that undoes this one.
	Invert() Delta
	delta()
}

// Added records a field that did not exist before.
type Added struct {
	New value.Value
}

// Removed records a field that no longer exists.
type Removed struct {
	Old value.Value
}

// Modified records a whole-value replacement.
type Modified struct {
	Old value.Value
	New value.Value
}

// ArrayDelta records structural changes to an ordered sequence. Ops are
// applied in order, each against the result of the previous one.
type ArrayDelta struct {
	Ops []ArrayOp
}

// Nested records changes inside an object field (keys are field names) or
// inside individual array elements (keys are decimal indices).
type Nested struct {
	Payload Payload
}

func (Added) delta()      {}
func (Removed) delta()    {}
func (Modified) delta()   {}
func (ArrayDelta) delta() {}
func (Nested) delta()     {}

func (d Added) Invert() Delta    { return Removed{Old: d.New} }
func (d Removed) Invert() Delta  { return Added{New: d.Old} }
func (d Modified) Invert() Delta { return Modified{Old: d.New, New: d.Old} }
func (d Nested) Invert() Delta   { return Nested{Payload: d.Payload.Invert()} }

// Invert reverses the op list and inverts each op.
func (d ArrayDelta) Invert() Delta {
	ops := make([]ArrayOp, len(d.Ops))
	for i, op := range d.Ops {
		ops[len(d.Ops)-1-i] = op.Invert()
	}
	return ArrayDelta{Ops: ops}
}

// OpKind identifies an array operation.
type OpKind string

const (
	// OpInsert inserts New at Index.
	OpInsert OpKind = "insert"
	// OpDelete deletes the element at Index (which held Old).
	OpDelete OpKind = "delete"
	// OpReplace replaces Old with New at Index.
	OpReplace OpKind = "replace"
	// OpMove removes the element at From and reinserts it at Index.
	OpMove OpKind = "move"
)

// ArrayOp is one operation inside an ArrayDelta.
type ArrayOp struct {
	Kind  OpKind
	Index int
	From  int
	Old   value.Value
	New   value.Value
}

// Invert returns the op that undoes op.
func (op ArrayOp) Invert() ArrayOp {
	switch op.Kind {
	case OpInsert:
		return ArrayOp{Kind: OpDelete, Index: op.Index, Old: op.New}
	case OpDelete:
		return ArrayOp{Kind: OpInsert, Index: op.Index, New: op.Old}
	case OpReplace:
		return ArrayOp{Kind: OpReplace, Index: op.Index, Old: op.New, New: op.Old}
	case OpMove:
		return ArrayOp{Kind: OpMove, Index: op.From, From: op.Index}
	default:
		return op
	}
}

// Payload maps field names to deltas.
type Payload map[string]Delta

// Invert returns the payload that undoes p.
func (p Payload) Invert() Payload {
	out := make(Payload, len(p))
	for k, d := range p {
		out[k] = d.Invert()
	}
	return out
}

// Empty reports whether p records no change.
func (p Payload) Empty() bool {
	return len(p) == 0
}

// Fields returns the top-level field names touched by p, sorted.
func (p Payload) Fields() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsStructural reports whether d changes a collection or nested value
// rather than replacing a whole value.
func IsStructural(d Delta) bool {
	switch d.(type) {
	case ArrayDelta, Nested:
		return true
	}
	return false
}
