package diff

import (
	"slices"
	"strconv"

	"github.com/roach88/rewind/internal/value"
)

// Patch applies payload forward to a copy of snapshot. The input is never
// mutated. Fails with *MalformedDiffError when the payload does not fit
// the snapshot.
func Patch(snapshot value.Object, payload Payload) (value.Object, error) {
	out := snapshot.Clone()
	if err := applyPayload(out, payload, ""); err != nil {
		return nil, err
	}
	return out, nil
}

// Unpatch applies payload backward to a copy of snapshot, restoring the
// state before payload was produced.
func Unpatch(snapshot value.Object, payload Payload) (value.Object, error) {
	return Patch(snapshot, payload.Invert())
}

// applyPayload mutates obj in place. obj must be exclusively owned.
func applyPayload(obj value.Object, payload Payload, path string) error {
	for _, k := range payload.Fields() {
		cur, present := obj[k]
		next, keep, err := applyDelta(cur, present, payload[k], fieldPath(path, k))
		if err != nil {
			return err
		}
		if keep {
			obj[k] = next
		} else {
			delete(obj, k)
		}
	}
	return nil
}

// applyDelta computes the new slot value. cur may be mutated when it is a
// container, so it must be exclusively owned.
func applyDelta(cur value.Value, present bool, d Delta, path string) (value.Value, bool, error) {
	switch d := d.(type) {
	case Added:
		if present {
			return nil, false, malformed(path, "cannot add field that already exists")
		}
		return value.Clone(d.New), true, nil

	case Removed:
		if !present {
			return nil, false, malformed(path, "cannot remove missing field")
		}
		return nil, false, nil

	case Modified:
		if !present {
			return nil, false, malformed(path, "cannot modify missing field")
		}
		return value.Clone(d.New), true, nil

	case ArrayDelta:
		if !present {
			return nil, false, malformed(path, "array delta on missing field")
		}
		arr, ok := cur.(value.Array)
		if !ok {
			return nil, false, malformed(path, "array delta on %s", value.Kind(cur))
		}
		next, err := applyOps(arr, d.Ops, path)
		if err != nil {
			return nil, false, err
		}
		return next, true, nil

	case Nested:
		if !present {
			return nil, false, malformed(path, "nested delta on missing field")
		}
		switch c := cur.(type) {
		case value.Object:
			if err := applyPayload(c, d.Payload, path); err != nil {
				return nil, false, err
			}
			return c, true, nil
		case value.Array:
			if err := applyIndexed(c, d.Payload, path); err != nil {
				return nil, false, err
			}
			return c, true, nil
		default:
			return nil, false, malformed(path, "nested delta on %s", value.Kind(cur))
		}

	default:
		return nil, false, malformed(path, "unknown delta type %T", d)
	}
}

// applyIndexed applies per-element deltas keyed by decimal index.
// Elements cannot be added or removed this way.
func applyIndexed(arr value.Array, payload Payload, path string) error {
	for _, k := range payload.Fields() {
		i, err := strconv.Atoi(k)
		if err != nil {
			return malformed(fieldPath(path, k), "array element key is not an index")
		}
		elemPath := indexPath(path, i)
		if i < 0 || i >= len(arr) {
			return malformed(elemPath, "index out of range (len %d)", len(arr))
		}
		next, keep, err := applyDelta(arr[i], true, payload[k], elemPath)
		if err != nil {
			return err
		}
		if !keep {
			return malformed(elemPath, "nested delta cannot remove an array element")
		}
		arr[i] = next
	}
	return nil
}

func applyOps(arr value.Array, ops []ArrayOp, path string) (value.Array, error) {
	working := slices.Clone(arr)
	if working == nil {
		working = value.Array{}
	}
	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			if op.Index < 0 || op.Index > len(working) {
				return nil, malformed(indexPath(path, op.Index), "insert out of range (len %d)", len(working))
			}
			working = slices.Insert(working, op.Index, value.Clone(op.New))
		case OpDelete:
			if op.Index < 0 || op.Index >= len(working) {
				return nil, malformed(indexPath(path, op.Index), "delete out of range (len %d)", len(working))
			}
			working = slices.Delete(working, op.Index, op.Index+1)
		case OpReplace:
			if op.Index < 0 || op.Index >= len(working) {
				return nil, malformed(indexPath(path, op.Index), "replace out of range (len %d)", len(working))
			}
			working[op.Index] = value.Clone(op.New)
		case OpMove:
			if op.From < 0 || op.From >= len(working) {
				return nil, malformed(indexPath(path, op.From), "move source out of range (len %d)", len(working))
			}
			elem := working[op.From]
			working = slices.Delete(working, op.From, op.From+1)
			if op.Index < 0 || op.Index > len(working) {
				return nil, malformed(indexPath(path, op.Index), "move target out of range (len %d)", len(working)+1)
			}
			working = slices.Insert(working, op.Index, elem)
		default:
			return nil, malformed(path, "unknown array op %q", op.Kind)
		}
	}
	return working, nil
}
