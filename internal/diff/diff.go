package diff

import (
	"slices"
	"strconv"

	"github.com/roach88/rewind/internal/value"
)

// DefaultIdentityKey is the element field used to recognise identity-keyed
// arrays when no other key is configured.
const DefaultIdentityKey = "id"

// Codec computes diffs. IdentityKey names the element field that gives
// array elements a stable identity.
type Codec struct {
	IdentityKey string
}

// NewCodec returns a Codec using identityKey, or DefaultIdentityKey when
// identityKey is empty.
func NewCodec(identityKey string) *Codec {
	if identityKey == "" {
		identityKey = DefaultIdentityKey
	}
	return &Codec{IdentityKey: identityKey}
}

var defaultCodec = NewCodec(DefaultIdentityKey)

// Diff computes the payload turning before into after using the default
// identity key.
func Diff(before, after value.Object) Payload {
	return defaultCodec.Diff(before, after)
}

// Diff computes the payload turning before into after. An empty payload
// means the snapshots are equal.
func (c *Codec) Diff(before, after value.Object) Payload {
	p := Payload{}
	for _, k := range before.SortedKeys() {
		old := before[k]
		next, ok := after[k]
		if !ok {
			p[k] = Removed{Old: value.Clone(old)}
			continue
		}
		if d := c.diffValue(old, next); d != nil {
			p[k] = d
		}
	}
	for _, k := range after.SortedKeys() {
		if _, ok := before[k]; !ok {
			p[k] = Added{New: value.Clone(after[k])}
		}
	}
	return p
}

// diffValue returns nil when old and next are equal.
func (c *Codec) diffValue(old, next value.Value) Delta {
	if value.Equal(old, next) {
		return nil
	}

	switch o := old.(type) {
	case value.Object:
		if n, ok := next.(value.Object); ok {
			return Nested{Payload: c.Diff(o, n)}
		}
	case value.Array:
		if n, ok := next.(value.Array); ok {
			return c.diffArray(o, n)
		}
	}
	return Modified{Old: value.Clone(old), New: value.Clone(next)}
}

func (c *Codec) diffArray(before, after value.Array) Delta {
	beforeIDs, okBefore := c.identities(before)
	afterIDs, okAfter := c.identities(after)
	if !okBefore || !okAfter {
		return positionalDelta(before, after)
	}

	if slices.Equal(beforeIDs, afterIDs) {
		var changed []int
		for i := range before {
			if !value.Equal(before[i], after[i]) {
				changed = append(changed, i)
			}
		}
		if len(changed) == 1 {
			i := changed[0]
			elem := c.Diff(before[i].(value.Object), after[i].(value.Object))
			return Nested{Payload: Payload{strconv.Itoa(i): Nested{Payload: elem}}}
		}
		ops := make([]ArrayOp, 0, len(changed))
		for _, i := range changed {
			ops = append(ops, ArrayOp{Kind: OpReplace, Index: i, Old: value.Clone(before[i]), New: value.Clone(after[i])})
		}
		return ArrayDelta{Ops: ops}
	}

	return ArrayDelta{Ops: identityOps(before, after, beforeIDs, afterIDs)}
}

// identityOps builds deletes (descending), moves, inserts (ascending) and
// replaces, in that order.
func identityOps(before, after value.Array, beforeIDs, afterIDs []string) []ArrayOp {
	inAfter := make(map[string]int, len(afterIDs))
	for i, id := range afterIDs {
		inAfter[id] = i
	}
	beforeIdx := make(map[string]int, len(beforeIDs))
	for i, id := range beforeIDs {
		beforeIdx[id] = i
	}

	var ops []ArrayOp
	working := make([]string, 0, len(beforeIDs))
	for i := len(beforeIDs) - 1; i >= 0; i-- {
		if _, ok := inAfter[beforeIDs[i]]; !ok {
			ops = append(ops, ArrayOp{Kind: OpDelete, Index: i, Old: value.Clone(before[i])})
		}
	}
	for _, id := range beforeIDs {
		if _, ok := inAfter[id]; ok {
			working = append(working, id)
		}
	}

	target := make([]string, 0, len(afterIDs))
	for _, id := range afterIDs {
		if _, ok := beforeIdx[id]; ok {
			target = append(target, id)
		}
	}
	for i, id := range target {
		j := i
		for working[j] != id {
			j++
		}
		if j == i {
			continue
		}
		ops = append(ops, ArrayOp{Kind: OpMove, From: j, Index: i})
		copy(working[i+1:j+1], working[i:j])
		working[i] = id
	}

	for k, id := range afterIDs {
		if _, ok := beforeIdx[id]; !ok {
			ops = append(ops, ArrayOp{Kind: OpInsert, Index: k, New: value.Clone(after[k])})
		}
	}

	for k, id := range afterIDs {
		i, ok := beforeIdx[id]
		if ok && !value.Equal(before[i], after[k]) {
			ops = append(ops, ArrayOp{Kind: OpReplace, Index: k, Old: value.Clone(before[i]), New: value.Clone(after[k])})
		}
	}
	return ops
}

// positionalDelta diffs arrays without identity: replace the common
// prefix, then insert or delete the tail.
func positionalDelta(before, after value.Array) Delta {
	var ops []ArrayOp
	n := min(len(before), len(after))
	for i := 0; i < n; i++ {
		if !value.Equal(before[i], after[i]) {
			ops = append(ops, ArrayOp{Kind: OpReplace, Index: i, Old: value.Clone(before[i]), New: value.Clone(after[i])})
		}
	}
	for i := len(before) - 1; i >= n; i-- {
		ops = append(ops, ArrayOp{Kind: OpDelete, Index: i, Old: value.Clone(before[i])})
	}
	for i := n; i < len(after); i++ {
		ops = append(ops, ArrayOp{Kind: OpInsert, Index: i, New: value.Clone(after[i])})
	}
	return ArrayDelta{Ops: ops}
}

// identities returns the value.Identity of each element, or false when
// the array is not identity-keyed: some element is not an object, lacks a
// scalar key, or repeats another element's identity. The same rule backs
// reconcile.Reconcile, so an array the codec diffs by identity always
// reconciles.
func (c *Codec) identities(arr value.Array) ([]string, bool) {
	ids := make([]string, len(arr))
	seen := make(map[string]struct{}, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(value.Object)
		if !ok {
			return nil, false
		}
		key, ok := value.Identity(obj[c.IdentityKey])
		if !ok {
			return nil, false
		}
		if _, dup := seen[key]; dup {
			return nil, false
		}
		seen[key] = struct{}{}
		ids[i] = key
	}
	return ids, true
}
