// Package reconcile classifies the elements of two identity-keyed arrays
// as added, updated, removed or unchanged, for presenting how a
// collection-valued field changed between two versions.
package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rewind/internal/value"
)

// Action classifies one element.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
	ActionNone   Action = "none"
)

var (
	// ErrMissingIdentity is returned when an element is not an object or
	// lacks a scalar identity key.
	ErrMissingIdentity = errors.New("array element has no identity")

	// ErrDuplicateIdentity is returned when two elements of the same
	// array share an identity under value.Identity.
	ErrDuplicateIdentity = errors.New("duplicate array element identity")
)

// ElementChange is one classified element. Element is the current element
// for add, update and none, and the previous element for remove.
type ElementChange struct {
	Action  Action      `json:"action"`
	Element value.Value `json:"element"`
}

type keyed struct {
	id   string
	elem value.Object
}

// Reconcile walks current in order and classifies each element against
// previous by identity. Output keeps current's order for add, update and
// none. A previous element that no current element matches is emitted as
// remove just before the first current element whose identity sorts after
// it, or at the end. An element that only moved is never reported as
// add plus remove.
func Reconcile(current, previous value.Array, identityKey string) ([]ElementChange, error) {
	cur, err := index(current, identityKey, "current")
	if err != nil {
		return nil, err
	}
	prev, err := index(previous, identityKey, "previous")
	if err != nil {
		return nil, err
	}

	currentIDs := make(map[string]struct{}, len(cur))
	for _, c := range cur {
		currentIDs[c.id] = struct{}{}
	}
	prevByID := make(map[string]value.Object, len(prev))
	for _, p := range prev {
		prevByID[p.id] = p.elem
	}

	sorted := slices.Clone(prev)
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		return strings.Compare(a.id, b.id)
	})

	changes := make([]ElementChange, 0, len(cur)+len(prev))
	removeUnmatched := func(p keyed) {
		if _, ok := currentIDs[p.id]; !ok {
			changes = append(changes, ElementChange{Action: ActionRemove, Element: p.elem})
		}
	}

	cursor := 0
	for _, c := range cur {
		for cursor < len(sorted) && sorted[cursor].id < c.id {
			removeUnmatched(sorted[cursor])
			cursor++
		}

		p, ok := prevByID[c.id]
		switch {
		case !ok:
			changes = append(changes, ElementChange{Action: ActionAdd, Element: c.elem})
		case differs(c.elem, p):
			changes = append(changes, ElementChange{Action: ActionUpdate, Element: c.elem})
		default:
			changes = append(changes, ElementChange{Action: ActionNone, Element: c.elem})
		}
	}
	for ; cursor < len(sorted); cursor++ {
		removeUnmatched(sorted[cursor])
	}

	return changes, nil
}

func index(arr value.Array, identityKey, side string) ([]keyed, error) {
	out := make([]keyed, len(arr))
	seen := make(map[string]struct{}, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(value.Object)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: %w", side, i, ErrMissingIdentity)
		}
		key, ok := value.Identity(obj[identityKey])
		if !ok {
			return nil, fmt.Errorf("%s[%d]: %w (key %q)", side, i, ErrMissingIdentity, identityKey)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s[%d]: %w: %s", side, i, ErrDuplicateIdentity, key)
		}
		seen[key] = struct{}{}
		out[i] = keyed{id: key, elem: obj}
	}
	return out, nil
}

// differs compares the union of both elements' fields by normalized value.
func differs(a, b value.Object) bool {
	for k, av := range a {
		bv, ok := b[k]
		if !ok || value.Normalize(av) != value.Normalize(bv) {
			return true
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			return true
		}
	}
	return false
}
