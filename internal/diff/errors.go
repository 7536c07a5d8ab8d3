package diff

import (
	"errors"
	"fmt"
)

// ErrMalformedDiff matches every *MalformedDiffError via errors.Is.
var ErrMalformedDiff = errors.New("malformed diff")

// MalformedDiffError reports a payload that cannot be applied to a
// snapshot. Path locates the offending field, e.g. "phones[2].number".
type MalformedDiffError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *MalformedDiffError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed diff: %s", e.Reason)
	}
	return fmt.Sprintf("malformed diff at %s: %s", e.Path, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedDiff) match.
func (e *MalformedDiffError) Is(target error) bool {
	return target == ErrMalformedDiff
}

func malformed(path, format string, args ...any) error {
	return &MalformedDiffError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func fieldPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}

func indexPath(parent string, idx int) string {
	return fmt.Sprintf("%s[%d]", parent, idx)
}
