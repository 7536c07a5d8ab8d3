package history

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVersionNotFound matches *VersionNotFoundError.
	ErrVersionNotFound = errors.New("version not found")

	// ErrPartialUndo matches *PartialUndoError.
	ErrPartialUndo = errors.New("partial undo")

	// ErrLogOrder is returned when a diff log is not strictly descending
	// and gapless.
	ErrLogOrder = errors.New("diff log out of order")

	// ErrNoActor is returned when a mutating call has no attributable actor.
	ErrNoActor = errors.New("no actor: a username is required")

	// ErrNotArray is returned when array reconciliation targets a field
	// holding a non-array value.
	ErrNotArray = errors.New("field is not an array")
)

// VersionNotFoundError reports a version absent from the log that is not
// the creation version.
type VersionNotFoundError struct {
	Version int64
}

// Error implements the error interface.
func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %d not found", e.Version)
}

// Is makes errors.Is(err, ErrVersionNotFound) match.
func (e *VersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}

// PartialUndoError reports fields that selective undo could not restore
// exactly. It accompanies a usable result; it is a warning, not a failure.
type PartialUndoError struct {
	Version int64
	Fields  []string
}

// Error implements the error interface.
func (e *PartialUndoError) Error() string {
	return fmt.Sprintf("undo of version %d is partial: array or nested fields %s may not be fully reverted",
		e.Version, strings.Join(e.Fields, ", "))
}

// Is makes errors.Is(err, ErrPartialUndo) match.
func (e *PartialUndoError) Is(target error) bool {
	return target == ErrPartialUndo
}

// IsVersionNotFound returns true if err is a version-not-found error.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsPartialUndo returns true if err reports a partial undo.
// Uses errors.As to handle wrapped errors.
func IsPartialUndo(err error) bool {
	var pe *PartialUndoError
	return errors.As(err, &pe)
}

func newVersionNotFound(v int64) error {
	return &VersionNotFoundError{Version: v}
}
