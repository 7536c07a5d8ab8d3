package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/value"
)

// assertionActor attributes the dry-run undos that partial_undo performs.
var assertionActor = history.Session{Username: "harness", Reason: "assertion"}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Record   string // Record alias
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (record %s)\n", e.Type, e.Record)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// AssertionContext provides the service and alias bindings assertions
// evaluate against.
type AssertionContext struct {
	Ctx     context.Context
	Service *history.Service
	Records map[string]string
}

// EvaluateAssertions evaluates all assertions.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		id, ok := actx.Records[a.Record]
		if !ok {
			errors = append(errors, fmt.Sprintf("assertion[%d]: unknown record %q", i, a.Record))
			continue
		}

		switch a.Type {
		case AssertHistoryActors:
			err = assertHistoryActors(actx, id, a)
		case AssertHistoryFields:
			err = assertHistoryFields(actx, id, a)
		case AssertStateAt:
			err = assertStateAt(actx, id, a)
		case AssertPreviousValues:
			err = assertPreviousValues(actx, id, a)
		case AssertLatest:
			err = assertLatest(actx, id, a)
		case AssertPartialUndo:
			err = assertPartialUndo(actx, id, a)
		case AssertArrayChanges:
			err = assertArrayChanges(actx, id, a)
		case AssertNotFound:
			err = assertNotFound(actx, id, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func failed(a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Record: a.Record, Expected: expected, Actual: actual}
}

func assertHistoryActors(actx *AssertionContext, id string, a Assertion) error {
	items, err := actx.Service.History(actx.Ctx, id)
	if err != nil {
		return failed(a, fmt.Sprintf("history of %s", id), err.Error())
	}

	users := make([]string, len(items))
	for i, item := range items {
		users[i] = item.User
	}
	if !slices.Equal(users, a.Users) {
		return failed(a, fmt.Sprintf("actors %v", a.Users), fmt.Sprintf("actors %v", users))
	}
	return nil
}

func assertHistoryFields(actx *AssertionContext, id string, a Assertion) error {
	items, err := actx.Service.History(actx.Ctx, id)
	if err != nil {
		return failed(a, fmt.Sprintf("history of %s", id), err.Error())
	}

	for _, item := range items {
		if item.Version != *a.Version {
			continue
		}
		if !slices.Equal(item.Fields, a.Fields) {
			return failed(a,
				fmt.Sprintf("version %d changed %v", *a.Version, a.Fields),
				fmt.Sprintf("version %d changed %v", *a.Version, item.Fields))
		}
		return nil
	}
	return failed(a, fmt.Sprintf("version %d in history", *a.Version), "not listed")
}

func assertStateAt(actx *AssertionContext, id string, a Assertion) error {
	state, err := actx.Service.StateAt(actx.Ctx, id, *a.Version)
	if err != nil {
		return failed(a, fmt.Sprintf("state at version %d", *a.Version), err.Error())
	}
	return compareFields(a, fmt.Sprintf("state at version %d", *a.Version), state)
}

func assertPreviousValues(actx *AssertionContext, id string, a Assertion) error {
	view, err := actx.Service.Changes(actx.Ctx, id, *a.Version)
	if err != nil {
		return failed(a, fmt.Sprintf("change view of version %d", *a.Version), err.Error())
	}
	return compareFields(a, fmt.Sprintf("previous values at version %d", *a.Version), view.PreviousValues)
}

func assertLatest(actx *AssertionContext, id string, a Assertion) error {
	rec, err := actx.Service.Get(actx.Ctx, id)
	if err != nil {
		return failed(a, "latest record", err.Error())
	}
	return compareFields(a, "latest fields", rec.Fields)
}

func assertPartialUndo(actx *AssertionContext, id string, a Assertion) error {
	out, err := actx.Service.Undo(actx.Ctx, id, *a.Version, assertionActor, history.UndoOptions{DryRun: true})
	if err != nil && !history.IsPartialUndo(err) {
		return failed(a, fmt.Sprintf("dry-run undo of version %d", *a.Version), err.Error())
	}

	if !slices.Equal(out.Partial, a.Fields) && (len(out.Partial) > 0 || len(a.Fields) > 0) {
		return failed(a,
			fmt.Sprintf("partial fields %v", a.Fields),
			fmt.Sprintf("partial fields %v", out.Partial))
	}
	return nil
}

func assertArrayChanges(actx *AssertionContext, id string, a Assertion) error {
	changes, err := actx.Service.ArrayChanges(actx.Ctx, id, *a.Version, a.Field)
	if err != nil {
		return failed(a, fmt.Sprintf("array changes of %s at version %d", a.Field, *a.Version), err.Error())
	}

	actions := make([]string, len(changes))
	for i, c := range changes {
		actions[i] = string(c.Action)
	}
	if !slices.Equal(actions, a.Actions) {
		return failed(a, fmt.Sprintf("actions %v", a.Actions), fmt.Sprintf("actions %v", actions))
	}
	return nil
}

func assertNotFound(actx *AssertionContext, id string, a Assertion) error {
	_, err := actx.Service.StateAt(actx.Ctx, id, *a.Version)
	if !history.IsVersionNotFound(err) {
		actual := "state reconstructed"
		if err != nil {
			actual = err.Error()
		}
		return failed(a, fmt.Sprintf("version %d not found", *a.Version), actual)
	}
	return nil
}

// compareFields checks actual against the assertion's exact expected
// fields.
func compareFields(a Assertion, what string, actual value.Object) error {
	expected, err := value.ObjectFromGo(a.Expect)
	if err != nil {
		return failed(a, what, fmt.Sprintf("invalid expect: %v", err))
	}
	if value.Equal(expected, actual) {
		return nil
	}
	return failed(a, fmt.Sprintf("%s %s", what, render(expected)), render(actual))
}

func render(obj value.Object) string {
	data, err := value.MarshalCanonical(obj)
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	return string(data)
}
