package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/value"
)

// Harness executes scenario steps against a history service.
type Harness struct {
	svc    *history.Service
	logger *slog.Logger
}

// Run executes a scenario with logging discarded.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(context.Background(), scenario, nil)
}

// RunWithLogger executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Execute steps in order, stopping at the first failing step
// 3. Evaluate assertions
// 4. Return result with pass/fail, trace, and errors
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts := []history.Option{
		history.WithClock(testutil.NewDeterministicClock()),
		history.WithIDGenerator(testutil.NewSequentialIDGenerator("")),
		history.WithLogger(logger),
	}
	if scenario.IdentityKey != "" {
		opts = append(opts, history.WithIdentityKey(scenario.IdentityKey))
	}

	h := &Harness{
		svc:    history.NewService(st, st, opts...),
		logger: logger,
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		result.AddError(err.Error())
		return result, nil
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Service: h.svc,
		Records: result.Records,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps runs all steps in order. The first failing step aborts the
// scenario.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		actor := history.Session{Username: step.User, Reason: step.Reason}

		var (
			ev  TraceEvent
			err error
		)
		switch step.Op {
		case OpCreate:
			ev, err = h.create(ctx, step, actor, result)
		case OpSave:
			ev, err = h.save(ctx, step, actor, result.Records[step.Record])
		case OpUndo:
			ev, err = h.undo(ctx, step, actor, result.Records[step.Record])
		default:
			err = fmt.Errorf("unknown op %q", step.Op)
		}
		if err != nil {
			return fmt.Errorf("step %d (%s %s): %w", i, step.Op, step.Record, err)
		}

		ev.Op = step.Op
		ev.Record = step.Record
		ev.User = step.User
		result.AddTrace(ev)

		h.logger.Info("step completed",
			"step", i,
			"op", step.Op,
			"record", step.Record,
			"version", ev.Version,
		)
	}
	return nil
}

func (h *Harness) create(ctx context.Context, step Step, actor history.Actor, result *Result) (TraceEvent, error) {
	fields, err := value.ObjectFromGo(step.Fields)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("convert fields: %w", err)
	}

	rec, err := h.svc.Create(ctx, step.Collection, fields, actor)
	if err != nil {
		return TraceEvent{}, err
	}
	result.Records[step.Record] = rec.ID
	return TraceEvent{ID: rec.ID, Version: rec.Version}, nil
}

func (h *Harness) save(ctx context.Context, step Step, actor history.Actor, id string) (TraceEvent, error) {
	latest, err := h.svc.Get(ctx, id)
	if err != nil {
		return TraceEvent{}, err
	}

	set, err := value.ObjectFromGo(step.Set)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("convert set: %w", err)
	}
	fields := latest.Fields.Clone()
	for k, v := range set {
		fields[k] = v
	}
	for _, k := range step.Unset {
		delete(fields, k)
	}

	rec, entry, err := h.svc.Save(ctx, id, fields, actor)
	if err != nil {
		return TraceEvent{}, err
	}
	ev := TraceEvent{ID: id, Version: rec.Version}
	if entry != nil {
		ev.Changed = entry.Payload.Fields()
	}
	return ev, nil
}

func (h *Harness) undo(ctx context.Context, step Step, actor history.Actor, id string) (TraceEvent, error) {
	out, err := h.svc.Undo(ctx, id, step.Version, actor, history.UndoOptions{DryRun: step.DryRun})
	if err != nil && !history.IsPartialUndo(err) {
		return TraceEvent{}, err
	}

	ev := TraceEvent{
		ID:      id,
		Undone:  step.Version,
		Partial: out.Partial,
		DryRun:  step.DryRun,
	}
	switch {
	case out.Entry != nil:
		ev.Version = out.Entry.Version
		ev.Changed = out.Entry.Payload.Fields()
	case out.Record != nil:
		ev.Version = out.Record.Version
	default:
		latest, err := h.svc.Get(ctx, id)
		if err != nil {
			return TraceEvent{}, err
		}
		ev.Version = latest.Version
	}
	return ev, nil
}
