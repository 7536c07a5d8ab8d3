package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Op     string `json:"op"`
	Record string `json:"record"`
	ID     string `json:"id"`
	User   string `json:"user"`

	// Version is the record version after the step.
	Version int64 `json:"version"`

	// Changed lists the fields of the entry the step wrote, if any.
	Changed []string `json:"changed,omitempty"`

	// Undone is the version reverted by an undo step.
	Undone int64 `json:"undone,omitempty"`

	// Partial lists array or nested fields an undo step could not guarantee to revert.
	Partial []string `json:"partial,omitempty"`

	DryRun bool `json:"dry_run,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step ran and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Records maps scenario aliases to generated record IDs.
	Records map[string]string `json:"records,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Records: make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev with the next sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
