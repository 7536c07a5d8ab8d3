package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/reconcile"
	"github.com/roach88/rewind/internal/value"
)

// RecordStore persists the current state of records.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *Record) error
	LoadLatest(ctx context.Context, id string) (*Record, error)
	ListRecords(ctx context.Context, collection string) ([]*Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

// DiffLog persists diff entries. AppendDiff must store rec's new fields
// and version together with entry atomically, and reject the write when
// the stored version is not entry.Version-1.
type DiffLog interface {
	AppendDiff(ctx context.Context, rec *Record, entry DiffEntry) error
	LoadDiffLog(ctx context.Context, id string, minVersion int64, order Order) ([]DiffEntry, error)
}

// Clock supplies timestamps for records and entries.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates record identifiers.
type IDGenerator interface {
	Generate() string
}

// Recorder receives operation metrics.
type Recorder interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	PartialUndo(field string)
}

// UUIDv7Generator generates time-sortable UUIDv7 record IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error, time.Duration) {}
func (nopRecorder) PartialUndo(string)                            {}

// Service composes the engine with record and log persistence.
type Service struct {
	records RecordStore
	log     DiffLog
	engine  *Engine
	codec   *diff.Codec
	logger  *slog.Logger
	metrics Recorder
	clock   Clock
	ids     IDGenerator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service and engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithClock sets the timestamp source. Tests use a deterministic clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator sets the record ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithIdentityKey sets the element field that identifies array elements.
func WithIdentityKey(key string) Option {
	return func(s *Service) {
		s.codec = diff.NewCodec(key)
	}
}

// NewService creates a Service over the given collaborators.
func NewService(records RecordStore, log DiffLog, opts ...Option) *Service {
	s := &Service{
		records: records,
		log:     log,
		codec:   diff.NewCodec(diff.DefaultIdentityKey),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: nopRecorder{},
		clock:   systemClock{},
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = NewEngine(s.logger)
	return s
}

// IdentityKey returns the configured array identity key.
func (s *Service) IdentityKey() string {
	return s.codec.IdentityKey
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, *err, time.Since(start))
}

// Create stores a new record at CreationVersion attributed to actor.
func (s *Service) Create(ctx context.Context, collection string, fields value.Object, actor Actor) (rec *Record, err error) {
	defer s.observe("create", time.Now(), &err)

	by, err := attributionOf(actor)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rec = &Record{
		ID:         s.ids.Generate(),
		Collection: collection,
		Fields:     fields.NFC(),
		Version:    CreationVersion,
		CreatedBy:  by,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.records.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	s.logger.Info("record created",
		"id", rec.ID,
		"collection", collection,
		"user", by.Username,
	)
	return rec, nil
}

// Get loads the latest state of a record.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.records.LoadLatest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	return rec, nil
}

// List returns all records of a collection, or every record when
// collection is empty.
func (s *Service) List(ctx context.Context, collection string) ([]*Record, error) {
	recs, err := s.records.ListRecords(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// Save replaces the record's fields. An unchanged snapshot is a no-op and
// returns a nil entry. Otherwise the version increments by one and the new
// entry is returned.
func (s *Service) Save(ctx context.Context, id string, fields value.Object, actor Actor) (rec *Record, entry *DiffEntry, err error) {
	defer s.observe("save", time.Now(), &err)

	by, err := attributionOf(actor)
	if err != nil {
		return nil, nil, err
	}
	return s.save(ctx, id, fields, by)
}

func (s *Service) save(ctx context.Context, id string, fields value.Object, by Attribution) (*Record, *DiffEntry, error) {
	latest, err := s.records.LoadLatest(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load record: %w", err)
	}

	fields = fields.NFC()
	payload := s.codec.Diff(latest.Fields, fields)
	if payload.Empty() {
		s.logger.Debug("save skipped, no changes", "id", id, "version", latest.Version)
		return latest, nil, nil
	}

	checksum, err := value.Fingerprint(fields)
	if err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	entry := DiffEntry{
		EntityID: id,
		Version:  latest.Version + 1,
		Payload:  payload,
		User:     by.Username,
		Reason:   by.Reason,
		At:       now,
		Checksum: checksum,
	}

	next := *latest
	next.Fields = fields
	next.Version = entry.Version
	next.UpdatedAt = now
	if err := s.log.AppendDiff(ctx, &next, entry); err != nil {
		return nil, nil, fmt.Errorf("append diff: %w", err)
	}

	s.logger.Info("record saved",
		"id", id,
		"version", entry.Version,
		"user", by.Username,
		"fields", strings.Join(payload.Fields(), ","),
	)
	return &next, &entry, nil
}

// History lists the creation step followed by one item per log entry, in
// ascending version order.
func (s *Service) History(ctx context.Context, id string) (items []HistoryItem, err error) {
	defer s.observe("history", time.Now(), &err)

	rec, err := s.records.LoadLatest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	log, err := s.log.LoadDiffLog(ctx, id, 1, Ascending)
	if err != nil {
		return nil, fmt.Errorf("load diff log: %w", err)
	}

	items = make([]HistoryItem, 0, len(log)+1)
	items = append(items, HistoryItem{
		Version: CreationVersion,
		User:    rec.CreatedBy.Username,
		Reason:  rec.CreatedBy.Reason,
		At:      rec.CreatedAt,
		Fields:  []string{},
		Comment: "created",
	})
	for _, entry := range log {
		fields := entry.Payload.Fields()
		items = append(items, HistoryItem{
			Version: entry.Version,
			User:    entry.User,
			Reason:  entry.Reason,
			At:      entry.At,
			Fields:  fields,
			Comment: "modified " + strings.Join(fields, ", "),
		})
	}
	return items, nil
}

// load returns the latest record and the descending log of every entry at
// or above minVersion.
func (s *Service) load(ctx context.Context, id string, minVersion int64) (*Record, []DiffEntry, error) {
	rec, err := s.records.LoadLatest(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load record: %w", err)
	}
	log, err := s.log.LoadDiffLog(ctx, id, max(minVersion, 1), Descending)
	if err != nil {
		return nil, nil, fmt.Errorf("load diff log: %w", err)
	}
	return rec, log, nil
}

// StateAt returns the record's fields as of version.
func (s *Service) StateAt(ctx context.Context, id string, version int64) (state value.Object, err error) {
	defer s.observe("state_at", time.Now(), &err)

	rec, log, err := s.load(ctx, id, version)
	if err != nil {
		return nil, err
	}
	return s.engine.StateAtVersion(rec.Fields, log, version)
}

// Changes returns the change view for version. The creation view carries
// the record's creation attribution.
func (s *Service) Changes(ctx context.Context, id string, version int64) (view *View, err error) {
	defer s.observe("changes", time.Now(), &err)

	rec, log, err := s.load(ctx, id, version)
	if err != nil {
		return nil, err
	}
	view, err = s.engine.BuildView(rec.Fields, log, version)
	if err != nil {
		return nil, err
	}
	if version == CreationVersion {
		view.By = rec.CreatedBy
		view.At = rec.CreatedAt
	}
	return view, nil
}

// ArrayChanges reconciles an array field between its value before version
// and its value at version.
func (s *Service) ArrayChanges(ctx context.Context, id string, version int64, field string) ([]reconcile.ElementChange, error) {
	view, err := s.Changes(ctx, id, version)
	if err != nil {
		return nil, err
	}

	current, err := arrayField(view.Current, field)
	if err != nil {
		return nil, err
	}
	previous := current
	if _, touched := indexOf(view.Changed, field); touched {
		previous, err = arrayField(view.PreviousValues, field)
		if err != nil {
			return nil, err
		}
	}
	return reconcile.Reconcile(current, previous, s.codec.IdentityKey)
}

func arrayField(obj value.Object, field string) (value.Array, error) {
	v, ok := obj[field]
	if !ok {
		return value.Array{}, nil
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %s", ErrNotArray, field, value.Kind(v))
	}
	return arr, nil
}

func indexOf(list []string, s string) (int, bool) {
	for i, x := range list {
		if x == s {
			return i, true
		}
	}
	return -1, false
}

// UndoOptions controls Undo.
type UndoOptions struct {
	// DryRun computes the result without saving it.
	DryRun bool
}

// UndoOutcome is the result of Undo. Record and Entry are nil on a dry
// run; Entry is also nil when reverting changed nothing.
type UndoOutcome struct {
	*UndoResult
	Record *Record    `json:"record,omitempty"`
	Entry  *DiffEntry `json:"entry,omitempty"`
}

// Undo reverts the edit made at version and saves the result as a new
// version attributed to actor. The entry reason defaults to
// "undo version N". A partial undo is saved and returned together with a
// *PartialUndoError.
func (s *Service) Undo(ctx context.Context, id string, version int64, actor Actor, opts UndoOptions) (out *UndoOutcome, err error) {
	defer s.observe("undo", time.Now(), &err)

	rec, log, err := s.load(ctx, id, version)
	if err != nil {
		return nil, err
	}

	res, undoErr := s.engine.UndoVersion(rec.Fields, log, version, actor)
	if res == nil {
		return nil, undoErr
	}
	for _, field := range res.Partial {
		s.metrics.PartialUndo(field)
	}

	out = &UndoOutcome{UndoResult: res}
	if opts.DryRun {
		return out, undoErr
	}

	by := res.By
	if by.Reason == "" {
		by.Reason = fmt.Sprintf("undo version %d", version)
	}
	saved, entry, err := s.save(ctx, id, res.Snapshot, by)
	if err != nil {
		return nil, err
	}
	out.Record = saved
	out.Entry = entry

	s.logger.Info("version undone",
		"id", id,
		"undone_version", version,
		"user", by.Username,
		"partial", len(res.Partial) > 0,
	)
	return out, undoErr
}

// VerifyReport is the result of Verify.
type VerifyReport struct {
	EntityID string `json:"entity_id"`
	Checked  int    `json:"checked"`
	OK       bool   `json:"ok"`
	// Mismatch is the first version whose reconstruction does not match
	// its stored checksum. Only meaningful when OK is false.
	Mismatch int64 `json:"mismatch,omitempty"`
}

// Verify reconstructs every logged version, newest first, and compares
// each snapshot's fingerprint with the checksum stored on its entry.
func (s *Service) Verify(ctx context.Context, id string) (report *VerifyReport, err error) {
	defer s.observe("verify", time.Now(), &err)

	rec, log, err := s.load(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(log); err != nil {
		return nil, err
	}

	report = &VerifyReport{EntityID: id, OK: true}
	if len(log) > 0 && log[0].Version != rec.Version {
		report.OK = false
		report.Mismatch = rec.Version
		return report, nil
	}

	state := rec.Fields.Clone()
	for _, entry := range log {
		fp, err := value.Fingerprint(state)
		if err != nil {
			return nil, err
		}
		report.Checked++
		if fp != entry.Checksum {
			report.OK = false
			report.Mismatch = entry.Version
			s.logger.Warn("checksum mismatch", "id", id, "version", entry.Version)
			return report, nil
		}
		state, err = diff.Unpatch(state, entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("unpatch version %d: %w", entry.Version, err)
		}
	}
	return report, nil
}

// Delete removes a record together with its diff log.
func (s *Service) Delete(ctx context.Context, id string, actor Actor) (err error) {
	defer s.observe("delete", time.Now(), &err)

	by, err := attributionOf(actor)
	if err != nil {
		return err
	}
	if err := s.records.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.logger.Info("record deleted", "id", id, "user", by.Username)
	return nil
}
