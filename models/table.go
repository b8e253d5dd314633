package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bitbucket.org/greenops/fieldops_backend/utils"
)

// Table is the editable historic-data table shared by every domain table.
// Columns come from Schema; records are a snapshot of the store.
type Table struct {
	Schema TableSchema
	Buffer *EditBuffer
	// Now defaults to time.Now.
	Now func() time.Time

	mu      sync.RWMutex
	window  EditWindow
	records []Record
	index   RecordIndex
}

// WindowSource reports the current edit window of a table's site. A commit
// through a sink that implements it applies settings changed since Begin.
type WindowSource interface {
	CurrentWindow(ctx context.Context) (EditWindow, error)
}

func NewTable(schema TableSchema, window EditWindow, records []Record) (*Table, error) {
	index, err := IndexRecords(records)
	if err != nil {
		return nil, err
	}
	snapshot := make([]Record, len(records))
	copy(snapshot, records)
	return &Table{
		Schema:  schema,
		Buffer:  NewEditBuffer(),
		window:  window,
		records: snapshot,
		index:   index,
	}, nil
}

// Window returns the edit policy the table currently applies.
func (t *Table) Window() EditWindow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.window
}

func (t *Table) setWindow(w EditWindow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = w
}

func (t *Table) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Records returns the stored records in collection order.
func (t *Table) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Table) Lookup(recordId string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.Lookup(recordId)
}

func (t *Table) IsEditable(r Record) bool {
	return t.Window().IsEditable(r.Date, t.now())
}

// Row is one rendered table row: stored values with pending edits laid over.
type Row struct {
	Record   Record            `json:"record"`
	Editable bool              `json:"editable"`
	Pending  []string          `json:"pending,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// View filters and sorts the stored records and overlays pending edits for
// display. Filtering works on stored values so rows do not move while a
// cell is being edited.
func (t *Table) View(opts ViewOptions) ([]Row, error) {
	view, err := View(t.Records(), t.Schema, opts)
	if err != nil {
		return nil, err
	}
	return t.Rows(view), nil
}

// Rows overlays the buffer on already filtered records.
func (t *Table) Rows(records []Record) []Row {
	pending := t.Buffer.Pending()
	flagged := make(map[CellKey]string)
	for _, e := range t.Buffer.Errors() {
		flagged[CellKey{RecordID: e.RecordID, FieldID: e.FieldID}] = e.Message
	}
	now, window := t.now(), t.Window()
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := Row{Record: r, Editable: window.IsEditable(r.Date, now)}
		for fieldId, v := range pending.ForRecord(r.ID) {
			row.Record = row.Record.With(fieldId, v)
			row.Pending = append(row.Pending, fieldId)
			if msg, ok := flagged[CellKey{RecordID: r.ID, FieldID: fieldId}]; ok {
				if row.Errors == nil {
					row.Errors = make(map[string]string)
				}
				row.Errors[fieldId] = msg
			}
		}
		sort.Strings(row.Pending)
		rows = append(rows, row)
	}
	return rows
}

func (t *Table) Begin() error {
	return t.Buffer.Begin()
}

// Stage reads raw input for one cell and stages it. Locked records, unknown
// records and unknown fields are rejected with an error. Input that fails
// validation is staged anyway and returned as a *CellError so the user can
// keep editing other cells. Restoring a cell's stored value drops its edit.
func (t *Table) Stage(recordId, fieldId, raw string) (*CellError, error) {
	if t.Buffer.State() != EditStateEditing {
		return nil, ErrNotEditing
	}
	r, ok := t.Lookup(recordId)
	if !ok {
		return nil, fmt.Errorf("record %q: %w", recordId, utils.ErrorRecordNotFound)
	}
	field, ok := t.Schema.Field(fieldId)
	if !ok {
		return nil, fmt.Errorf("field %q: %w", fieldId, ErrUnknownField)
	}
	if err := t.Window().Check(r.Date, t.now()); err != nil {
		return nil, err
	}

	v, msg := CoerceInput(field, raw)
	stored := r.Values[fieldId]
	if msg == "" && v.Equal(stored) {
		t.Buffer.Unstage(recordId, fieldId)
		return nil, nil
	}
	if err := t.Buffer.Stage(recordId, fieldId, v); err != nil {
		return nil, err
	}
	if msg == "" {
		return nil, nil
	}
	t.Buffer.Flag(recordId, fieldId, msg)
	return &CellError{RecordID: recordId, FieldID: fieldId, Message: msg}, nil
}

// Commit re-checks the edit window of every pending record, then commits the
// buffer to sink. Records that locked since they were staged are held back
// and reported as *LockedRecordsError. Committed values replace the stored
// ones in the snapshot.
func (t *Table) Commit(ctx context.Context, sink Sink) error {
	if src, ok := sink.(WindowSource); ok && t.Buffer.HasPending() {
		window, err := src.CurrentWindow(ctx)
		if err != nil {
			return newSaveError(err, t.Buffer.Pending())
		}
		t.setWindow(window)
	}
	now, window := t.now(), t.Window()
	held := make(map[string]bool)
	for _, recordId := range t.Buffer.Pending().RecordIDs() {
		r, ok := t.Lookup(recordId)
		if ok && !window.IsEditable(r.Date, now) {
			held[recordId] = true
		}
	}
	return t.Buffer.CommitExcept(ctx, SinkFunc(func(ctx context.Context, edits PendingEdits) error {
		if err := sink.SaveEdits(ctx, edits); err != nil {
			return err
		}
		t.apply(edits)
		return nil
	}), held)
}

func (t *Table) apply(edits PendingEdits) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.records {
		values := edits.ForRecord(r.ID)
		if len(values) == 0 {
			continue
		}
		for fieldId, v := range values {
			r = r.With(fieldId, v)
		}
		t.records[i] = r
		t.index[r.ID] = r
	}
}

func (t *Table) Discard() {
	t.Buffer.Discard()
}
