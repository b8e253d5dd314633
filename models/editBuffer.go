package models

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotEditing     = errors.New("table is not in edit mode")
	ErrAlreadyEditing = errors.New("table is already in edit mode")
)

// CellKey addresses one cell of a table.
type CellKey struct {
	RecordID string `json:"record_id"`
	FieldID  string `json:"field_id"`
}

// PendingEdits maps cells to their staged, uncommitted values.
type PendingEdits map[CellKey]Value

// Keys returns the cells ordered by record then field.
func (p PendingEdits) Keys() []CellKey {
	keys := make([]CellKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RecordID != keys[j].RecordID {
			return keys[i].RecordID < keys[j].RecordID
		}
		return keys[i].FieldID < keys[j].FieldID
	})
	return keys
}

func (p PendingEdits) RecordIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, k := range p.Keys() {
		if !seen[k.RecordID] {
			seen[k.RecordID] = true
			ids = append(ids, k.RecordID)
		}
	}
	return ids
}

// ForRecord returns the staged values of one record keyed by field id.
func (p PendingEdits) ForRecord(recordId string) map[string]Value {
	values := make(map[string]Value)
	for k, v := range p {
		if k.RecordID == recordId {
			values[k.FieldID] = v
		}
	}
	return values
}

func (p PendingEdits) clone() PendingEdits {
	out := make(PendingEdits, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PendingCell is the wire form of one staged cell.
type PendingCell struct {
	RecordID string `json:"record_id"`
	FieldID  string `json:"field_id"`
	Value    Value  `json:"value"`
	Error    string `json:"error,omitempty"`
}

// EditBuffer overlays staged cell values on a read-only record store.
// It is either Viewing or Editing; cells can only be staged while Editing.
type EditBuffer struct {
	mu      sync.Mutex
	state   EditState
	pending PendingEdits
	errs    map[CellKey]*CellError
}

func NewEditBuffer() *EditBuffer {
	return &EditBuffer{
		pending: make(PendingEdits),
		errs:    make(map[CellKey]*CellError),
	}
}

func (b *EditBuffer) State() EditState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Begin moves the buffer from Viewing to Editing.
func (b *EditBuffer) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == EditStateEditing {
		return ErrAlreadyEditing
	}
	b.state = EditStateEditing
	return nil
}

// Stage inserts or overwrites the pending value of a cell and clears any
// error flagged on it. The record store is not touched.
func (b *EditBuffer) Stage(recordId, fieldId string, v Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != EditStateEditing {
		return ErrNotEditing
	}
	key := CellKey{RecordID: recordId, FieldID: fieldId}
	b.pending[key] = v
	delete(b.errs, key)
	return nil
}

// Unstage drops the pending value of a cell.
func (b *EditBuffer) Unstage(recordId, fieldId string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := CellKey{RecordID: recordId, FieldID: fieldId}
	delete(b.pending, key)
	delete(b.errs, key)
}

// Flag attaches a validation message to a staged cell. An empty message
// clears the flag.
func (b *EditBuffer) Flag(recordId, fieldId, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := CellKey{RecordID: recordId, FieldID: fieldId}
	if message == "" {
		delete(b.errs, key)
		return
	}
	if _, ok := b.pending[key]; !ok {
		return
	}
	b.errs[key] = &CellError{RecordID: recordId, FieldID: fieldId, Message: message}
}

// CurrentValue returns the staged value of a cell if present, otherwise the
// stored one.
func (b *EditBuffer) CurrentValue(recordId, fieldId string, store RecordStore) (Value, bool) {
	b.mu.Lock()
	v, ok := b.pending[CellKey{RecordID: recordId, FieldID: fieldId}]
	b.mu.Unlock()
	if ok {
		return v, true
	}
	r, found := store.Lookup(recordId)
	if !found {
		return Value{}, false
	}
	return r.Value(fieldId)
}

func (b *EditBuffer) HasPending() bool {
	return b.Len() > 0
}

func (b *EditBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Pending returns a copy of the staged values.
func (b *EditBuffer) Pending() PendingEdits {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.clone()
}

// Errors returns the flagged cells ordered by record then field.
func (b *EditBuffer) Errors() ValidationErrors {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errorList()
}

func (b *EditBuffer) errorList() ValidationErrors {
	errs := make(ValidationErrors, 0, len(b.errs))
	for _, e := range b.errs {
		errs = append(errs, e)
	}
	sortCellErrors(errs)
	return errs
}

// Cells lists the staged cells with their flags for display.
func (b *EditBuffer) Cells() []PendingCell {
	b.mu.Lock()
	defer b.mu.Unlock()
	cells := make([]PendingCell, 0, len(b.pending))
	for _, k := range b.pending.Keys() {
		cell := PendingCell{RecordID: k.RecordID, FieldID: k.FieldID, Value: b.pending[k]}
		if e, ok := b.errs[k]; ok {
			cell.Error = e.Message
		}
		cells = append(cells, cell)
	}
	return cells
}

// Commit hands the staged values of every record without flagged cells to
// sink. On success those values leave the buffer; when nothing is left the
// buffer returns to Viewing. Records with flagged cells stay staged and are
// reported as ValidationErrors. When sink fails nothing is cleared and the
// error is returned as *SaveError.
//
// Committing an empty buffer returns to Viewing without calling sink.
func (b *EditBuffer) Commit(ctx context.Context, sink Sink) error {
	return b.CommitExcept(ctx, sink, nil)
}

// CommitExcept is Commit with the records in held kept back too. Held
// records stay staged and are reported as *LockedRecordsError, ahead of any
// flagged cells.
func (b *EditBuffer) CommitExcept(ctx context.Context, sink Sink, held map[string]bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != EditStateEditing {
		return ErrNotEditing
	}
	if len(b.pending) == 0 {
		b.state = EditStateViewing
		return nil
	}

	blocked := make(map[string]bool)
	for k := range b.errs {
		blocked[k.RecordID] = true
	}
	for recordId := range held {
		blocked[recordId] = true
	}
	ready := make(PendingEdits)
	for k, v := range b.pending {
		if !blocked[k.RecordID] {
			ready[k] = v
		}
	}

	if len(ready) > 0 {
		if err := sink.SaveEdits(ctx, ready.clone()); err != nil {
			return newSaveError(err, ready)
		}
		for k := range ready {
			delete(b.pending, k)
		}
	}

	if len(b.pending) == 0 {
		b.state = EditStateViewing
		return nil
	}
	var locked []string
	for _, recordId := range b.pending.RecordIDs() {
		if held[recordId] {
			locked = append(locked, recordId)
		}
	}
	if len(locked) > 0 {
		return &LockedRecordsError{RecordIDs: locked}
	}
	return b.errorList()
}

// Discard clears every staged value and returns to Viewing.
func (b *EditBuffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(PendingEdits)
	b.errs = make(map[CellKey]*CellError)
	b.state = EditStateViewing
}
