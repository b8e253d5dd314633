package models_test

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/greenops/fieldops_backend/models"
	"github.com/google/go-cmp/cmp"
)

func bufferStore() models.RecordIndex {
	index, _ := models.IndexRecords([]models.Record{
		rec("a", "2025-08-10", map[string]models.Value{"value": models.IntValue(5), "remarks": models.TextValue("before")}),
		rec("b", "2025-08-12", map[string]models.Value{"value": models.IntValue(3)}),
	})
	return index
}

func TestStageThenCommitClearsBuffer(t *testing.T) {
	buf := models.NewEditBuffer()
	if err := buf.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := buf.Stage("a", "remarks", models.TextValue("ok")); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !buf.HasPending() {
		t.Fatalf("expected pending edits")
	}

	sink := &recordingSink{}
	if err := buf.Commit(context.Background(), sink); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if buf.HasPending() {
		t.Fatalf("buffer not cleared after commit")
	}
	if buf.State() != models.EditStateViewing {
		t.Fatalf("state: got %s want Viewing", buf.State())
	}
	if len(sink.calls) != 1 {
		t.Fatalf("sink calls: got %d want 1", len(sink.calls))
	}
	want := models.PendingEdits{{RecordID: "a", FieldID: "remarks"}: models.TextValue("ok")}
	if diff := cmp.Diff(want, sink.calls[0], valueComparer); diff != "" {
		t.Fatalf("sink received (-want +got):\n%s", diff)
	}
}

func TestCurrentValueOverlaysStore(t *testing.T) {
	store := bufferStore()
	buf := models.NewEditBuffer()
	_ = buf.Begin()
	_ = buf.Stage("b", "value", models.IntValue(42))

	v, ok := buf.CurrentValue("b", "value", store)
	if !ok || !v.Equal(models.IntValue(42)) {
		t.Fatalf("staged value: got %v %v", v, ok)
	}
	v, ok = buf.CurrentValue("a", "value", store)
	if !ok || !v.Equal(models.IntValue(5)) {
		t.Fatalf("stored value: got %v %v", v, ok)
	}
	stored, _ := store.Lookup("b")
	if !stored.Values["value"].Equal(models.IntValue(3)) {
		t.Fatalf("Stage touched the record store")
	}
}

func TestDiscardRestoresStoredValues(t *testing.T) {
	store := bufferStore()
	buf := models.NewEditBuffer()
	_ = buf.Begin()
	for _, id := range []string{"a", "b"} {
		for _, f := range testSchema.Fields {
			_ = buf.Stage(id, f.ID, models.TextValue("edited"))
		}
	}
	buf.Discard()

	if buf.HasPending() || buf.State() != models.EditStateViewing {
		t.Fatalf("Discard left pending=%v state=%s", buf.HasPending(), buf.State())
	}
	for _, id := range []string{"a", "b"} {
		r, _ := store.Lookup(id)
		for _, f := range testSchema.Fields {
			got, _ := buf.CurrentValue(id, f.ID, store)
			if !got.Equal(r.Values[f.ID]) {
				t.Fatalf("%s/%s: got %q want %q", id, f.ID, got, r.Values[f.ID])
			}
		}
	}
}

func TestFailedCommitKeepsBuffer(t *testing.T) {
	buf := models.NewEditBuffer()
	_ = buf.Begin()
	_ = buf.Stage("a", "remarks", models.TextValue("ok"))
	_ = buf.Stage("b", "value", models.IntValue(7))
	before := buf.Pending()

	boom := errors.New("network down")
	err := buf.Commit(context.Background(), &recordingSink{err: boom})

	var saveErr *models.SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("got %v want *SaveError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("SaveError does not wrap the sink error")
	}
	if len(saveErr.Cells) != 2 {
		t.Fatalf("SaveError cells: got %d want 2", len(saveErr.Cells))
	}
	if buf.State() != models.EditStateEditing {
		t.Fatalf("state: got %s want Editing", buf.State())
	}
	if diff := cmp.Diff(before, buf.Pending(), valueComparer); diff != "" {
		t.Fatalf("pending changed after failed commit (-before +after):\n%s", diff)
	}

	if err := buf.Commit(context.Background(), &recordingSink{}); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
	if buf.HasPending() {
		t.Fatalf("buffer not cleared after retry")
	}
}

func TestCommitHoldsBackFlaggedRecords(t *testing.T) {
	buf := models.NewEditBuffer()
	_ = buf.Begin()
	_ = buf.Stage("a", "remarks", models.TextValue("ok"))
	_ = buf.Stage("b", "value", models.TextValue("abc"))
	_ = buf.Stage("b", "remarks", models.TextValue("fine"))
	buf.Flag("b", "value", "Value must be a number")

	sink := &recordingSink{}
	err := buf.Commit(context.Background(), sink)
	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("got %v want ValidationErrors", err)
	}
	if len(verrs) != 1 || verrs[0].RecordID != "b" || verrs[0].FieldID != "value" {
		t.Fatalf("validation errors: %v", verrs)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("sink calls: got %d want 1", len(sink.calls))
	}
	if diff := cmp.Diff([]string{"a"}, sink.calls[0].RecordIDs()); diff != "" {
		t.Fatalf("committed records (-want +got):\n%s", diff)
	}
	if buf.State() != models.EditStateEditing || buf.Len() != 2 {
		t.Fatalf("state=%s pending=%d, want Editing with 2 cells", buf.State(), buf.Len())
	}

	_ = buf.Stage("b", "value", models.IntValue(4))
	if len(buf.Errors()) != 0 {
		t.Fatalf("restaging did not clear the flag")
	}
	if err := buf.Commit(context.Background(), sink); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if buf.State() != models.EditStateViewing {
		t.Fatalf("state: got %s want Viewing", buf.State())
	}
}

func TestEmptyCommitSkipsSink(t *testing.T) {
	buf := models.NewEditBuffer()
	_ = buf.Begin()
	sink := models.SinkFunc(func(ctx context.Context, edits models.PendingEdits) error {
		t.Fatalf("sink called for an empty buffer")
		return nil
	})
	if err := buf.Commit(context.Background(), sink); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if buf.State() != models.EditStateViewing {
		t.Fatalf("state: got %s want Viewing", buf.State())
	}
}

func TestBufferTransitions(t *testing.T) {
	buf := models.NewEditBuffer()
	if err := buf.Stage("a", "remarks", models.TextValue("x")); !errors.Is(err, models.ErrNotEditing) {
		t.Fatalf("Stage while viewing: got %v", err)
	}
	if err := buf.Commit(context.Background(), &recordingSink{}); !errors.Is(err, models.ErrNotEditing) {
		t.Fatalf("Commit while viewing: got %v", err)
	}
	if err := buf.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := buf.Begin(); !errors.Is(err, models.ErrAlreadyEditing) {
		t.Fatalf("second Begin: got %v", err)
	}
}

func TestSaveErrorIsNotWrappedTwice(t *testing.T) {
	inner := &models.SaveError{Err: errors.New("conflict")}
	buf := models.NewEditBuffer()
	_ = buf.Begin()
	_ = buf.Stage("a", "remarks", models.TextValue("ok"))
	err := buf.Commit(context.Background(), &recordingSink{err: inner})
	if err != inner {
		t.Fatalf("got %#v want the sink's SaveError", err)
	}
}
