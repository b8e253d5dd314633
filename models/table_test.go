package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/google/go-cmp/cmp"
)

func newTestTable(t *testing.T, now *time.Time) *models.Table {
	t.Helper()
	table, err := models.NewTable(testSchema, models.EditWindow{AllowedEditDays: 7, Location: time.UTC}, []models.Record{
		rec("old", "2025-08-01", map[string]models.Value{"value": models.IntValue(1), "block": models.TextValue("A")}),
		rec("mid", "2025-08-13", map[string]models.Value{"value": models.IntValue(2), "block": models.TextValue("B")}),
		rec("new", "2025-08-19", map[string]models.Value{"value": models.IntValue(3), "block": models.TextValue("A"), "remarks": models.TextValue("x")}),
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	table.Now = func() time.Time { return *now }
	return table
}

func TestNewTableRejectsDuplicateIds(t *testing.T) {
	_, err := models.NewTable(testSchema, models.EditWindow{}, []models.Record{
		rec("a", "2025-08-01", nil), rec("a", "2025-08-02", nil),
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestTableStageRules(t *testing.T) {
	now := at(t, time.RFC3339, "2025-08-20T09:00:00Z")
	table := newTestTable(t, &now)

	if _, err := table.Stage("new", "remarks", "y"); !errors.Is(err, models.ErrNotEditing) {
		t.Fatalf("Stage before Begin: got %v", err)
	}
	if err := table.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := table.Stage("old", "remarks", "late"); !errors.Is(err, models.ErrRecordLocked) {
		t.Fatalf("locked record: got %v", err)
	}
	if _, err := table.Stage("missing", "remarks", "y"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing record: got %v", err)
	}
	if _, err := table.Stage("new", models.DateFieldId, "2025-08-18"); !errors.Is(err, models.ErrUnknownField) {
		t.Fatalf("date column: got %v", err)
	}

	cellErr, err := table.Stage("mid", "value", "twelve")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if cellErr == nil || cellErr.Message != "Value must be a number" {
		t.Fatalf("cell error: got %+v", cellErr)
	}

	// Misplaced separators are not read as thousands groups.
	for _, raw := range []string{"1,5", "1,,2", ",7,"} {
		cellErr, err := table.Stage("new", "value", raw)
		if err != nil {
			t.Fatalf("Stage(%q): %v", raw, err)
		}
		if cellErr == nil || cellErr.Message != "Value must be a number" {
			t.Fatalf("Stage(%q): cell error %+v", raw, cellErr)
		}
	}

	if cellErr, err := table.Stage("new", "value", "1,250.5"); err != nil || cellErr != nil {
		t.Fatalf("valid number: %v %v", cellErr, err)
	}
	if cellErr, err := table.Stage("new", "remarks", "x"); err != nil || cellErr != nil {
		t.Fatalf("restore: %v %v", cellErr, err)
	}

	want := []models.PendingCell{
		{RecordID: "mid", FieldID: "value", Value: models.TextValue("twelve"), Error: "Value must be a number"},
		{RecordID: "new", FieldID: "value", Value: models.IntValue(0)},
	}
	want[1].Value, _ = models.ParseValue(models.FieldTypeNumber, "1250.5")
	if diff := cmp.Diff(want, table.Buffer.Cells(), valueComparer); diff != "" {
		t.Fatalf("pending cells (-want +got):\n%s", diff)
	}
}

func TestTableViewOverlaysPendingEdits(t *testing.T) {
	now := at(t, time.RFC3339, "2025-08-20T09:00:00Z")
	table := newTestTable(t, &now)
	_ = table.Begin()
	_, _ = table.Stage("new", "remarks", "edited")
	_, _ = table.Stage("mid", "value", "abc")

	rows, err := table.View(models.ViewOptions{SortKey: "value", SortDir: models.SortDirectionDesc})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, rowIds(rows)); diff != "" {
		t.Fatalf("rows sort on stored values (-want +got):\n%s", diff)
	}
	if got := rows[0].Record.Values["remarks"].String(); got != "edited" {
		t.Fatalf("overlay: got %q", got)
	}
	if diff := cmp.Diff([]bool{true, true, false}, []bool{rows[0].Editable, rows[1].Editable, rows[2].Editable}); diff != "" {
		t.Fatalf("editable flags (-want +got):\n%s", diff)
	}
	if rows[1].Errors["value"] == "" {
		t.Fatalf("expected error on mid/value")
	}
	stored, _ := table.Lookup("new")
	if stored.Values["remarks"].String() != "x" {
		t.Fatalf("View changed the stored record")
	}
}

func TestTableCommitAppliesEdits(t *testing.T) {
	now := at(t, time.RFC3339, "2025-08-20T09:00:00Z")
	table := newTestTable(t, &now)
	_ = table.Begin()
	_, _ = table.Stage("new", "remarks", "ok")

	sink := &recordingSink{}
	if err := table.Commit(context.Background(), sink); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	r, _ := table.Lookup("new")
	if r.Values["remarks"].String() != "ok" {
		t.Fatalf("snapshot not updated: %q", r.Values["remarks"])
	}
	if table.Buffer.State() != models.EditStateViewing {
		t.Fatalf("state: got %s", table.Buffer.State())
	}
}

func TestTableCommitRechecksWindow(t *testing.T) {
	now := at(t, time.RFC3339, "2025-08-20T09:00:00Z")
	table := newTestTable(t, &now)
	_ = table.Begin()
	_, _ = table.Stage("mid", "remarks", "late")
	_, _ = table.Stage("new", "remarks", "fine")

	// mid (2025-08-13) crosses the 7 day boundary at midnight.
	now = at(t, time.RFC3339, "2025-08-21T00:30:00Z")

	sink := &recordingSink{}
	err := table.Commit(context.Background(), sink)
	var locked *models.LockedRecordsError
	if !errors.As(err, &locked) || !errors.Is(err, models.ErrRecordLocked) {
		t.Fatalf("got %v want *LockedRecordsError", err)
	}
	if diff := cmp.Diff([]string{"mid"}, locked.RecordIDs); diff != "" {
		t.Fatalf("locked records (-want +got):\n%s", diff)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("sink calls: %d", len(sink.calls))
	}
	if diff := cmp.Diff([]string{"new"}, sink.calls[0].RecordIDs()); diff != "" {
		t.Fatalf("committed (-want +got):\n%s", diff)
	}
	if len(table.Buffer.Errors()) != 0 {
		t.Fatalf("locked records flagged as cell errors: %v", table.Buffer.Errors())
	}
	if table.Buffer.Len() != 1 || table.Buffer.State() != models.EditStateEditing {
		t.Fatalf("buffer: len=%d state=%s", table.Buffer.Len(), table.Buffer.State())
	}

	table.Discard()
	if table.Buffer.HasPending() {
		t.Fatalf("Discard left pending edits")
	}
}

func rowIds(rows []models.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record.ID)
	}
	return out
}
