package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"github.com/google/go-cmp/cmp"
)

var valueComparer = cmp.Comparer(func(a, b models.Value) bool { return a.Equal(b) })

var testSchema = models.TableSchema{
	Kind:  models.TableKindGrassCutting,
	Title: "Test",
	Fields: []models.FieldDefinition{
		{ID: "value", Name: "Value", Type: models.FieldTypeNumber},
		{ID: "remarks", Name: "Remarks", Type: models.FieldTypeText},
		{ID: "block", Name: "Block", Type: models.FieldTypeText},
	},
}

func rec(id, date string, values map[string]models.Value) models.Record {
	if values == nil {
		values = map[string]models.Value{}
	}
	return models.Record{ID: id, Date: models.MustParseDate(date), Values: values}
}

func ids(records []models.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func at(t *testing.T, layout, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

// recordingSink captures every batch it is given.
type recordingSink struct {
	calls []models.PendingEdits
	err   error
}

func (s *recordingSink) SaveEdits(ctx context.Context, edits models.PendingEdits) error {
	s.calls = append(s.calls, edits)
	return s.err
}
