package graph

import (
	"context"

	"bitbucket.org/greenops/fieldops_backend/middlewares"
	"bitbucket.org/greenops/fieldops_backend/models"
)

// NewRow renders a table row with one cell per schema column.
func NewRow(schema models.TableSchema, row models.Row) *Row {
	pending := make(map[string]bool, len(row.Pending))
	for _, fieldId := range row.Pending {
		pending[fieldId] = true
	}
	out := &Row{
		ID:       row.Record.ID,
		Date:     row.Record.DateLabel(),
		Editable: row.Editable,
		Cells:    make([]Cell, 0, len(schema.Fields)),
		Pending:  append([]string{}, row.Pending...),
	}
	for _, field := range schema.Fields {
		cell := Cell{FieldId: field.ID, Pending: pending[field.ID]}
		if v, ok := row.Record.Value(field.ID); ok && !v.IsEmpty() {
			s := v.String()
			cell.Value = &s
			if v.Type == models.FieldTypeNumber {
				n := v.Number
				cell.Number = &n
			}
		}
		if msg, ok := row.Errors[field.ID]; ok {
			cell.Error = &msg
		}
		out.Cells = append(out.Cells, cell)
	}
	return out
}

func NewRows(schema models.TableSchema, rows []models.Row) []*Row {
	out := make([]*Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewRow(schema, row))
	}
	return out
}

// loadSites resolves ids through the request's site loader.
func loadSites(ctx context.Context, repo models.RecordRepository, ids []string) ([]*models.Site, error) {
	var (
		sites []*models.Site
		errs  []error
	)
	if middlewares.For(ctx) == nil {
		var err error
		if sites, err = repo.GetSites(ctx, ids); err != nil {
			return nil, err
		}
	} else {
		sites, errs = middlewares.GetSites(ctx, ids)
	}
	found := make([]*models.Site, 0, len(sites))
	for i, site := range sites {
		if site == nil || (errs != nil && errs[i] != nil) {
			continue
		}
		found = append(found, site)
	}
	return found, nil
}
