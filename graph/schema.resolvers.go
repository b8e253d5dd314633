package graph

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/middlewares"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"bitbucket.org/greenops/fieldops_backend/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type QueryResolver interface {
	Sites(ctx context.Context, ids []string) ([]*models.Site, error)
	Site(ctx context.Context, id string) (*models.Site, error)
	TableSchema(ctx context.Context, kind models.TableKind) (*models.TableSchema, error)
	Records(ctx context.Context, siteId string, kind models.TableKind, filter *RecordFilter) (*RecordPage, error)
	Categories(ctx context.Context, siteId string, kind models.TableKind) ([]string, error)
	EditSession(ctx context.Context, id string) (*workflow.SessionView, error)
}

type MutationResolver interface {
	CreateSite(ctx context.Context, input NewSite) (*models.Site, error)
	UpdateSiteSettings(ctx context.Context, id string, input SiteSettings) (*models.Site, error)
	CreateRecord(ctx context.Context, siteId string, kind models.TableKind, input NewRecord) (*Row, error)
	BeginEditSession(ctx context.Context, siteId string, kind models.TableKind) (*workflow.SessionView, error)
	StageCell(ctx context.Context, sessionId string, input StageCell) (*StageCellPayload, error)
	CommitEditSession(ctx context.Context, sessionId string) (*CommitPayload, error)
	DiscardEditSession(ctx context.Context, sessionId string) (bool, error)
}

func (r *Resolver) Query() QueryResolver       { return &queryResolver{r} }
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

type queryResolver struct{ *Resolver }
type mutationResolver struct{ *Resolver }

func queryFields(q QueryResolver) map[string]fieldFunc {
	return map[string]fieldFunc{
		"sites": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var ids []string
			if args["ids"] != nil {
				ids = argStrings(args, "ids")
			}
			return q.Sites(ctx, ids)
		},
		"site": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return q.Site(ctx, argString(args, "id"))
		},
		"tableSchema": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			kind, err := argKind(args)
			if err != nil {
				return nil, err
			}
			return q.TableSchema(ctx, kind)
		},
		"records": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			kind, err := argKind(args)
			if err != nil {
				return nil, err
			}
			var filter *RecordFilter
			if args["filter"] != nil {
				filter = &RecordFilter{}
				if err := decodeArg(args, "filter", filter); err != nil {
					return nil, err
				}
			}
			return q.Records(ctx, argString(args, "siteId"), kind, filter)
		},
		"categories": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			kind, err := argKind(args)
			if err != nil {
				return nil, err
			}
			return q.Categories(ctx, argString(args, "siteId"), kind)
		},
		"editSession": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return q.EditSession(ctx, argString(args, "id"))
		},
	}
}

func mutationFields(m MutationResolver) map[string]fieldFunc {
	return map[string]fieldFunc{
		"createSite": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			input, err := newSiteInput(args)
			if err != nil {
				return nil, err
			}
			return m.CreateSite(ctx, input)
		},
		"updateSiteSettings": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var input SiteSettings
			if err := decodeArg(args, "input", &input); err != nil {
				return nil, err
			}
			return m.UpdateSiteSettings(ctx, argString(args, "id"), input)
		},
		"createRecord": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			kind, err := argKind(args)
			if err != nil {
				return nil, err
			}
			var input NewRecord
			if err := decodeArg(args, "input", &input); err != nil {
				return nil, err
			}
			return m.CreateRecord(ctx, argString(args, "siteId"), kind, input)
		},
		"beginEditSession": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			kind, err := argKind(args)
			if err != nil {
				return nil, err
			}
			return m.BeginEditSession(ctx, argString(args, "siteId"), kind)
		},
		"stageCell": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var input StageCell
			if err := decodeArg(args, "input", &input); err != nil {
				return nil, err
			}
			return m.StageCell(ctx, argString(args, "sessionId"), input)
		},
		"commitEditSession": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return m.CommitEditSession(ctx, argString(args, "sessionId"))
		},
		"discardEditSession": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return m.DiscardEditSession(ctx, argString(args, "sessionId"))
		},
	}
}

// Sites lists the caller's sites, or the sites named by ids that the caller
// may see.
func (r *queryResolver) Sites(ctx context.Context, ids []string) ([]*models.Site, error) {
	if ids != nil {
		return loadSites(ctx, r.Repo(), utils.UniqueSlice(ids))
	}
	return r.Repo().ListSites(ctx)
}

func (r *queryResolver) Site(ctx context.Context, id string) (*models.Site, error) {
	return middlewares.GetSite(ctx, r.Repo(), strings.TrimSpace(id))
}

func (r *queryResolver) TableSchema(ctx context.Context, kind models.TableKind) (*models.TableSchema, error) {
	schema, err := models.GetSchema(kind)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// Records renders the filtered, sorted table. With a session id the rows
// carry that edit session's pending values.
func (r *queryResolver) Records(ctx context.Context, siteId string, kind models.TableKind, filter *RecordFilter) (*RecordPage, error) {
	ctx, span := r.tracer().Start(ctx, "Query.records", trace.WithAttributes(
		attribute.String("site_id", siteId),
		attribute.String("kind", string(kind)),
	))
	defer span.End()
	ctx = utils.SetSiteIdInContext(ctx, siteId)

	if filter == nil {
		filter = &RecordFilter{}
	}
	dir := models.SortDirectionAsc
	if filter.SortDir != nil {
		dir = *filter.SortDir
	}
	opts := models.ViewOptions{
		SearchTerm: utils.DereferencePtr(filter.Search),
		Category:   utils.DereferencePtr(filter.Category),
		SortKey:    utils.DereferencePtr(filter.SortKey),
		SortDir:    dir,
	}

	var (
		table *models.Table
		site  *models.Site
		err   error
	)
	if sessionId := utils.DereferencePtr(filter.SessionId); sessionId != "" {
		session, err := r.Sessions().Get(ctx, sessionId, siteId, kind)
		if err != nil {
			return nil, err
		}
		table, site = session.Table, session.Site
	} else {
		table, site, err = models.LoadTable(ctx, r.Repo(), siteId, kind)
		if err != nil {
			return nil, err
		}
		table.Now = r.now
	}

	view, err := models.View(table.Records(), table.Schema, opts)
	if err != nil {
		return nil, err
	}
	page := &RecordPage{
		SiteId:    site.ID,
		Kind:      kind,
		Total:     len(view),
		Rows:      NewRows(table.Schema, table.Rows(view)),
		Groups:    []*RowGroup{},
		Summaries: models.Summarize(view, table.Schema),
	}
	if groupBy := utils.DereferencePtr(filter.GroupBy); groupBy != "" {
		groups, err := models.GroupRecords(view, table.Schema, groupBy)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			page.Groups = append(page.Groups, &RowGroup{Key: g.Key, Rows: NewRows(table.Schema, table.Rows(g.Records))})
		}
	}
	if kind == models.TableKindCleaning {
		progress := models.CleaningProgress(view, site.TotalModules)
		page.Cleaning = &progress
	}
	span.SetAttributes(attribute.Int("total", page.Total))
	return page, nil
}

// Categories lists the month labels present in the table, after "all".
func (r *queryResolver) Categories(ctx context.Context, siteId string, kind models.TableKind) ([]string, error) {
	table, _, err := models.LoadTable(ctx, r.Repo(), siteId, kind)
	if err != nil {
		return nil, err
	}
	return append([]string{models.CategoryAll}, models.Categories(table.Records(), nil)...), nil
}

func (r *queryResolver) EditSession(ctx context.Context, id string) (*workflow.SessionView, error) {
	session, err := r.Sessions().Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

func (r *mutationResolver) CreateSite(ctx context.Context, input NewSite) (*models.Site, error) {
	site := models.NewSite{
		ID:              utils.DereferencePtr(input.ID),
		ClientId:        utils.DereferencePtr(input.ClientId),
		Name:            strings.TrimSpace(input.Name),
		Timezone:        utils.DereferencePtr(input.Timezone),
		AllowedEditDays: input.AllowedEditDays,
		TotalModules:    utils.DereferencePtr(input.TotalModules),
	}
	if input.CapacityKw != nil {
		site.CapacityKw = *input.CapacityKw
	}
	// Operators create sites for their own client only.
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
		if clientId, ok := utils.GetClientIdFromContext(ctx); ok && clientId != "" {
			site.ClientId = clientId
		}
	}
	return r.Repo().CreateSite(ctx, &site)
}

// UpdateSiteSettings changes the edit window and other table settings of a
// site. Open edit sessions pick up a shortened window when they commit.
func (r *mutationResolver) UpdateSiteSettings(ctx context.Context, id string, input SiteSettings) (*models.Site, error) {
	return r.Repo().UpdateSiteSettings(ctx, id, &models.NewSiteSettings{
		Name:            input.Name,
		Timezone:        input.Timezone,
		AllowedEditDays: input.AllowedEditDays,
		TotalModules:    input.TotalModules,
	})
}

func (r *mutationResolver) CreateRecord(ctx context.Context, siteId string, kind models.TableKind, input NewRecord) (*Row, error) {
	values := make(map[string]string, len(input.Values))
	for _, cell := range input.Values {
		values[cell.FieldId] = cell.Value
	}
	record, err := r.Repo().CreateRecord(ctx, siteId, kind, &models.NewRecord{
		ID:     utils.DereferencePtr(input.ID),
		Date:   input.Date,
		Values: values,
	})
	if err != nil {
		return nil, err
	}
	site, err := middlewares.GetSite(ctx, r.Repo(), siteId)
	if err != nil {
		return nil, err
	}
	schema, err := models.GetSchema(kind)
	if err != nil {
		return nil, err
	}
	return NewRow(schema, models.Row{
		Record:   record,
		Editable: site.EditWindow().IsEditable(record.Date, r.now()),
	}), nil
}

func (r *mutationResolver) BeginEditSession(ctx context.Context, siteId string, kind models.TableKind) (*workflow.SessionView, error) {
	session, err := r.Sessions().Begin(ctx, siteId, kind)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &view, nil
}

// StageCell stages one cell. Invalid input is staged and reported in
// cellError; the mutation still succeeds.
func (r *mutationResolver) StageCell(ctx context.Context, sessionId string, input StageCell) (*StageCellPayload, error) {
	session, err := r.Sessions().Lookup(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	cellErr, err := r.Sessions().Stage(ctx, session.ID, session.SiteId, session.Kind, input.RecordId, input.FieldId, input.Value)
	if err != nil {
		return nil, err
	}
	view := session.View()
	return &StageCellPayload{CellError: cellErr, Session: &view}, nil
}

// CommitEditSession saves the session. Records with invalid cells stay
// staged and are listed in errors. Records that locked while the session
// was open fail the mutation with RECORD_LOCKED; only a discard clears them.
func (r *mutationResolver) CommitEditSession(ctx context.Context, sessionId string) (*CommitPayload, error) {
	session, err := r.Sessions().Lookup(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	err = r.Sessions().Commit(ctx, session.ID, session.SiteId, session.Kind)
	var (
		invalid models.ValidationErrors
		locked  *models.LockedRecordsError
	)
	switch {
	case err == nil:
		view := session.View()
		return &CommitPayload{Committed: true, Errors: models.ValidationErrors{}, Session: &view}, nil
	case errors.As(err, &locked):
		return nil, err
	case errors.As(err, &invalid):
		view := session.View()
		return &CommitPayload{Committed: false, Errors: invalid, Session: &view}, nil
	default:
		return nil, err
	}
}

func (r *mutationResolver) DiscardEditSession(ctx context.Context, sessionId string) (bool, error) {
	session, err := r.Sessions().Lookup(ctx, sessionId)
	if err != nil {
		return false, err
	}
	if err := r.Sessions().Discard(ctx, session.ID, session.SiteId, session.Kind); err != nil {
		return false, err
	}
	return true, nil
}
