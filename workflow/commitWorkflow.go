package workflow

import (
	"context"
	"errors"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fieldops-backend/workflow")

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Name:      "commits_total",
		Help:      "Edit session commits by table and outcome.",
	}, []string{"kind", "outcome"})

	committedCells = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Name:      "committed_cells_total",
		Help:      "Cells saved by edit session commits.",
	}, []string{"kind"})
)

// CommitSession saves a session's staged edits while holding the site's
// commit lock.
func CommitSession(ctx context.Context, repo models.RecordRepository, session *EditSession) error {
	logger := config.GetLogger()
	pending := session.Table.Buffer.Len()
	ctx, span := tracer.Start(ctx, "workflow.CommitSession", trace.WithAttributes(
		attribute.String("site_id", session.SiteId),
		attribute.String("table_kind", string(session.Kind)),
		attribute.Int("pending_cells", pending),
	))
	defer span.End()

	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		span.SetAttributes(attribute.String("correlation_id", correlationId))
	}

	release, err := acquireSiteLock(ctx, session.SiteId)
	if err != nil {
		commitsTotal.WithLabelValues(string(session.Kind), "busy").Inc()
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer release()

	sink := models.RepositorySink{Repo: repo, SiteId: session.SiteId, Kind: session.Kind}
	err = session.Table.Commit(ctx, sink)
	saved := pending - session.Table.Buffer.Len()
	if saved > 0 {
		committedCells.WithLabelValues(string(session.Kind)).Add(float64(saved))
	}

	var invalid models.ValidationErrors
	var locked *models.LockedRecordsError
	var saveErr *models.SaveError
	switch {
	case err == nil:
		commitsTotal.WithLabelValues(string(session.Kind), "ok").Inc()
		username, _ := utils.GetUsernameFromContext(ctx)
		logger.WithFields(logrus.Fields{
			"user":       username,
			"field":      "CommitSession",
			"session_id": session.ID,
			"site_id":    session.SiteId,
			"kind":       session.Kind,
			"cells":      saved,
		}).Info("edit session committed")
		return nil
	case errors.As(err, &invalid):
		commitsTotal.WithLabelValues(string(session.Kind), "invalid").Inc()
		span.SetAttributes(attribute.Int("invalid_cells", len(invalid)))
	case errors.As(err, &locked):
		commitsTotal.WithLabelValues(string(session.Kind), "locked").Inc()
		span.SetAttributes(attribute.StringSlice("locked_records", locked.RecordIDs))
	case errors.As(err, &saveErr):
		commitsTotal.WithLabelValues(string(session.Kind), "failed").Inc()
		config.LogError(logger, "commitWorkflow.go", "CommitSession", "SaveEdits", saveErr.Cells, saveErr.Err)
	default:
		commitsTotal.WithLabelValues(string(session.Kind), "failed").Inc()
		config.LogError(logger, "commitWorkflow.go", "CommitSession", "Commit", session.ID, err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
