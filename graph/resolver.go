package graph

import (
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// It serves as dependency injection for your app, add any dependencies you require here.

type Resolver struct {
	Tracer trace.Tracer
	// Repo returns the repository current at request time.
	Repo     func() models.RecordRepository
	Sessions func() *workflow.SessionManager
	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}
	return otel.Tracer("fieldops-graph")
}
