package middlewares

import (
	"context"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/graph-gophers/dataloader/v7"
)

type siteReader struct {
	repo models.RecordRepository
}

func (r *siteReader) getSites(ctx context.Context, ids []string) []*dataloader.Result[*models.Site] {
	results, err := r.repo.GetSites(ctx, ids)
	if err != nil {
		return handleError[*models.Site](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(s *models.Site) string { return s.ID }, utils.ErrorRecordNotFound)
}

// GetSite loads a site through the request's loader, falling back to the
// repository when the request has none.
func GetSite(ctx context.Context, repo models.RecordRepository, id string) (*models.Site, error) {
	loaders := For(ctx)
	if loaders == nil {
		return repo.GetSite(ctx, id)
	}
	return loaders.SiteLoader.Load(ctx, id)()
}

func GetSites(ctx context.Context, ids []string) ([]*models.Site, []error) {
	loaders := For(ctx)
	return loaders.SiteLoader.LoadMany(ctx, ids)()
}
