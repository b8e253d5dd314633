package middlewares

import (
	"context"
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	SiteLoader *dataloader.Loader[string, *models.Site]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(repo models.RecordRepository) *Loaders {
	siteReader := &siteReader{repo: repo}
	return &Loaders{
		SiteLoader: dataloader.NewBatchedLoader(siteReader.getSites, dataloader.WithWait[string, *models.Site](time.Millisecond)),
	}
}

// LoaderMiddleware gives every request fresh loaders over the repository
// current at request time. Requests before the repository is ready get none.
func LoaderMiddleware(repo func() models.RecordRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := repo()
		if current == nil {
			c.Next()
			return
		}
		loader := NewLoaders(current)
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results into dataloader results in the order of ids;
// missing ids get notFound
func generateLoaderResults[T any](results []*T, ids []string, idOf func(*T) string, notFound error) []*dataloader.Result[*T] {
	resultMap := make(map[string]*T, len(results))
	for _, result := range results {
		resultMap[idOf(result)] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[*T]{Error: notFound})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: data})
	}
	return loaderResults
}
