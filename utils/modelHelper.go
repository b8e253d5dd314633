package utils

import (
	"context"
	"errors"

	"bitbucket.org/greenops/fieldops_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (clientId is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, clientId string, id string, associations ...string) (*T, error) {

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	dbCtx := db.WithContext(ctx)
	if clientId != "" {
		dbCtx = dbCtx.Where("client_id = ?", clientId)
	}
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
