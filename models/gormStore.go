package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps sites and records in MySQL and caches record lists in Redis.
type GormStore struct {
	nowFn func() time.Time
}

func NewGormStore() *GormStore {
	return &GormStore{nowFn: time.Now}
}

func (s *GormStore) now() time.Time {
	if s.nowFn == nil {
		return time.Now()
	}
	return s.nowFn()
}

func (s *GormStore) db(ctx context.Context) (*gorm.DB, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	return db.WithContext(ctx), nil
}

func recordListScope(siteId string, kind TableKind) string {
	return siteId + ":" + string(kind)
}

func (s *GormStore) GetSite(ctx context.Context, siteId string) (*Site, error) {
	if siteId == "" {
		return nil, utils.ErrorSiteRequired
	}
	cached, err := utils.RetrieveRedis[Site](siteId)
	if err != nil {
		config.LogError(config.GetLogger(), "GormStore", "GetSite", "retrieve redis", siteId, err)
	}
	if cached != nil {
		if err := checkSiteScope(ctx, cached); err != nil {
			return nil, err
		}
		return cached, nil
	}

	site, err := utils.FetchModel[Site](ctx, "", siteId)
	if err != nil {
		return nil, err
	}
	if err := checkSiteScope(ctx, site); err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(site, site.ID); err != nil {
		config.LogError(config.GetLogger(), "GormStore", "GetSite", "store redis", siteId, err)
	}
	return site, nil
}

func (s *GormStore) GetSites(ctx context.Context, siteIds []string) ([]*Site, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var sites []*Site
	if err := db.Where("id IN ?", utils.UniqueSlice(siteIds)).Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *GormStore) ListSites(ctx context.Context) ([]*Site, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var sites []*Site
	if err := db.Order("name").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *GormStore) CreateSite(ctx context.Context, input *NewSite) (*Site, error) {
	site, err := NewSiteModel(input, uuid.NewString)
	if err != nil {
		return nil, err
	}
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.Create(site).Error; err != nil {
		return nil, err
	}
	return site, nil
}

func (s *GormStore) UpdateSiteSettings(ctx context.Context, siteId string, input *NewSiteSettings) (*Site, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	site, err := s.GetSite(ctx, siteId)
	if err != nil {
		return nil, err
	}
	before := *site

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	changes := input.apply(site)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Site{ID: site.ID}).Updates(changes).Error; err != nil {
			return err
		}
		return createHistory(tx, site, HistoryActionEdit, site.ID, "Site", "", before, site, "Site settings updated.")
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Site](site.ID); err != nil {
		config.LogError(config.GetLogger(), "GormStore", "UpdateSiteSettings", "remove redis", siteId, err)
	}
	return site, nil
}

func (s *GormStore) ListRecords(ctx context.Context, siteId string, kind TableKind) ([]Record, error) {
	if _, err := s.GetSite(ctx, siteId); err != nil {
		return nil, err
	}
	scope := recordListScope(siteId, kind)
	rows, err := utils.RetrieveRedisList[OperationRecord](scope)
	if err != nil {
		config.LogError(config.GetLogger(), "GormStore", "ListRecords", "retrieve redis", scope, err)
	}
	if rows == nil {
		db, err := s.db(ctx)
		if err != nil {
			return nil, err
		}
		if err := db.Where("site_id = ? AND kind = ?", siteId, kind).
			Order("date").Order("id").Find(&rows).Error; err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList(rows, scope); err != nil {
			config.LogError(config.GetLogger(), "GormStore", "ListRecords", "store redis", scope, err)
		}
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.ToRecord())
	}
	return records, nil
}

func (s *GormStore) CreateRecord(ctx context.Context, siteId string, kind TableKind, input *NewRecord) (Record, error) {
	site, err := s.GetSite(ctx, siteId)
	if err != nil {
		return Record{}, err
	}
	schema, err := GetSchema(kind)
	if err != nil {
		return Record{}, err
	}
	r, err := input.toRecord(schema, site.EditWindow(), s.now(), uuid.NewString)
	if err != nil {
		return Record{}, err
	}

	row := OperationRecord{
		ID:       r.ID,
		ClientId: site.ClientId,
		SiteId:   site.ID,
		Kind:     kind,
		Date:     r.Date,
		Values:   RecordValues(r.Values),
	}
	db, err := s.db(ctx)
	if err != nil {
		return Record{}, err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return createHistory(tx, site, HistoryActionCreate, r.ID, string(kind), "", nil, r,
			schema.Title+" record created for "+r.DateLabel()+".")
	})
	if err != nil {
		return Record{}, err
	}
	s.Invalidate(siteId, kind)
	return r, nil
}

// SaveEdits re-reads the touched records under a row lock, re-checks the edit
// window and writes the new values with one history row per changed cell.
func (s *GormStore) SaveEdits(ctx context.Context, siteId string, kind TableKind, edits PendingEdits) error {
	if len(edits) == 0 {
		return nil
	}
	site, err := s.GetSite(ctx, siteId)
	if err != nil {
		return err
	}
	schema, err := GetSchema(kind)
	if err != nil {
		return err
	}
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var rows []OperationRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("site_id = ? AND kind = ? AND id IN ?", siteId, kind, edits.RecordIDs()).
			Find(&rows).Error; err != nil {
			return err
		}
		stored := make(map[string]Record, len(rows))
		for _, row := range rows {
			stored[row.ID] = row.ToRecord()
		}
		edited, err := applyEdits(schema, site.EditWindow(), s.now(), stored, edits)
		if err != nil {
			return err
		}
		for _, e := range edited {
			if err := tx.Model(&OperationRecord{ID: e.After.ID}).
				Update("values", RecordValues(e.After.Values)).Error; err != nil {
				return err
			}
			for _, fieldId := range e.Fields {
				before, after := e.Before.Values[fieldId], e.After.Values[fieldId]
				if err := createHistory(tx, site, HistoryActionEdit, e.After.ID, string(kind), fieldId,
					before, after, editDescription(schema, e.After, fieldId, before, after)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Invalidate(siteId, kind)
	return nil
}

// Invalidate drops the cached record list of one site table.
func (s *GormStore) Invalidate(siteId string, kind TableKind) {
	scope := recordListScope(siteId, kind)
	if err := utils.RemoveRedisList[OperationRecord](scope); err != nil {
		config.LogError(config.GetLogger(), "GormStore", "Invalidate", "remove redis", scope, err)
	}
}
