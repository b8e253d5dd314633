package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/google/uuid"
)

type memoryTable struct {
	order   []string
	records map[string]Record
}

func (t *memoryTable) list() []Record {
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, cloneRecord(t.records[id]))
	}
	return out
}

func cloneRecord(r Record) Record {
	cp := r
	cp.Values = make(map[string]Value, len(r.Values))
	for k, v := range r.Values {
		cp.Values[k] = v
	}
	return cp
}

type tableKey struct {
	siteId string
	kind   TableKind
}

// MemoryStore is a RecordRepository held in process memory. It applies the
// same validation and edit-window checks as GormStore.
type MemoryStore struct {
	mu      sync.RWMutex
	sites   map[string]*Site
	tables  map[tableKey]*memoryTable
	history []History
	nowFn   func() time.Time
	// failNext makes the next SaveEdits fail with the given error.
	failNext error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sites:  make(map[string]*Site),
		tables: make(map[tableKey]*memoryTable),
		nowFn:  time.Now,
	}
}

// SetClock replaces the store's notion of now.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// FailNextSave makes the next SaveEdits return err without writing.
func (s *MemoryStore) FailNextSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) table(siteId string, kind TableKind) *memoryTable {
	key := tableKey{siteId: siteId, kind: kind}
	t, ok := s.tables[key]
	if !ok {
		t = &memoryTable{records: make(map[string]Record)}
		s.tables[key] = t
	}
	return t
}

func (s *MemoryStore) site(ctx context.Context, siteId string) (*Site, error) {
	if siteId == "" {
		return nil, utils.ErrorSiteRequired
	}
	site, ok := s.sites[siteId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if err := checkSiteScope(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

func (s *MemoryStore) GetSite(ctx context.Context, siteId string) (*Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, err := s.site(ctx, siteId)
	if err != nil {
		return nil, err
	}
	cp := *site
	return &cp, nil
}

func (s *MemoryStore) GetSites(ctx context.Context, siteIds []string) ([]*Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Site
	for _, id := range utils.UniqueSlice(siteIds) {
		site, err := s.site(ctx, id)
		if err != nil {
			continue
		}
		cp := *site
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) ListSites(ctx context.Context) ([]*Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Site
	for _, site := range s.sites {
		if checkSiteScope(ctx, site) != nil {
			continue
		}
		cp := *site
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CreateSite(ctx context.Context, input *NewSite) (*Site, error) {
	site, err := NewSiteModel(input, uuid.NewString)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	site.CreatedAt = s.nowFn()
	site.UpdatedAt = site.CreatedAt
	s.sites[site.ID] = site
	cp := *site
	return &cp, nil
}

func (s *MemoryStore) UpdateSiteSettings(ctx context.Context, siteId string, input *NewSiteSettings) (*Site, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	site, err := s.site(ctx, siteId)
	if err != nil {
		return nil, err
	}
	before := *site
	input.apply(site)
	site.UpdatedAt = s.nowFn()
	s.history = append(s.history, newHistory(ctx, site, HistoryActionEdit, site.ID, "Site", "", before, site, "Site settings updated."))
	cp := *site
	return &cp, nil
}

func (s *MemoryStore) ListRecords(ctx context.Context, siteId string, kind TableKind) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.site(ctx, siteId); err != nil {
		return nil, err
	}
	t, ok := s.tables[tableKey{siteId: siteId, kind: kind}]
	if !ok {
		return []Record{}, nil
	}
	return t.list(), nil
}

// Insert adds records without edit-window checks. Used to load fixtures.
func (s *MemoryStore) Insert(siteId string, kind TableKind, records ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[siteId]; !ok {
		return utils.ErrorRecordNotFound
	}
	t := s.table(siteId, kind)
	for _, r := range records {
		if _, exists := t.records[r.ID]; !exists {
			t.order = append(t.order, r.ID)
		}
		t.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (s *MemoryStore) CreateRecord(ctx context.Context, siteId string, kind TableKind, input *NewRecord) (Record, error) {
	schema, err := GetSchema(kind)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	site, err := s.site(ctx, siteId)
	if err != nil {
		return Record{}, err
	}
	r, err := input.toRecord(schema, site.EditWindow(), s.nowFn(), uuid.NewString)
	if err != nil {
		return Record{}, err
	}
	t := s.table(siteId, kind)
	if _, exists := t.records[r.ID]; exists {
		return Record{}, ValidationErrors{{RecordID: r.ID, FieldID: "id", Message: "record id already exists"}}
	}
	t.order = append(t.order, r.ID)
	t.records[r.ID] = cloneRecord(r)
	s.history = append(s.history, newHistory(ctx, site, HistoryActionCreate, r.ID, string(kind), "", nil, r,
		schema.Title+" record created for "+r.DateLabel()+"."))
	return r, nil
}

func (s *MemoryStore) SaveEdits(ctx context.Context, siteId string, kind TableKind, edits PendingEdits) error {
	if len(edits) == 0 {
		return nil
	}
	schema, err := GetSchema(kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	site, err := s.site(ctx, siteId)
	if err != nil {
		return err
	}
	t := s.table(siteId, kind)
	edited, err := applyEdits(schema, site.EditWindow(), s.nowFn(), t.records, edits)
	if err != nil {
		return err
	}
	for _, e := range edited {
		t.records[e.After.ID] = cloneRecord(e.After)
		for _, fieldId := range e.Fields {
			before, after := e.Before.Values[fieldId], e.After.Values[fieldId]
			s.history = append(s.history, newHistory(ctx, site, HistoryActionEdit, e.After.ID, string(kind), fieldId,
				before, after, editDescription(schema, e.After, fieldId, before, after)))
		}
	}
	return nil
}

// History returns the history rows written so far, oldest first.
func (s *MemoryStore) History() []History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]History, len(s.history))
	copy(out, s.history)
	return out
}
