package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/greenops/fieldops_backend/utils"
)

// RecordRepository is the persistence behind the tables. GormStore serves
// MySQL; MemoryStore serves fixtures and tests.
type RecordRepository interface {
	GetSite(ctx context.Context, siteId string) (*Site, error)
	GetSites(ctx context.Context, siteIds []string) ([]*Site, error)
	ListSites(ctx context.Context) ([]*Site, error)
	CreateSite(ctx context.Context, input *NewSite) (*Site, error)
	UpdateSiteSettings(ctx context.Context, siteId string, input *NewSiteSettings) (*Site, error)
	ListRecords(ctx context.Context, siteId string, kind TableKind) ([]Record, error)
	CreateRecord(ctx context.Context, siteId string, kind TableKind, input *NewRecord) (Record, error)
	SaveEdits(ctx context.Context, siteId string, kind TableKind, edits PendingEdits) error
}

// RecordValues is the JSON column holding a record's cells.
type RecordValues map[string]Value

func (v RecordValues) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]Value(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *RecordValues) Scan(src interface{}) error {
	var b []byte
	switch s := src.(type) {
	case nil:
		*v = RecordValues{}
		return nil
	case []byte:
		b = s
	case string:
		b = []byte(s)
	default:
		return fmt.Errorf("cannot scan %T into RecordValues", src)
	}
	values := make(map[string]Value)
	if err := utils.UnmarshalFromJSON(b, &values); err != nil {
		return err
	}
	*v = values
	return nil
}

// OperationRecord is the stored row of every historic-data table.
type OperationRecord struct {
	ID        string       `gorm:"primary_key;size:36" json:"id"`
	ClientId  string       `gorm:"index;size:36;not null" json:"client_id"`
	SiteId    string       `gorm:"index:idx_site_kind_date,priority:1;size:36;not null" json:"site_id"`
	Kind      TableKind    `gorm:"index:idx_site_kind_date,priority:2;size:32;not null" json:"kind"`
	Date      time.Time    `gorm:"index:idx_site_kind_date,priority:3;type:date;not null" json:"date"`
	Values    RecordValues `gorm:"type:json" json:"values"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o OperationRecord) ToRecord() Record {
	values := make(map[string]Value, len(o.Values))
	for k, v := range o.Values {
		values[k] = v
	}
	return Record{ID: o.ID, Date: CalendarDate(o.Date), Values: values}
}

// NewRecord is the raw input of a new table row. Values are keyed by field
// id and read with the column's type.
type NewRecord struct {
	ID     string            `json:"id" validate:"omitempty,max=36"`
	Date   string            `json:"date" validate:"required"`
	Values map[string]string `json:"values"`
}

// toRecord validates input against the table and the site's edit window.
func (input *NewRecord) toRecord(schema TableSchema, window EditWindow, now time.Time, newId func() string) (Record, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return Record{}, err
	}
	date, err := ParseDate(input.Date)
	if err != nil {
		return Record{}, err
	}
	if err := window.Check(date, now); err != nil {
		return Record{}, err
	}
	r := Record{ID: strings.TrimSpace(input.ID), Date: date, Values: make(map[string]Value)}
	if r.ID == "" {
		r.ID = newId()
	}
	var errs ValidationErrors
	for id, raw := range input.Values {
		field, ok := schema.Field(id)
		if !ok {
			errs = append(errs, &CellError{RecordID: r.ID, FieldID: id, Message: ErrUnknownField.Error()})
			continue
		}
		v, msg := CoerceInput(field, raw)
		if msg != "" {
			errs = append(errs, &CellError{RecordID: r.ID, FieldID: id, Message: msg})
			continue
		}
		if !v.IsEmpty() {
			r.Values[id] = v
		}
	}
	for _, field := range schema.Fields {
		if _, given := input.Values[field.ID]; !given && field.Required {
			errs = append(errs, &CellError{RecordID: r.ID, FieldID: field.ID, Message: field.Name + " is required"})
		}
	}
	if len(errs) > 0 {
		sortCellErrors(errs)
		return Record{}, errs
	}
	return r, nil
}

// editedRecord is one record touched by a commit.
type editedRecord struct {
	Before Record
	After  Record
	Fields []string
}

// applyEdits checks a batch of edits against the current stored records and
// returns the records as they look after the batch. Edits to locked records
// fail the whole batch with *LockedRecordsError naming every locked record.
func applyEdits(schema TableSchema, window EditWindow, now time.Time, stored map[string]Record, edits PendingEdits) ([]editedRecord, error) {
	var out []editedRecord
	var errs ValidationErrors
	var locked []string
	for _, recordId := range edits.RecordIDs() {
		before, ok := stored[recordId]
		if !ok {
			return nil, fmt.Errorf("record %q: %w", recordId, utils.ErrorRecordNotFound)
		}
		if !window.IsEditable(before.Date, now) {
			locked = append(locked, recordId)
			continue
		}
		after := before
		var fields []string
		for _, k := range edits.Keys() {
			if k.RecordID != recordId {
				continue
			}
			field, ok := schema.Field(k.FieldID)
			if !ok {
				return nil, fmt.Errorf("field %q: %w", k.FieldID, ErrUnknownField)
			}
			v := edits[k]
			if msg := ValidateValue(field, v); msg != "" {
				errs = append(errs, &CellError{RecordID: recordId, FieldID: k.FieldID, Message: msg})
				continue
			}
			after = after.With(k.FieldID, v)
			fields = append(fields, k.FieldID)
		}
		out = append(out, editedRecord{Before: before, After: after, Fields: fields})
	}
	if len(locked) > 0 {
		return nil, &LockedRecordsError{RecordIDs: locked}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func editDescription(schema TableSchema, r Record, fieldId string, before, after Value) string {
	name := fieldId
	if f, ok := schema.Field(fieldId); ok {
		name = f.Name
	}
	return fmt.Sprintf("%s %s: %s changed from %q to %q.", schema.Title, r.DateLabel(), name, before.String(), after.String())
}

// RepositorySink commits an edit buffer of one site table to a repository.
type RepositorySink struct {
	Repo   RecordRepository
	SiteId string
	Kind   TableKind
}

func (s RepositorySink) SaveEdits(ctx context.Context, edits PendingEdits) error {
	if s.Repo == nil {
		return errors.New("no repository")
	}
	return s.Repo.SaveEdits(ctx, s.SiteId, s.Kind, edits)
}

// CurrentWindow reads the site's edit window as it is stored now.
func (s RepositorySink) CurrentWindow(ctx context.Context) (EditWindow, error) {
	if s.Repo == nil {
		return EditWindow{}, errors.New("no repository")
	}
	site, err := s.Repo.GetSite(ctx, s.SiteId)
	if err != nil {
		return EditWindow{}, err
	}
	return site.EditWindow(), nil
}

// LoadTable builds the editable table of one site from a repository.
func LoadTable(ctx context.Context, repo RecordRepository, siteId string, kind TableKind) (*Table, *Site, error) {
	site, err := repo.GetSite(ctx, siteId)
	if err != nil {
		return nil, nil, err
	}
	schema, err := GetSchema(kind)
	if err != nil {
		return nil, nil, err
	}
	records, err := repo.ListRecords(ctx, siteId, kind)
	if err != nil {
		return nil, nil, err
	}
	table, err := NewTable(schema, site.EditWindow(), records)
	if err != nil {
		return nil, nil, err
	}
	return table, site, nil
}
