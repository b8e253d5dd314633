package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is one dated row of a historic-data table.
type Record struct {
	ID     string
	Date   time.Time
	Values map[string]Value
}

// Value returns the stored value of a field.
func (r Record) Value(fieldId string) (Value, bool) {
	v, ok := r.Values[fieldId]
	return v, ok
}

func (r Record) DateLabel() string {
	return FormatDate(r.Date)
}

// With returns a copy of r with fieldId set to v. r is not modified.
func (r Record) With(fieldId string, v Value) Record {
	values := make(map[string]Value, len(r.Values)+1)
	for k, existing := range r.Values {
		values[k] = existing
	}
	values[fieldId] = v
	r.Values = values
	return r
}

type recordJSON struct {
	ID     string           `json:"id"`
	Date   string           `json:"date"`
	Values map[string]Value `json:"values"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	values := r.Values
	if values == nil {
		values = map[string]Value{}
	}
	return json.Marshal(recordJSON{ID: r.ID, Date: r.DateLabel(), Values: values})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	r.ID = raw.ID
	r.Date = date
	r.Values = raw.Values
	return nil
}

// RecordStore is the read-only collection a table is rendered from.
type RecordStore interface {
	Lookup(recordId string) (Record, bool)
}

// RecordIndex is a RecordStore over a slice, keyed by record id.
type RecordIndex map[string]Record

// IndexRecords fails when two records share an id.
func IndexRecords(records []Record) (RecordIndex, error) {
	index := make(RecordIndex, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("record dated %s has no id", r.DateLabel())
		}
		if _, exists := index[r.ID]; exists {
			return nil, fmt.Errorf("duplicate record id %q", r.ID)
		}
		index[r.ID] = r
	}
	return index, nil
}

func (idx RecordIndex) Lookup(recordId string) (Record, bool) {
	r, ok := idx[recordId]
	return r, ok
}
