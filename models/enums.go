package models

import (
	"errors"
	"strings"
)

type FieldType string

const (
	FieldTypeNumber FieldType = "number"
	FieldTypeText   FieldType = "text"
	FieldTypeDate   FieldType = "date"
)

func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeNumber, FieldTypeText, FieldTypeDate:
		return true
	}
	return false
}

// convert input to enum type
func (t *FieldType) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "number":
		*t = FieldTypeNumber
	case "text":
		*t = FieldTypeText
	case "date":
		*t = FieldTypeDate
	default:
		return errors.New("invalid field type")
	}
	return nil
}

type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc in any case; empty means ascending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return SortDirectionAsc, nil
	case "desc", "descending":
		return SortDirectionDesc, nil
	default:
		return "", errors.New("invalid sort direction")
	}
}

// TableKind names one historic-data table of a site.
type TableKind string

const (
	TableKindGrassCutting TableKind = "grass_cutting"
	TableKindCleaning     TableKind = "cleaning"
	TableKindGeneration   TableKind = "generation"
)

func (k TableKind) IsValid() bool {
	switch k {
	case TableKindGrassCutting, TableKindCleaning, TableKindGeneration:
		return true
	}
	return false
}

func ParseTableKind(s string) (TableKind, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "grass_cutting", "grasscutting":
		return TableKindGrassCutting, nil
	case "cleaning":
		return TableKindCleaning, nil
	case "generation", "generation_data":
		return TableKindGeneration, nil
	default:
		return "", errors.New("invalid table kind")
	}
}

// EditState is the mode of an edit buffer.
type EditState int

const (
	EditStateViewing EditState = iota
	EditStateEditing
)

func (s EditState) String() string {
	switch s {
	case EditStateViewing:
		return "Viewing"
	case EditStateEditing:
		return "Editing"
	default:
		return "Unknown"
	}
}

func (s EditState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *EditState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Viewing":
		*s = EditStateViewing
	case "Editing":
		*s = EditStateEditing
	default:
		return errors.New("invalid edit state")
	}
	return nil
}

const (
	HistoryActionCreate = "*CREATE*"
	HistoryActionEdit   = "*EDIT*"
)
