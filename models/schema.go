package models

import (
	"errors"
	"fmt"
	"regexp"

	"bitbucket.org/greenops/fieldops_backend/utils"
)

// DateFieldId is the reserved column id of the record date.
const DateFieldId = "date"

const timeOfDayPattern = `^([01]\d|2[0-3]):[0-5]\d$`

var ErrUnknownField = errors.New("unknown field")

// FieldDefinition describes one column of a table.
type FieldDefinition struct {
	ID       string    `json:"id" validate:"required,max=64"`
	Name     string    `json:"name" validate:"required,max=100"`
	Type     FieldType `json:"type" validate:"required,oneof=number text date"`
	Required bool      `json:"required"`
	// Pattern optionally constrains text values (e.g. HH:MM times).
	Pattern string `json:"pattern,omitempty"`
}

// TableSchema is the column configuration injected into the shared table logic.
type TableSchema struct {
	Kind   TableKind         `json:"kind"`
	Title  string            `json:"title"`
	Fields []FieldDefinition `json:"fields"`
	// GroupBy is the default grouping column, empty for none.
	GroupBy string `json:"group_by,omitempty"`
}

func (s TableSchema) Field(fieldId string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.ID == fieldId {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// ValidateSchema checks every field definition and that ids are unique.
func ValidateSchema(s TableSchema) error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s has no fields", s.Kind)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if err := utils.ValidateStruct(f); err != nil {
			return fmt.Errorf("field %q: %w", f.ID, err)
		}
		if f.ID == DateFieldId {
			return fmt.Errorf("field id %q is reserved", DateFieldId)
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate field id %q", f.ID)
		}
		seen[f.ID] = true
		if f.Pattern != "" {
			if f.Type != FieldTypeText {
				return fmt.Errorf("field %q: pattern only applies to text fields", f.ID)
			}
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("field %q: %w", f.ID, err)
			}
		}
	}
	if s.GroupBy != "" && !seen[s.GroupBy] {
		return fmt.Errorf("group by %q: %w", s.GroupBy, ErrUnknownField)
	}
	return nil
}

// Schemas holds the column configuration of every historic-data table.
var Schemas = map[TableKind]TableSchema{
	TableKindGrassCutting: {
		Kind:    TableKindGrassCutting,
		Title:   "Grass Cutting",
		GroupBy: "block",
		Fields: []FieldDefinition{
			{ID: "block", Name: "Block", Type: FieldTypeText, Required: true},
			{ID: "inverter", Name: "Inverter", Type: FieldTypeText},
			{ID: "areaPlanned", Name: "Area Planned (acres)", Type: FieldTypeNumber, Required: true},
			{ID: "areaCut", Name: "Area Cut (acres)", Type: FieldTypeNumber, Required: true},
			{ID: "workers", Name: "Workers", Type: FieldTypeNumber},
			{ID: "remarks", Name: "Remarks", Type: FieldTypeText},
		},
	},
	TableKindCleaning: {
		Kind:    TableKindCleaning,
		Title:   "Module Cleaning",
		GroupBy: "block",
		Fields: []FieldDefinition{
			{ID: "block", Name: "Block", Type: FieldTypeText, Required: true},
			{ID: "inverter", Name: "Inverter", Type: FieldTypeText},
			{ID: "cleaningType", Name: "Cleaning Type", Type: FieldTypeText},
			{ID: "modulesPlanned", Name: "Modules Planned", Type: FieldTypeNumber, Required: true},
			{ID: "modulesCleaned", Name: "Modules Cleaned", Type: FieldTypeNumber, Required: true},
			{ID: "waterUsed", Name: "Water Used (L)", Type: FieldTypeNumber},
			{ID: "remarks", Name: "Remarks", Type: FieldTypeText},
		},
	},
	TableKindGeneration: {
		Kind:    TableKindGeneration,
		Title:   "Generation Data",
		GroupBy: "meter",
		Fields: []FieldDefinition{
			{ID: "meter", Name: "Meter", Type: FieldTypeText, Required: true},
			{ID: "exportKwh", Name: "Export (kWh)", Type: FieldTypeNumber, Required: true},
			{ID: "importKwh", Name: "Import (kWh)", Type: FieldTypeNumber},
			{ID: "peakKw", Name: "Peak (kW)", Type: FieldTypeNumber},
			{ID: "irradiance", Name: "Irradiance (kWh/m²)", Type: FieldTypeNumber},
			{ID: "outageStart", Name: "Outage Start", Type: FieldTypeText, Pattern: timeOfDayPattern},
			{ID: "outageEnd", Name: "Outage End", Type: FieldTypeText, Pattern: timeOfDayPattern},
			{ID: "readingDate", Name: "Reading Date", Type: FieldTypeDate},
			{ID: "remarks", Name: "Remarks", Type: FieldTypeText},
		},
	},
}

func GetSchema(kind TableKind) (TableSchema, error) {
	s, ok := Schemas[kind]
	if !ok {
		return TableSchema{}, fmt.Errorf("no schema for table %q", kind)
	}
	return s, nil
}
