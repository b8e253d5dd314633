package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// CellError is a per-cell validation message. It never blocks edits to
// other cells; it only holds back the commit of its record.
type CellError struct {
	RecordID string `json:"record_id"`
	FieldID  string `json:"field_id"`
	Message  string `json:"message"`
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.RecordID, e.FieldID, e.Message)
}

// ValidationErrors lists the cells that kept their records from committing.
type ValidationErrors []*CellError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return "invalid cells: " + strings.Join(msgs, "; ")
}

func sortCellErrors(errs []*CellError) {
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].RecordID != errs[j].RecordID {
			return errs[i].RecordID < errs[j].RecordID
		}
		return errs[i].FieldID < errs[j].FieldID
	})
}

var patternCache sync.Map // pattern -> *regexp.Regexp

func compiledPattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patternCache.Store(p, re)
	return re, nil
}

// ValidateValue checks a value against its column: required, type and pattern.
// It returns the message to show next to the cell, or "".
func ValidateValue(field FieldDefinition, v Value) string {
	if v.IsEmpty() {
		if field.Required {
			return field.Name + " is required"
		}
		return ""
	}
	if v.Type != field.Type {
		switch field.Type {
		case FieldTypeNumber:
			return fmt.Sprintf("%s must be a number", field.Name)
		case FieldTypeDate:
			return fmt.Sprintf("%s must be a date (%s)", field.Name, DateLayout)
		default:
			return fmt.Sprintf("%s must be text", field.Name)
		}
	}
	if field.Pattern != "" && field.Type == FieldTypeText {
		re, err := compiledPattern(field.Pattern)
		if err != nil {
			return err.Error()
		}
		if !re.MatchString(strings.TrimSpace(v.Text)) {
			if field.Pattern == timeOfDayPattern {
				return fmt.Sprintf("%s must be a time (HH:MM)", field.Name)
			}
			return fmt.Sprintf("%s has an invalid format", field.Name)
		}
	}
	return ""
}

// CoerceInput turns raw cell input into a value of the column's type. Input
// that cannot be read keeps its text so the user still sees what they typed;
// the returned message explains the problem.
func CoerceInput(field FieldDefinition, raw string) (Value, string) {
	v, err := ParseValue(field.Type, raw)
	if err != nil {
		return TextValue(raw), ValidateValue(field, TextValue(raw))
	}
	return v, ValidateValue(field, v)
}

// ValidateRecord checks every column of a new record.
func ValidateRecord(schema TableSchema, r Record) ValidationErrors {
	var errs ValidationErrors
	for _, f := range schema.Fields {
		if msg := ValidateValue(f, r.Values[f.ID]); msg != "" {
			errs = append(errs, &CellError{RecordID: r.ID, FieldID: f.ID, Message: msg})
		}
	}
	for id := range r.Values {
		if _, ok := schema.Field(id); !ok {
			errs = append(errs, &CellError{RecordID: r.ID, FieldID: id, Message: ErrUnknownField.Error()})
		}
	}
	sortCellErrors(errs)
	return errs
}
