package models

import (
	"github.com/shopspring/decimal"
)

// FieldSummary aggregates one number column over a set of records.
// Empty cells are skipped.
type FieldSummary struct {
	FieldID string          `json:"field_id"`
	Name    string          `json:"name"`
	Count   int             `json:"count"`
	Sum     decimal.Decimal `json:"sum"`
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	Avg     decimal.Decimal `json:"avg"`
}

// Summarize returns a summary for every number column, in schema order.
func Summarize(records []Record, schema TableSchema) []FieldSummary {
	var out []FieldSummary
	for _, f := range schema.Fields {
		if f.Type != FieldTypeNumber {
			continue
		}
		s := FieldSummary{FieldID: f.ID, Name: f.Name}
		for _, r := range records {
			v, ok := r.Values[f.ID]
			if !ok || v.Type != FieldTypeNumber {
				continue
			}
			if s.Count == 0 || v.Number.LessThan(s.Min) {
				s.Min = v.Number
			}
			if s.Count == 0 || v.Number.GreaterThan(s.Max) {
				s.Max = v.Number
			}
			s.Sum = s.Sum.Add(v.Number)
			s.Count++
		}
		if s.Count > 0 {
			s.Avg = s.Sum.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
		}
		out = append(out, s)
	}
	return out
}

// CleaningSummary is the progress of a site's module cleaning cycle.
type CleaningSummary struct {
	TotalModules   int64           `json:"total_modules"`
	ModulesPlanned decimal.Decimal `json:"modules_planned"`
	ModulesCleaned decimal.Decimal `json:"modules_cleaned"`
	// Uncleaned is planned minus cleaned and goes negative when more
	// modules were cleaned than planned.
	Uncleaned decimal.Decimal `json:"uncleaned"`
	// CyclesCompleted is cleaned / total modules, not capped at 1.
	CyclesCompleted decimal.Decimal `json:"cycles_completed"`
	// PercentComplete is CyclesCompleted as a percentage, may exceed 100.
	PercentComplete decimal.Decimal `json:"percent_complete"`
}

// CleaningProgress sums the cleaning records of a site. The ratios are not
// clamped: over-cleaning shows as more than one cycle.
func CleaningProgress(records []Record, totalModules int64) CleaningSummary {
	s := CleaningSummary{TotalModules: totalModules}
	for _, r := range records {
		if v, ok := r.Values["modulesPlanned"]; ok && v.Type == FieldTypeNumber {
			s.ModulesPlanned = s.ModulesPlanned.Add(v.Number)
		}
		if v, ok := r.Values["modulesCleaned"]; ok && v.Type == FieldTypeNumber {
			s.ModulesCleaned = s.ModulesCleaned.Add(v.Number)
		}
	}
	s.Uncleaned = s.ModulesPlanned.Sub(s.ModulesCleaned)
	if totalModules > 0 {
		total := decimal.NewFromInt(totalModules)
		s.CyclesCompleted = s.ModulesCleaned.Div(total).Round(4)
		s.PercentComplete = s.ModulesCleaned.Mul(decimal.NewFromInt(100)).Div(total).Round(2)
	}
	return s
}
