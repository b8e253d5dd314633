package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CategoryAll bypasses the category filter.
const CategoryAll = "all"

var ErrUnknownSortKey = errors.New("unknown sort key")

// CategoryFunc derives the categorical filter value of a record.
type CategoryFunc func(Record) string

// MonthCategory buckets records by the month of their date.
func MonthCategory(r Record) string {
	return MonthLabel(r.Date)
}

// ViewOptions is the filter state of one table.
type ViewOptions struct {
	SearchTerm string
	Category   string
	// CategoryOf defaults to MonthCategory.
	CategoryOf CategoryFunc
	// SortKey is a field id or DateFieldId; empty keeps input order.
	SortKey string
	SortDir SortDirection
}

// View returns the filtered, sorted records to render. The input slice is
// never modified.
func View(records []Record, schema TableSchema, opts ViewOptions) ([]Record, error) {
	out := Search(records, schema, opts.SearchTerm)
	out = FilterCategory(out, opts.Category, opts.CategoryOf)
	return Sort(out, schema, opts.SortKey, opts.SortDir)
}

// SearchText is what a search term is matched against: the formatted date
// followed by every column value.
func SearchText(r Record, schema TableSchema) string {
	var b strings.Builder
	b.WriteString(r.DateLabel())
	for _, f := range schema.Fields {
		b.WriteByte(' ')
		if v, ok := r.Values[f.ID]; ok {
			b.WriteString(v.String())
		}
	}
	return b.String()
}

// Search keeps records whose SearchText contains term, ignoring case.
func Search(records []Record, schema TableSchema, term string) []Record {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if needle == "" || strings.Contains(strings.ToLower(SearchText(r, schema)), needle) {
			out = append(out, r)
		}
	}
	return out
}

// FilterCategory keeps records whose derived category equals category.
// Empty and CategoryAll keep everything.
func FilterCategory(records []Record, category string, categoryOf CategoryFunc) []Record {
	out := make([]Record, 0, len(records))
	if category == "" || strings.EqualFold(category, CategoryAll) {
		return append(out, records...)
	}
	if categoryOf == nil {
		categoryOf = MonthCategory
	}
	for _, r := range records {
		if categoryOf(r) == category {
			out = append(out, r)
		}
	}
	return out
}

// Categories lists the distinct categories of records in order of first appearance.
func Categories(records []Record, categoryOf CategoryFunc) []string {
	if categoryOf == nil {
		categoryOf = MonthCategory
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		c := categoryOf(r)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func sortValue(r Record, key string) Value {
	if key == DateFieldId {
		return DateValue(r.Date)
	}
	return r.Values[key]
}

// Sort orders records by one column. The sort is stable in both directions:
// records with equal keys keep their input order.
func Sort(records []Record, schema TableSchema, key string, dir SortDirection) ([]Record, error) {
	out := make([]Record, len(records))
	copy(out, records)
	if key == "" {
		return out, nil
	}
	if key != DateFieldId {
		if _, ok := schema.Field(key); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
		}
	}
	desc := dir == SortDirectionDesc
	sort.SliceStable(out, func(i, j int) bool {
		c := sortValue(out[i], key).Compare(sortValue(out[j], key))
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

// Group is one named bucket of a grouped view.
type Group struct {
	Key     string   `json:"key"`
	Records []Record `json:"records"`
}

// GroupRecords partitions records by the display value of fieldId. Buckets
// appear in order of first appearance and keep the input order inside.
func GroupRecords(records []Record, schema TableSchema, fieldId string) ([]Group, error) {
	if fieldId != DateFieldId {
		if _, ok := schema.Field(fieldId); !ok {
			return nil, fmt.Errorf("group by %q: %w", fieldId, ErrUnknownField)
		}
	}
	index := make(map[string]int)
	var groups []Group
	for _, r := range records {
		key := sortValue(r, fieldId).String()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups, nil
}
