package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/greenops/fieldops_backend/models"
	"github.com/google/go-cmp/cmp"
)

func viewFixture() []models.Record {
	return []models.Record{
		rec("r1", "2025-07-30", map[string]models.Value{"value": models.IntValue(10), "block": models.TextValue("A")}),
		rec("r2", "2025-08-02", map[string]models.Value{"value": models.IntValue(9), "block": models.TextValue("b"), "remarks": models.TextValue("Rain delay")}),
		rec("r3", "2025-08-05", map[string]models.Value{"value": models.IntValue(100), "block": models.TextValue("a")}),
		rec("r4", "2025-08-07", map[string]models.Value{"block": models.TextValue("B"), "remarks": models.TextValue("ok")}),
	}
}

func TestViewEmptySearchIsIdentity(t *testing.T) {
	records := viewFixture()
	got, err := models.View(records, testSchema, models.ViewOptions{})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if diff := cmp.Diff(ids(records), ids(got)); diff != "" {
		t.Fatalf("view changed records (-want +got):\n%s", diff)
	}
	got[0].ID = "changed"
	if records[0].ID != "r1" {
		t.Fatalf("View returned the input slice")
	}
}

func TestSortDateDescending(t *testing.T) {
	records := []models.Record{
		rec("a", "2025-08-10", map[string]models.Value{"value": models.IntValue(5)}),
		rec("b", "2025-08-12", map[string]models.Value{"value": models.IntValue(3)}),
	}
	got, err := models.View(records, testSchema, models.ViewOptions{SortKey: models.DateFieldId, SortDir: models.SortDirectionDesc})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, ids(got)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestSortComparesByFieldType(t *testing.T) {
	cases := []struct {
		name string
		key  string
		dir  models.SortDirection
		want []string
	}{
		{"numbers numerically, missing first", "value", models.SortDirectionAsc, []string{"r4", "r2", "r1", "r3"}},
		{"numbers descending", "value", models.SortDirectionDesc, []string{"r3", "r1", "r2", "r4"}},
		{"text ignores case and is stable", "block", models.SortDirectionAsc, []string{"r1", "r3", "r2", "r4"}},
		{"text descending is stable", "block", models.SortDirectionDesc, []string{"r2", "r4", "r1", "r3"}},
		{"empty key keeps order", "", models.SortDirectionDesc, []string{"r1", "r2", "r3", "r4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := models.Sort(viewFixture(), testSchema, tc.key, tc.dir)
			if err != nil {
				t.Fatalf("Sort: %v", err)
			}
			if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
				t.Fatalf("order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortIsIdempotent(t *testing.T) {
	for _, key := range []string{"value", "block", "remarks", models.DateFieldId} {
		for _, dir := range []models.SortDirection{models.SortDirectionAsc, models.SortDirectionDesc} {
			once, err := models.Sort(viewFixture(), testSchema, key, dir)
			if err != nil {
				t.Fatalf("Sort: %v", err)
			}
			twice, err := models.Sort(once, testSchema, key, dir)
			if err != nil {
				t.Fatalf("Sort: %v", err)
			}
			if diff := cmp.Diff(ids(once), ids(twice)); diff != "" {
				t.Fatalf("%s %s not idempotent (-once +twice):\n%s", key, dir, diff)
			}
		}
	}
}

func TestSortUnknownKey(t *testing.T) {
	_, err := models.Sort(viewFixture(), testSchema, "nope", models.SortDirectionAsc)
	if !errors.Is(err, models.ErrUnknownSortKey) {
		t.Fatalf("got %v want ErrUnknownSortKey", err)
	}
}

func TestSearchMatchesDateAndValuesIgnoringCase(t *testing.T) {
	cases := []struct {
		term string
		want []string
	}{
		{"RAIN", []string{"r2"}},
		{"2025-08-0", []string{"r2", "r3", "r4"}},
		{"100", []string{"r3"}},
		{"  ", []string{"r1", "r2", "r3", "r4"}},
		{"nothing", []string{}},
	}
	for _, tc := range cases {
		got := models.Search(viewFixture(), testSchema, tc.term)
		if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
			t.Fatalf("Search(%q) (-want +got):\n%s", tc.term, diff)
		}
	}
}

func TestFilterCategoryByMonth(t *testing.T) {
	records := viewFixture()
	got := models.FilterCategory(records, "August 2025", nil)
	if diff := cmp.Diff([]string{"r2", "r3", "r4"}, ids(got)); diff != "" {
		t.Fatalf("August (-want +got):\n%s", diff)
	}
	for _, all := range []string{"", "all", "ALL"} {
		if got := models.FilterCategory(records, all, nil); len(got) != len(records) {
			t.Fatalf("FilterCategory(%q) dropped records", all)
		}
	}
	if diff := cmp.Diff([]string{"July 2025", "August 2025"}, models.Categories(records, nil)); diff != "" {
		t.Fatalf("Categories (-want +got):\n%s", diff)
	}
}

func TestViewCombinesFilters(t *testing.T) {
	got, err := models.View(viewFixture(), testSchema, models.ViewOptions{
		SearchTerm: "b",
		Category:   "August 2025",
		SortKey:    "block",
		SortDir:    models.SortDirectionDesc,
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if diff := cmp.Diff([]string{"r2", "r4"}, ids(got)); diff != "" {
		t.Fatalf("view (-want +got):\n%s", diff)
	}
}

func TestGroupRecordsKeepsOrderWithinBuckets(t *testing.T) {
	records := []models.Record{
		rec("1", "2025-08-01", map[string]models.Value{"block": models.TextValue("A")}),
		rec("2", "2025-08-02", map[string]models.Value{"block": models.TextValue("B")}),
		rec("3", "2025-08-03", map[string]models.Value{"block": models.TextValue("A")}),
		rec("4", "2025-08-04", nil),
	}
	groups, err := models.GroupRecords(records, testSchema, "block")
	if err != nil {
		t.Fatalf("GroupRecords: %v", err)
	}
	got := map[string][]string{}
	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
		got[g.Key] = ids(g.Records)
	}
	if diff := cmp.Diff([]string{"A", "B", ""}, keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string][]string{"A": {"1", "3"}, "B": {"2"}, "": {"4"}}, got); diff != "" {
		t.Fatalf("buckets (-want +got):\n%s", diff)
	}

	if _, err := models.GroupRecords(records, testSchema, "nope"); !errors.Is(err, models.ErrUnknownField) {
		t.Fatalf("got %v want ErrUnknownField", err)
	}
}
