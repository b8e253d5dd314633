package models_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bitbucket.org/greenops/fieldops_backend/models"
	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func augustRecords() []models.Record {
	var out []models.Record
	for day := 1; day <= 31; day++ {
		date := fmt.Sprintf("2025-08-%02d", day)
		out = append(out, rec("r"+date, date, map[string]models.Value{
			"value":   models.IntValue(int64(day)),
			"remarks": models.TextValue("note, with comma"),
		}))
	}
	return out
}

func TestExportCSVDateRangeIsInclusive(t *testing.T) {
	out, err := models.ExportCSV(augustRecords(), testSchema, models.MustParseDate("2025-08-10"), models.MustParseDate("2025-08-20"))
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if diff := cmp.Diff([]string{"Date", "Value", "Remarks", "Block"}, rows[0]); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
	body := rows[1:]
	if len(body) != 11 {
		t.Fatalf("rows: got %d want 11", len(body))
	}
	if body[0][0] != "2025-08-10" || body[10][0] != "2025-08-20" {
		t.Fatalf("range: first %s last %s", body[0][0], body[10][0])
	}
	if diff := cmp.Diff([]string{"2025-08-15", "15", "note, with comma", ""}, body[5]); diff != "" {
		t.Fatalf("row (-want +got):\n%s", diff)
	}
}

func TestExportCSVKeepsCollectionOrder(t *testing.T) {
	records := augustRecords()
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	out, err := models.ExportCSV(records, testSchema, models.MustParseDate("2025-08-10"), models.MustParseDate("2025-08-12"))
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	rows, _ := csv.NewReader(strings.NewReader(out)).ReadAll()
	var dates []string
	for _, r := range rows[1:] {
		dates = append(dates, r[0])
	}
	if diff := cmp.Diff([]string{"2025-08-12", "2025-08-11", "2025-08-10"}, dates); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestExportRejectsInvertedRange(t *testing.T) {
	_, err := models.ExportCSV(augustRecords(), testSchema, models.MustParseDate("2025-08-20"), models.MustParseDate("2025-08-10"))
	if !errors.Is(err, models.ErrInvalidDateRange) {
		t.Fatalf("got %v want ErrInvalidDateRange", err)
	}
}

func TestExportExcelMatchesCSVRows(t *testing.T) {
	var buf bytes.Buffer
	start, end := models.MustParseDate("2025-08-30"), models.MustParseDate("2025-09-30")
	if err := models.ExportExcel(&buf, augustRecords(), testSchema, start, end); err != nil {
		t.Fatalf("ExportExcel: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d want 3", len(rows))
	}
	if diff := cmp.Diff([]string{"Date", "Value", "Remarks", "Block"}, rows[0]); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
	if rows[1][0] != "2025-08-30" || rows[2][0] != "2025-08-31" {
		t.Fatalf("dates: %v %v", rows[1], rows[2])
	}
}
