package models

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrInvalidDateRange = errors.New("end date is before start date")

const exportSheet = "Sheet1"

// FilterDateRange keeps records dated within [start, end], both inclusive,
// in collection order.
func FilterDateRange(records []Record, start, end time.Time) ([]Record, error) {
	start, end = CalendarDate(start), CalendarDate(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s < %s", ErrInvalidDateRange, FormatDate(end), FormatDate(start))
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		d := CalendarDate(r.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ExportHeader is the header row: "Date" then every column's display name.
func ExportHeader(schema TableSchema) []string {
	header := make([]string, 0, len(schema.Fields)+1)
	header = append(header, "Date")
	for _, f := range schema.Fields {
		header = append(header, f.Name)
	}
	return header
}

func exportRow(r Record, schema TableSchema) []string {
	row := make([]string, 0, len(schema.Fields)+1)
	row = append(row, r.DateLabel())
	for _, f := range schema.Fields {
		row = append(row, r.Values[f.ID].String())
	}
	return row
}

// ExportCSV renders the records dated within [start, end] as CSV.
func ExportCSV(records []Record, schema TableSchema, start, end time.Time) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records, schema, start, end); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func WriteCSV(w io.Writer, records []Record, schema TableSchema, start, end time.Time) error {
	inRange, err := FilterDateRange(records, start, end)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader(schema)); err != nil {
		return err
	}
	for _, r := range inRange {
		if err := cw.Write(exportRow(r, schema)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportExcel writes the same rows as ExportCSV as an XLSX workbook.
// Number columns are written as numeric cells.
func ExportExcel(w io.Writer, records []Record, schema TableSchema, start, end time.Time) error {
	inRange, err := FilterDateRange(records, start, end)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, h := range ExportHeader(schema) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}

	for rowNo, r := range inRange {
		values := make([]any, 0, len(schema.Fields)+1)
		values = append(values, r.DateLabel())
		for _, field := range schema.Fields {
			v := r.Values[field.ID]
			if v.Type == FieldTypeNumber {
				values = append(values, v.Number.InexactFloat64())
			} else {
				values = append(values, v.String())
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNo+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}
