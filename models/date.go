package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the display and wire format of record dates.
const DateLayout = "2006-01-02"

// MonthLayout formats the month category of a record.
const MonthLayout = "January 2006"

// DateParseError reports a record date that could not be read.
// Callers decide the fallback (skip the record, show a warning); nothing
// here substitutes the current date.
type DateParseError struct {
	Raw string
	Err error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid date %q: expected %s", e.Raw, DateLayout)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// ParseDate reads a calendar date in DateLayout as midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &DateParseError{Raw: raw, Err: fmt.Errorf("empty date")}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &DateParseError{Raw: raw, Err: err}
	}
	return t, nil
}

// MustParseDate is ParseDate for fixtures and tests.
func MustParseDate(raw string) time.Time {
	t, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthLabel is the default category of a record ("August 2025").
func MonthLabel(t time.Time) string {
	return t.Format(MonthLayout)
}

// CalendarDate keeps the wall-clock date of t and drops its zone,
// so dates from different sources compare as plain calendar days.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
