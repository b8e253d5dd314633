package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrRecordLocked = errors.New("record is outside the edit window")

const day = 24 * time.Hour

// DaysBetween returns the whole days from `from` to `to`, rounded down.
// It is negative when `to` is earlier than `from`.
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(float64(to.Sub(from)) / float64(day)))
}

// IsEditable reports whether a record dated recordDate may still be edited at
// referenceNow. A record locks the moment it is more than allowedEditDays whole
// days old; future-dated records are editable.
func IsEditable(recordDate time.Time, allowedEditDays int, referenceNow time.Time) bool {
	return DaysBetween(recordDate, referenceNow) <= allowedEditDays
}

// EditWindow is a site's edit policy evaluated in the site's timezone.
type EditWindow struct {
	AllowedEditDays int
	Location        *time.Location
}

// Reference maps now onto the site's wall clock so that day boundaries fall
// at local midnight when compared with calendar record dates.
func (w EditWindow) Reference(now time.Time) time.Time {
	local := now
	if w.Location != nil {
		local = now.In(w.Location)
	}
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
}

func (w EditWindow) IsEditable(recordDate time.Time, now time.Time) bool {
	return IsEditable(CalendarDate(recordDate), w.AllowedEditDays, w.Reference(now))
}

// Check returns ErrRecordLocked (wrapped with the record date) when the
// record can no longer be edited.
func (w EditWindow) Check(recordDate time.Time, now time.Time) error {
	if w.IsEditable(recordDate, now) {
		return nil
	}
	return fmt.Errorf("%w: %s is more than %d days old", ErrRecordLocked, FormatDate(recordDate), w.AllowedEditDays)
}

// LockedRecordsError lists staged records that left the edit window before
// they were committed. Their edits can only be discarded.
type LockedRecordsError struct {
	RecordIDs []string
}

func (e *LockedRecordsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRecordLocked, strings.Join(e.RecordIDs, ", "))
}

func (e *LockedRecordsError) Unwrap() error {
	return ErrRecordLocked
}
