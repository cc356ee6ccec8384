// Package dates validates and compares calendar dates in YYYY-MM-DD form.
//
// Dates are kept as zero-padded strings throughout the tracker, so a plain
// string comparison orders them chronologically.
package dates

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the only accepted date format.
const Layout = "2006-01-02"

// Accepted year range for due dates.
const (
	MinYear = 2023
	MaxYear = 2100
)

var (
	// ErrMalformedDate reports a value that is not a real YYYY-MM-DD date in range.
	ErrMalformedDate = errors.New("invalid date, use YYYY-MM-DD")
	// ErrPastDate reports a due date before today.
	ErrPastDate = errors.New("due date must be today or in the future")
)

// IsLeapYear reports whether year has a February 29th.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the number of days in month of year.
// It returns 0 for a month outside 1..12.
func DaysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 0
	}
}

// IsValid reports whether s is a calendar-correct YYYY-MM-DD date with a
// year between MinYear and MaxYear.
func IsValid(s string) bool {
	year, month, day, ok := split(s)
	if !ok {
		return false
	}
	if year < MinYear || year > MaxYear {
		return false
	}
	if month < 1 || month > 12 {
		return false
	}
	return day >= 1 && day <= DaysInMonth(year, month)
}

// split checks the shape of s and extracts its numeric parts.
func split(s string) (year, month, day int, ok bool) {
	if len(s) != len(Layout) {
		return 0, 0, 0, false
	}
	if s[4] != '-' || s[7] != '-' {
		return 0, 0, 0, false
	}
	for i := 0; i < len(s); i++ {
		if i == 4 || i == 7 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, 0, false
		}
	}
	return atoi(s[0:4]), atoi(s[5:7]), atoi(s[8:10]), true
}

func atoi(digits string) int {
	n := 0
	for i := 0; i < len(digits); i++ {
		n = n*10 + int(digits[i]-'0')
	}
	return n
}

// Today returns the local calendar date of now.
func Today(now time.Time) string {
	return now.Local().Format(Layout)
}

// AddDays shifts date by n calendar days, rolling over months and years.
func AddDays(date string, n int) (string, error) {
	t, err := time.ParseInLocation(Layout, date, time.Local)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	shifted := time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, time.Local)
	return shifted.Format(Layout), nil
}

// ValidateDue applies the due-date policy: empty means no due date,
// anything else must be a valid date that is not before today.
func ValidateDue(s string, now time.Time) error {
	if s == "" {
		return nil
	}
	if !IsValid(s) {
		return ErrMalformedDate
	}
	if s < Today(now) {
		return ErrPastDate
	}
	return nil
}

// FormatEpoch renders a stored epoch-seconds timestamp as a local date.
// A zero timestamp renders as the empty string.
func FormatEpoch(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).Local().Format(Layout)
}

// FormatTime renders t as a local date, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(Layout)
}
