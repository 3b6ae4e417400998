// Package marketday provides trading-day key formatting and business-day
// iteration for the B3 publishing calendar.
package marketday

import (
	"fmt"
	"time"
)

// keyLayout is the short date encoding B3 uses in bulletin file names
const keyLayout = "060102"

// Key formats a time as the yymmdd day key used in download URLs and
// blob prefixes
func Key(t time.Time) string {
	return t.Format(keyLayout)
}

// ParseKey converts a yymmdd day key back into a date
func ParseKey(s string) (time.Time, error) {
	t, err := time.Parse(keyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return t, nil
}

// IsBusinessDay reports whether t falls on Monday through Friday.
// Exchange holidays are not tracked; a holiday simply has no published file.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// WalkBack returns up to n business days ending at the anchor, newest
// first. The anchor itself is included only when it is a business day.
func WalkBack(anchor time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	for d := anchor; len(days) < n; d = d.AddDate(0, 0, -1) {
		if IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// Between returns the business days from start through end, ascending
func Between(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}
