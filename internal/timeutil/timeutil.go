// Package timeutil formats entry timestamps for output.
package timeutil

import "time"

// Format returns t as RFC3339Nano in UTC, or "" for the zero
// time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Short returns t in loc as "2006-01-02 15:04", or "-" for the
// zero time.
func Short(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
