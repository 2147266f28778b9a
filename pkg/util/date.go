package util

import (
	"strconv"
	"time"
)

// DateTimeLayout is the chart timestamp format (YYYY-MM-DD HH:MM:SS).
const DateTimeLayout = "2006-01-02 15:04:05"

// LookbackOrigin predates every listed crypto asset (Bitcoin genesis block day).
var LookbackOrigin = time.Date(2009, time.January, 3, 0, 0, 0, 0, time.UTC)

// FormatDateTime renders t in UTC using DateTimeLayout.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// FormatISO renders t as RFC3339 with sub-second precision in UTC.
func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime tries RFC3339, RFC3339Nano, DateTimeLayout and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

