package util

import (
	"strconv"
	"time"
)

// QueryTimeLayout is the timestamp layout the upstream accepts for date filters
// and returns in eff_ts columns.
const QueryTimeLayout = "2006-01-02T15:04:05"

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	QueryTimeLayout,
	"2006-01-02T15:04:05.999999",
	time.DateOnly,
}

// ParseTime tries RFC3339, the upstream's naive ISO layouts, a bare date, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FormatQueryTime renders t the way date filters are sent upstream.
// The zero time renders as "" so callers can drop the option.
func FormatQueryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(QueryTimeLayout)
}
