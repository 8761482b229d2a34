// Package timeparsing turns the time expressions babel accepts on --since and
// --until into concrete instants. Three layers, tried in order: compact
// durations (-1d, +2w), absolute timestamps (RFC3339 or date-only), and
// natural language ("last tuesday", "2 days ago").
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// compactDurationRe matches the compact duration syntax: [+-]?(\d+)([hdwmy]).
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration resolves a compact duration relative to now.
//
// Units: h hours, d days, w weeks, m months, y years. The sign defaults to
// positive, so "3m" means three months from now and "-1d" yesterday.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}
	return applyDuration(now, amount, matches[3]), nil
}

// applyDuration shifts base by amount units. Months and years go through
// AddDate so calendar arithmetic stays correct across month-length changes.
func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	default:
		return base
	}
}

// IsCompactDuration reports whether s matches the compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

// absoluteLayouts are the timestamp forms accepted verbatim.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseAbsolute parses a literal timestamp. Date-only input resolves to
// midnight local time.
func ParseAbsolute(s string) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an absolute timestamp: %q", s)
}

// Parse resolves any accepted time expression relative to now: compact
// duration first, then absolute timestamp, then natural language. The error
// names all three forms so the user knows what would have worked.
func Parse(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseAbsolute(s); err == nil {
		return t, nil
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf(
		"cannot parse time expression %q (try a duration like -1d, a date like 2025-06-15, or a phrase like \"last tuesday\")", s)
}
