package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// When is a due date as typed in the palette. Relative forms are resolved
// against the clock at execution time, not at parse time.
type When struct {
	Clear  bool
	In     time.Duration
	layout string
	raw    string
}

var whenLayouts = []string{"2006-01-02T15:04", "2006-01-02", "15:04"}

// ParseWhen accepts "none", a positive duration ("90m", "2h30m", "3d"),
// a date ("2026-03-10", due at the end of that day), a date and time
// ("2026-03-10T15:00") or a time of day ("15:00", today).
func ParseWhen(raw string) (When, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return When{}, invalidWhen(raw)
	case "none", "clear", "-":
		return When{Clear: true}, nil
	}
	if d, ok := parseRelative(s); ok {
		if d <= 0 {
			return When{}, invalidWhen(raw)
		}
		return When{In: d}, nil
	}
	for _, layout := range whenLayouts {
		if _, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return When{layout: layout, raw: strings.ToUpper(s)}, nil
		}
	}
	return When{}, invalidWhen(raw)
}

// parseRelative reads Go durations plus a leading day count, e.g. "1d6h".
func parseRelative(s string) (time.Duration, bool) {
	var days time.Duration
	if i := strings.Index(s, "d"); i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, false
		}
		days = time.Duration(n) * 24 * time.Hour
		s = s[i+1:]
		if s == "" {
			return days, true
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return days + d, true
}

// Resolve returns the absolute due time, or nil when the deadline is cleared.
func (w When) Resolve(now time.Time) *time.Time {
	if w.Clear {
		return nil
	}
	if w.In > 0 {
		at := now.Add(w.In)
		return &at
	}
	loc := now.Location()
	t, err := time.ParseInLocation(w.layout, w.raw, loc)
	if err != nil {
		return nil
	}
	var at time.Time
	switch w.layout {
	case "2006-01-02":
		at = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc)
	case "15:04":
		at = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	default:
		at = t
	}
	return &at
}

func (w When) String() string {
	switch {
	case w.Clear:
		return "none"
	case w.In > 0:
		return "in " + w.In.String()
	default:
		return w.raw
	}
}

func invalidWhen(raw string) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unrecognised due date: %q", raw)}
}
