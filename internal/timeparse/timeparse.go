// Package timeparse interprets the free-form date-time strings found in the
// schedule spreadsheet export.
//
// Two families are accepted:
//
//   - unambiguous ISO-like layouts (RFC 3339, "2006-01-02 15:04:05", ...)
//   - the spreadsheet's US export "MM/DD/YYYY HH:mm:ss" (seconds optional)
//
// Anything else is reported as ErrUnparseable. Callers degrade on failure
// instead of aborting: geometry uses a zero offset, labels keep the raw text.
package timeparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable is returned (wrapped) when no accepted layout matches.
var ErrUnparseable = errors.New("timeparse: unrecognized date-time")

// Zoned layouts carry their own offset and are converted into the display
// location after parsing.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

// Local layouts are interpreted in the display location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Parse converts s into a time in loc. A nil loc means time.Local.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrUnparseable)
	}

	if t, ok := parseDirect(v, loc); ok {
		return t, nil
	}

	if strings.Contains(v, "/") {
		if t, err := parseSlashed(v, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
}

// ParseClock returns the time of day of s, or false when s is unparseable.
func ParseClock(s string, loc *time.Location) (Clock, bool) {
	t, err := Parse(s, loc)
	if err != nil {
		return Clock{}, false
	}
	return ClockOf(t), true
}

// ClockOf extracts the time of day of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// FormatClock renders s as "HH:MM", or returns s unchanged if it cannot be
// parsed.
func FormatClock(s string, loc *time.Location) string {
	c, ok := ParseClock(s, loc)
	if !ok {
		return s
	}
	return c.String()
}

// ParseDay validates a day grouping key. Besides the layouts accepted by
// Parse it takes a bare "MM/DD/YYYY". The result is truncated to midnight.
func ParseDay(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.TrimSpace(s)
	t, err := Parse(v, loc)
	if err != nil {
		if !strings.Contains(v, "/") || strings.Contains(v, " ") {
			return time.Time{}, false
		}
		t, err = slashedDate(v, loc)
		if err != nil {
			return time.Time{}, false
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), true
}

func parseDirect(v string, loc *time.Location) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseSlashed handles "MM/DD/YYYY HH:mm[:ss]" by splitting into integer
// components, which avoids any locale-dependent day/month guessing.
func parseSlashed(v string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(v, " ")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("%w: expected date and time separated by one space", ErrUnparseable)
	}

	day, err := slashedDate(parts[0], loc)
	if err != nil {
		return time.Time{}, err
	}

	clock := strings.Split(parts[1], ":")
	if len(clock) < 2 || len(clock) > 3 {
		return time.Time{}, fmt.Errorf("%w: bad time part %q", ErrUnparseable, parts[1])
	}
	hour, err := component(clock[0], 0, 23)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := component(clock[1], 0, 59)
	if err != nil {
		return time.Time{}, err
	}
	second := 0
	if len(clock) == 3 {
		if second, err = component(clock[2], 0, 59); err != nil {
			return time.Time{}, err
		}
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, loc), nil
}

func slashedDate(v string, loc *time.Location) (time.Time, error) {
	fields := strings.Split(v, "/")
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("%w: bad date part %q", ErrUnparseable, v)
	}
	month, err := component(fields[0], 1, 12)
	if err != nil {
		return time.Time{}, err
	}
	day, err := component(fields[1], 1, 31)
	if err != nil {
		return time.Time{}, err
	}
	year, err := component(fields[2], 1, 9999)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// Reject dates that time.Date normalized (e.g. 02/30).
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: invalid calendar date %q", ErrUnparseable, v)
	}
	return t, nil
}

func component(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric component %q", ErrUnparseable, s)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: component %d out of range [%d,%d]", ErrUnparseable, n, lo, hi)
	}
	return n, nil
}
