package ratelimiter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the calendar unit of a limit window.
type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
	UnitWeek   Unit = "week"
	UnitMonth  Unit = "month"
)

// Window is the refresh period of a counter, e.g. {1, UnitDay}.
//
// Counters expire at the end of the UTC day in which now+window falls,
// so a "1 day" window always resets at midnight of the following day.
type Window struct {
	Count int
	Unit  Unit
}

// ParseWindow parses strings like "1 day", "2 hours" or "1d".
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Window{}, fmt.Errorf("%w: empty", ErrInvalidWindow)
	}

	var countPart, unitPart string
	if fields := strings.Fields(s); len(fields) == 2 {
		countPart, unitPart = fields[0], fields[1]
	} else {
		i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
		if i <= 0 {
			return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
		}
		countPart, unitPart = s[:i], s[i:]
	}

	count, err := strconv.Atoi(countPart)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}

	unit, ok := parseUnit(unitPart)
	if !ok {
		return Window{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidWindow, unitPart)
	}

	w := Window{Count: count, Unit: unit}
	return w, w.Validate()
}

func parseUnit(s string) (Unit, bool) {
	switch strings.TrimSuffix(s, "s") {
	case "m", "min", "minute":
		return UnitMinute, true
	case "h", "hour":
		return UnitHour, true
	case "d", "day":
		return UnitDay, true
	case "w", "week":
		return UnitWeek, true
	case "mo", "month":
		return UnitMonth, true
	}
	return "", false
}

// Validate reports whether the window can be used for counting.
func (w Window) Validate() error {
	if w.Count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidWindow, w.Count)
	}
	if _, ok := parseUnit(string(w.Unit)); !ok {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidWindow, w.Unit)
	}
	return nil
}

// ExpiresAt returns the expiry of a counter touched at now.
func (w Window) ExpiresAt(now time.Time) time.Time {
	t := now.UTC()
	switch w.Unit {
	case UnitMinute:
		t = t.Add(time.Duration(w.Count) * time.Minute)
	case UnitHour:
		t = t.Add(time.Duration(w.Count) * time.Hour)
	case UnitDay:
		t = t.AddDate(0, 0, w.Count)
	case UnitWeek:
		t = t.AddDate(0, 0, 7*w.Count)
	case UnitMonth:
		t = t.AddDate(0, w.Count, 0)
	}
	return endOfDay(t)
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// String renders the window as "<count> <unit>".
func (w Window) String() string {
	return strconv.Itoa(w.Count) + " " + string(w.Unit)
}

// UnmarshalText implements encoding.TextUnmarshaler so windows can be
// read from env variables and YAML scalars.
func (w *Window) UnmarshalText(text []byte) error {
	parsed, err := ParseWindow(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
