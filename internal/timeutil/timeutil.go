package timeutil

import (
	"errors"
	"time"
)

// Clock lives here so the engine can be tested against a fixed time.
// The real daemon uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Test helper.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// Calendar performs day-boundary arithmetic in one explicit display
// timezone. The location is threaded in at construction rather than read
// from a process-wide default, so two widget instances can disagree on
// what "today" means.
type Calendar struct {
	loc *time.Location
}

// NewCalendar resolves the given IANA timezone name. An empty name means
// time.Local.
func NewCalendar(timezone string) (*Calendar, error) {
	if timezone == "" {
		return &Calendar{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.New("timeutil: unknown timezone " + timezone)
	}
	return &Calendar{loc: loc}, nil
}

// Location returns the display timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// StartOfDay returns midnight of t's date in the display timezone.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// SameDay reports whether a and b fall on the same calendar date in the
// display timezone.
func (c *Calendar) SameDay(a, b time.Time) bool {
	return c.StartOfDay(a).Equal(c.StartOfDay(b))
}

// AddDays returns midnight of the date n days after t's date.
func (c *Calendar) AddDays(t time.Time, n int) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, n)
}

// Window returns the half-open interval [start-of-day(now), start-of-day(now)+days).
func (c *Calendar) Window(now time.Time, days int) (time.Time, time.Time) {
	start := c.StartOfDay(now)
	return start, start.AddDate(0, 0, days)
}

// SpannedDays returns midnight for every date an event touches within
// [from, to). All-day end times are exclusive (an all-day event ending at
// midnight does not appear on that day).
func (c *Calendar) SpannedDays(start, end, from, to time.Time) []time.Time {
	if !end.After(start) {
		// Zero-length events still occupy their start day.
		end = start.Add(time.Nanosecond)
	}
	var days []time.Time
	for d := c.StartOfDay(start); d.Before(end) && d.Before(to); d = d.AddDate(0, 0, 1) {
		if !d.Before(from) {
			days = append(days, d)
		}
	}
	return days
}

// FormatDay renders a bucket date for the widget header, e.g. "Mon, Jan 2".
func (c *Calendar) FormatDay(day time.Time) string {
	return day.In(c.loc).Format("Mon, Jan 2")
}

// FormatTime renders an event start/end for display, e.g. "15:04".
func (c *Calendar) FormatTime(t time.Time) string {
	return t.In(c.loc).Format("15:04")
}
