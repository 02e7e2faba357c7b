package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCalendar(t *testing.T) {
	assert := assert.New(t)

	cal, err := NewCalendar("Europe/Berlin")
	assert.NoError(err)
	assert.Equal("Europe/Berlin", cal.Location().String())

	_, err = NewCalendar("Not/AZone")
	assert.Error(err)

	cal, err = NewCalendar("")
	assert.NoError(err)
	assert.Equal(time.Local, cal.Location())
}

func TestStartOfDayUsesDisplayZone(t *testing.T) {
	assert := assert.New(t)

	cal, err := NewCalendar("Europe/Berlin")
	assert.NoError(err)

	// 23:30 UTC is already the next day in Berlin (CET, +1).
	utc := time.Date(2026, 1, 10, 23, 30, 0, 0, time.UTC)
	day := cal.StartOfDay(utc)

	assert.Equal(11, day.Day())
	assert.Equal(0, day.Hour())
	assert.Equal("Europe/Berlin", day.Location().String())
}

func TestSameDayAndAddDays(t *testing.T) {
	assert := assert.New(t)

	cal, err := NewCalendar("UTC")
	assert.NoError(err)

	morning := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	next := time.Date(2026, 3, 3, 0, 0, 1, 0, time.UTC)

	assert.True(cal.SameDay(morning, evening))
	assert.False(cal.SameDay(morning, next))
	assert.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), cal.AddDays(morning, 3))
}

func TestWindow(t *testing.T) {
	assert := assert.New(t)

	cal, err := NewCalendar("UTC")
	assert.NoError(err)

	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	from, to := cal.Window(now, 7)

	assert.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), to)
}

func TestSpannedDays(t *testing.T) {
	assert := assert.New(t)

	cal, err := NewCalendar("UTC")
	assert.NoError(err)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	// Timed single-day event: one day.
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	days := cal.SpannedDays(start, start.Add(time.Hour), from, to)
	assert.Equal([]time.Time{cal.StartOfDay(start)}, days)

	// All-day event with exclusive midnight end: one day, not two.
	allDayStart := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	days = cal.SpannedDays(allDayStart, allDayStart.AddDate(0, 0, 1), from, to)
	assert.Len(days, 1)

	// Three-day trip.
	tripStart := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	tripEnd := time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC)
	days = cal.SpannedDays(tripStart, tripEnd, from, to)
	assert.Len(days, 3)

	// Clamped to the window.
	days = cal.SpannedDays(tripStart, tripEnd, from, cal.AddDays(from, 2))
	assert.Len(days, 1)

	// Zero-length event still occupies its start day.
	days = cal.SpannedDays(start, start, from, to)
	assert.Len(days, 1)
}

func TestClocks(t *testing.T) {
	assert := assert.New(t)

	fixed := &FixedClock{T: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	assert.Equal(fixed.T, fixed.Now())

	before := time.Now()
	got := SystemClock{}.Now()
	assert.False(got.Before(before))
}
