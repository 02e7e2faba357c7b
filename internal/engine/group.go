package engine

import (
	"sort"
	"time"

	"calwidget/internal/config"
	"calwidget/internal/model"
	"calwidget/internal/timeutil"
)

// group partitions the merged normalized event set into ordered day buckets.
// The output is a deterministic function of (events, configuration, now):
// ordering never depends on fetch arrival order.
//
// Steps:
//  1. filter to [today, today+NumberOfDays); optionally drop events that
//     already ended unless ShowPastEvents
//  2. sort by start (all-day first within a start, then configured source
//     order, then title, then UID)
//  3. bucket by start day, or by every spanned day when ShowSpan is set
//  4. truncate the flattened sequence to EventsLimit, dropping days
//     emptied by truncation
func group(cal *timeutil.Calendar, cfg *config.Config, events []model.NormalizedEvent, now time.Time) []model.DayBucket {
	from, to := cal.Window(now, cfg.NumberOfDays)
	today := cal.StartOfDay(now)

	sourceIdx := make(map[string]int, len(cfg.Sources))
	for i, src := range cfg.Sources {
		sourceIdx[src.ID] = i
	}

	// Filter.
	filtered := make([]model.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		// Outside the window entirely. All-day end times are exclusive,
		// so an all-day event ending at `from` is already over.
		if !ev.End.After(from) || !ev.Start.Before(to) {
			continue
		}
		// An event that already ended today is hidden unless asked for.
		if !cfg.ShowPastEvents && ev.End.Before(now) {
			continue
		}
		filtered = append(filtered, ev)
	}

	// Sort. Total order so grouping is idempotent.
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		if sourceIdx[a.SourceID] != sourceIdx[b.SourceID] {
			return sourceIdx[a.SourceID] < sourceIdx[b.SourceID]
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Key < b.Key
	})

	// Bucket.
	bucketByDay := make(map[time.Time]*model.DayBucket)
	var dayOrder []time.Time
	add := func(day time.Time, ev model.NormalizedEvent) {
		b, ok := bucketByDay[day]
		if !ok {
			b = &model.DayBucket{Day: day, IsToday: day.Equal(today)}
			bucketByDay[day] = b
			dayOrder = append(dayOrder, day)
		}
		b.Events = append(b.Events, ev)
	}
	for _, ev := range filtered {
		if cfg.ShowSpan && (ev.AllDay || !cal.SameDay(ev.Start, ev.End)) {
			for _, day := range cal.SpannedDays(ev.Start, ev.End, from, to) {
				add(day, ev)
			}
			continue
		}
		startDay := cal.StartOfDay(ev.Start)
		if startDay.Before(from) {
			// Multi-day event already running: surface it on today.
			startDay = from
		}
		add(startDay, ev)
	}

	sort.Slice(dayOrder, func(i, j int) bool { return dayOrder[i].Before(dayOrder[j]) })

	// Truncate the flattened event sequence to EventsLimit, preserving day
	// order and within-day order; drop days emptied by truncation.
	remaining := cfg.EventsLimit
	out := make([]model.DayBucket, 0, len(dayOrder))
	for _, day := range dayOrder {
		if remaining <= 0 {
			break
		}
		b := bucketByDay[day]
		if len(b.Events) > remaining {
			b.Events = b.Events[:remaining]
		}
		remaining -= len(b.Events)

		for i := range b.Events {
			b.Events[i].FirstInDay = i == 0
			b.Events[i].LastInDay = i == len(b.Events)-1
		}
		out = append(out, *b)
	}
	return out
}
