package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// expandConfig controls recurrence expansion.
type expandConfig struct {
	// displayLocation is the timezone all occurrences are converted into.
	displayLocation *time.Location

	// rangeStart / rangeEnd bound the occurrence window.
	rangeStart time.Time
	rangeEnd   time.Time

	// maxOccurrencesPerEvent caps runaway rules. Zero means the default.
	maxOccurrencesPerEvent int
}

// expandOccurrences turns parsed VEVENTs into concrete model.RawEvent
// instances inside the window. It handles:
//
//   - single non-recurring events
//   - RRULE recurrence with EXDATE removal
//   - RECURRENCE-ID overrides
//   - all-day semantics
func expandOccurrences(sourceID string, events []parsedEvent, cfg expandConfig) ([]model.RawEvent, error) {
	if cfg.rangeEnd.Before(cfg.rangeStart) {
		return nil, errors.New("expand: range end is before range start")
	}
	if cfg.displayLocation == nil {
		cfg.displayLocation = time.Local
	}
	if cfg.maxOccurrencesPerEvent <= 0 {
		cfg.maxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Split base events from RECURRENCE-ID overrides, keyed by UID.
	baseByUID := make(map[string][]parsedEvent)
	overridesByUID := make(map[string][]parsedEvent)
	order := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	// Iterate in feed order so output order is reproducible.
	out := make([]model.RawEvent, 0, len(events))
	for _, uid := range order {
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(sourceID, ev, overridesByUID[uid], cfg)
			if hitCap {
				appLog.Warn("recurrence expansion truncated",
					"source", sourceID, "uid", uid, "cap", cfg.maxOccurrencesPerEvent)
			}
			out = append(out, occ...)
		}
	}
	return out, nil
}

func expandEvent(sourceID string, ev parsedEvent, overrides []parsedEvent, cfg expandConfig) ([]model.RawEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(sourceID, ev, overrides, cfg), false
	}
	return expandRecurringEvent(sourceID, ev, overrides, cfg)
}

func expandSingleEvent(sourceID string, ev parsedEvent, overrides []parsedEvent, cfg expandConfig) []model.RawEvent {
	if !timeRangesOverlap(ev.Start, ev.End, cfg.rangeStart, cfg.rangeEnd) {
		return nil
	}

	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end = o.Start, o.End
		ev = o
	}
	return []model.RawEvent{makeRawEvent(sourceID, ev, start, end, cfg.displayLocation)}
}

func expandRecurringEvent(sourceID string, ev parsedEvent, overrides []parsedEvent, cfg expandConfig) ([]model.RawEvent, bool) {
	out := make([]model.RawEvent, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("failed to parse RRULE", err, "source", sourceID, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between operates in the event's own location.
	rangeStart := cfg.rangeStart.In(ev.Start.Location())
	rangeEnd := cfg.rangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > cfg.maxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.maxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			// All-day: [date 00:00, next day 00:00) in the event's zone.
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		start, end, baseEv := occStart, occEnd, ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			start, end, baseEv = o.Start, o.End, o
		}
		out = append(out, makeRawEvent(sourceID, baseEv, start, end, cfg.displayLocation))
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches the
// given instance start with exact time equality.
func findOverrideForStart(overrides []parsedEvent, start time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}

// makeRawEvent converts a (possibly overridden) parsedEvent plus concrete
// start/end into a RawEvent normalized into the display timezone.
func makeRawEvent(sourceID string, ev parsedEvent, start, end time.Time, displayLoc *time.Location) model.RawEvent {
	return model.RawEvent{
		SourceID:    sourceID,
		UID:         ev.UID,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start.In(displayLoc),
		End:         end.In(displayLoc),
		URL:         ev.URL,
		SourceURL:   ev.SourceURL,
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
