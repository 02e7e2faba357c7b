package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"calwidget/internal/config"
	"calwidget/internal/model"
	"calwidget/internal/timeutil"
)

func newTestEngine(t *testing.T, cfg *config.Config, clock timeutil.Clock, sources []Source, notifier Notifier) *Engine {
	t.Helper()
	cal, err := timeutil.NewCalendar("UTC")
	assert.NoError(t, err)
	eng, err := New(cfg, cal, clock, sources, notifier)
	assert.NoError(t, err)
	return eng
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	assert := assert.New(t)

	cal, err := timeutil.NewCalendar("UTC")
	assert.NoError(err)

	cfg := config.DefaultConfig() // no sources
	_, err = New(cfg, cal, timeutil.SystemClock{}, nil, nil)

	var cfgErr *config.ConfigurationError
	assert.ErrorAs(err, &cfgErr)
}

func TestRefreshCycleEndToEnd(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := &timeutil.FixedClock{T: now}

	// Source A: one event today at 09:00, one tomorrow at 10:00.
	// Source B: always errors.
	a := &fakeSource{id: "family", name: "Family", events: []model.RawEvent{
		rawEvent("family", "e1", "Dentist", now.Add(time.Hour), time.Hour),
		rawEvent("family", "e2", "Soccer", now.AddDate(0, 0, 1).Add(2*time.Hour), time.Hour),
	}}
	b := &fakeSource{id: "work", name: "Work", err: errors.New("connection refused")}

	cfg := twoSourceConfig()
	cfg.NumberOfDays = 7
	cfg.EventsLimit = 10

	notifier := &recordingNotifier{}
	eng := newTestEngine(t, cfg, clock, []Source{a, b}, notifier)

	ran := eng.Refresh(context.Background(), false)
	assert.True(ran)

	view := eng.View()
	assert.Equal(StateReady, view.State)
	if assert.Len(view.Buckets, 2) {
		assert.Len(view.Buckets[0].Events, 1)
		assert.Len(view.Buckets[1].Events, 1)
	}
	if assert.Len(view.Failed, 1) {
		assert.Equal("work", view.Failed[0].SourceID)
	}

	// First-ever refresh establishes the baseline without notifications.
	assert.Empty(notifier.notified)
}

func TestRefreshThrottledUntilIntervalElapses(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := &timeutil.FixedClock{T: now}
	src := &fakeSource{id: "family", name: "Family"}

	cfg := twoSourceConfig()
	cfg.Sources = cfg.Sources[:1]
	eng := newTestEngine(t, cfg, clock, []Source{src}, nil)

	assert.True(eng.Refresh(context.Background(), false))
	assert.Equal(1, src.calls)

	// Immediately again: throttled.
	assert.False(eng.Refresh(context.Background(), false))
	assert.Equal(1, src.calls)

	// Forced: runs despite the throttle.
	assert.True(eng.Refresh(context.Background(), true))
	assert.Equal(2, src.calls)

	// Interval elapsed: runs.
	clock.T = now.Add(601 * time.Second)
	assert.True(eng.Refresh(context.Background(), false))
	assert.Equal(3, src.calls)
}

func TestRefreshRunsOnConfigChange(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := &timeutil.FixedClock{T: now}
	src := &fakeSource{id: "family", name: "Family"}

	cfg := twoSourceConfig()
	cfg.Sources = cfg.Sources[:1]
	eng := newTestEngine(t, cfg, clock, []Source{src}, nil)

	assert.True(eng.Refresh(context.Background(), false))
	assert.False(eng.Refresh(context.Background(), false))

	// A cosmetic edit does not bust the throttle.
	cosmetic := *cfg
	cosmetic.HighlightToday = !cfg.HighlightToday
	assert.NoError(eng.SetConfig(&cosmetic, []Source{src}))
	assert.False(eng.Refresh(context.Background(), false))

	// Adding a source does.
	extra := &fakeSource{id: "work", name: "Work"}
	changed := *cfg
	changed.Sources = append([]config.SourceConfig{}, cfg.Sources...)
	changed.Sources = append(changed.Sources, config.SourceConfig{
		ID: "work", URL: "https://cal.example/work.ics",
	})
	assert.NoError(eng.SetConfig(&changed, []Source{src, extra}))
	assert.True(eng.Refresh(context.Background(), false))
}

func TestRefreshNotifiesOnlyNewEvents(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := &timeutil.FixedClock{T: now}

	first := rawEvent("family", "e1", "Dentist", now.Add(time.Hour), time.Hour)
	src := &fakeSource{id: "family", name: "Family", events: []model.RawEvent{first}}

	cfg := twoSourceConfig()
	cfg.Sources = cfg.Sources[:1]
	notifier := &recordingNotifier{}
	eng := newTestEngine(t, cfg, clock, []Source{src}, notifier)

	assert.True(eng.Refresh(context.Background(), false))
	assert.Empty(notifier.notified, "baseline cycle is silent")

	// Next cycle sees one extra event.
	added := rawEvent("family", "e2", "Soccer", now.Add(3*time.Hour), time.Hour)
	src.events = []model.RawEvent{first, added}
	clock.T = now.Add(601 * time.Second)

	assert.True(eng.Refresh(context.Background(), false))
	if assert.Len(notifier.notified, 1) {
		assert.Equal(identityKey(added), notifier.notified[0])
	}

	// A third cycle with the same set stays silent.
	clock.T = now.Add(1300 * time.Second)
	assert.True(eng.Refresh(context.Background(), false))
	assert.Len(notifier.notified, 1)
}

func TestRefreshTotalFailureKeepsBaseline(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := &timeutil.FixedClock{T: now}

	ev := rawEvent("family", "e1", "Dentist", now.Add(time.Hour), time.Hour)
	src := &fakeSource{id: "family", name: "Family", events: []model.RawEvent{ev}}

	cfg := twoSourceConfig()
	cfg.Sources = cfg.Sources[:1]
	notifier := &recordingNotifier{}
	eng := newTestEngine(t, cfg, clock, []Source{src}, notifier)

	assert.True(eng.Refresh(context.Background(), false))
	assert.Equal(StateReady, eng.View().State)

	// Every source fails: error state, snapshot retained.
	src.err = errors.New("upstream down")
	assert.True(eng.Refresh(context.Background(), true))
	view := eng.View()
	assert.Equal(StateError, view.State)
	assert.Len(view.Failed, 1)

	// Recovery with the unchanged set: the old baseline still applies, so
	// nothing is re-announced as new.
	src.err = nil
	assert.True(eng.Refresh(context.Background(), true))
	assert.Equal(StateReady, eng.View().State)
	assert.Empty(notifier.notified)
}
