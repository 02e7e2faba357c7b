package model

import "time"

// RawEvent is a single concrete event instance as produced by a calendar
// source (after recurrence expansion, before display normalization).
type RawEvent struct {
	SourceID string // configured source ID
	UID      string // source-native record identifier

	Title       string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time

	// URL is the canonical link for the event, if the source provided one.
	URL string
	// SourceURL is a source-native alternate link (e.g. the source's own
	// web UI for the record). May be empty.
	SourceURL string
}

// NormalizedEvent is a RawEvent plus everything the widget needs to render
// and reconcile it: a stable identity key, the resolved display link, the
// resolved origin label/color, and an optional progress fraction.
type NormalizedEvent struct {
	RawEvent

	// Key identifies the same underlying calendar record across fetch
	// cycles. Never derived from mutable fields such as the title.
	Key string

	// Link is the resolved display link. Empty means link interaction is
	// disabled for this event.
	Link string

	// OriginLabel / OriginColor describe the source the event came from.
	// Only populated when multi-source display is enabled.
	OriginLabel string
	OriginColor string

	// Progress is the elapsed fraction of the event in [0, 1]; nil unless
	// the event is currently in progress.
	Progress *float64

	// FirstInDay / LastInDay mark bucket boundaries for rendering.
	FirstInDay bool
	LastInDay  bool
}

// DayBucket is one calendar day's worth of events, ordered by start time.
type DayBucket struct {
	// Day is midnight of the bucket's date in the display timezone.
	Day     time.Time
	IsToday bool
	Events  []NormalizedEvent
}

// FailedSource records a per-source fetch failure. Failures are data, not
// errors: one bad source must not suppress rendering of the others.
type FailedSource struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	Err      string `json:"error"`
}
