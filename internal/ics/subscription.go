package ics

import (
	"context"
	"time"

	"calwidget/internal/config"
	"calwidget/internal/model"
)

// Subscription is one configured ICS feed, usable as an engine source.
// It fetches the feed body (with caching), parses it and expands
// recurrences into concrete events inside the requested window.
type Subscription struct {
	spec    config.SourceConfig
	fetcher *Fetcher
	loc     *time.Location
}

// NewSubscription binds a source configuration to a shared Fetcher.
// loc is the display timezone all event times are converted into.
func NewSubscription(spec config.SourceConfig, fetcher *Fetcher, loc *time.Location) *Subscription {
	return &Subscription{spec: spec, fetcher: fetcher, loc: loc}
}

// Subscriptions builds one Subscription per configured source, sharing a
// single Fetcher (and thus one cache directory and HTTP client).
func Subscriptions(cfg *config.Config, cacheDir string, loc *time.Location) []*Subscription {
	fetcher := NewFetcher(cacheDir)
	subs := make([]*Subscription, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		subs = append(subs, NewSubscription(src, fetcher, loc))
	}
	return subs
}

func (s *Subscription) ID() string   { return s.spec.ID }
func (s *Subscription) Name() string { return s.spec.Name }

// Fetch returns the source's concrete events inside [from, to). One call
// consumes one request against the feed endpoint (modulo HTTP caching).
func (s *Subscription) Fetch(ctx context.Context, from, to time.Time) ([]model.RawEvent, error) {
	body, err := s.fetcher.FetchBody(ctx, s.spec.ID, s.spec.URL)
	if err != nil {
		return nil, err
	}

	parsed, err := parseFeed(s.spec.ID, body)
	if err != nil {
		return nil, err
	}

	events, err := expandOccurrences(s.spec.ID, parsed, expandConfig{
		displayLocation: s.loc,
		rangeStart:      from,
		rangeEnd:        to,
	})
	if err != nil {
		return nil, err
	}

	// Per-source display cap, applied before merging.
	if s.spec.MaxEvents > 0 && len(events) > s.spec.MaxEvents {
		events = events[:s.spec.MaxEvents]
	}
	return events, nil
}
