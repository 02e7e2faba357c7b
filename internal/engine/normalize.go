package engine

import (
	"time"

	"calwidget/internal/config"
	"calwidget/internal/model"
)

// identityKey builds the stable reconciliation key for an event instance:
// source id + record UID + instance start. Recurring events share a UID
// across instances, so the start disambiguates them. Mutable fields such as
// the title never participate; an upstream title edit keeps the identity.
func identityKey(ev model.RawEvent) string {
	return ev.SourceID + "/" + ev.UID + "/" + ev.Start.UTC().Format(time.RFC3339)
}

// resolveLink is the pure link decision: configuration flags and link
// availability in, chosen link (or empty = interaction disabled) out.
func resolveLink(cfg *config.Config, ev model.RawEvent) string {
	if cfg.DisableLinks {
		return ""
	}
	if cfg.UseSourceURL && ev.SourceURL != "" {
		return ev.SourceURL
	}
	return ev.URL
}

// progressFraction returns elapsed/duration clamped to [0, 1] for events
// currently in progress, nil otherwise. All-day events carry no progress.
func progressFraction(ev model.RawEvent, now time.Time) *float64 {
	if ev.AllDay {
		return nil
	}
	if now.Before(ev.Start) || now.After(ev.End) {
		return nil
	}
	dur := ev.End.Sub(ev.Start)
	if dur <= 0 {
		return nil
	}
	f := float64(now.Sub(ev.Start)) / float64(dur)
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return &f
}

// normalize maps every RawEvent to a NormalizedEvent under the given
// configuration. Origin labels are only populated when more than one
// source is configured.
func normalize(cfg *config.Config, events []model.RawEvent, now time.Time) []model.NormalizedEvent {
	multiSource := len(cfg.Sources) > 1
	byID := make(map[string]config.SourceConfig, len(cfg.Sources))
	for _, src := range cfg.Sources {
		byID[src.ID] = src
	}

	out := make([]model.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		n := model.NormalizedEvent{
			RawEvent: ev,
			Key:      identityKey(ev),
			Link:     resolveLink(cfg, ev),
		}
		if cfg.ProgressBar {
			n.Progress = progressFraction(ev, now)
		}
		if multiSource {
			if src, ok := byID[ev.SourceID]; ok {
				n.OriginLabel = src.Name
				if n.OriginLabel == "" {
					n.OriginLabel = src.ID
				}
				n.OriginColor = src.Color
			} else {
				n.OriginLabel = ev.SourceID
			}
		}
		out = append(out, n)
	}
	return out
}
