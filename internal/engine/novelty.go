package engine

import (
	"context"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

// Notifier delivers one notification per newly appeared event. Delivery is
// fire-and-forget from the engine's perspective: errors are logged and
// never retried here.
type Notifier interface {
	Notify(ctx context.Context, ev model.NormalizedEvent) error
}

// NopNotifier discards all notifications. Used when no notify endpoint is
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.NormalizedEvent) error { return nil }

// detectNew returns the events whose identity key is absent from the
// previous snapshot, deduplicated by key (a multi-day event repeated on
// several spanned days is one event). An empty or missing snapshot reports
// nothing: the first cycle only establishes the baseline, it must not
// produce a notification storm.
func detectNew(prev map[string]struct{}, current []model.NormalizedEvent) []model.NormalizedEvent {
	if len(prev) == 0 {
		return nil
	}
	var fresh []model.NormalizedEvent
	seen := make(map[string]struct{})
	for _, ev := range current {
		if _, ok := prev[ev.Key]; ok {
			continue
		}
		if _, dup := seen[ev.Key]; dup {
			continue
		}
		seen[ev.Key] = struct{}{}
		fresh = append(fresh, ev)
	}
	return fresh
}

// snapshotKeys collapses the current merged list into the retained
// snapshot for the next cycle's diff.
func snapshotKeys(events []model.NormalizedEvent) map[string]struct{} {
	keys := make(map[string]struct{}, len(events))
	for _, ev := range events {
		keys[ev.Key] = struct{}{}
	}
	return keys
}

// notifyAll requests one notification per new event. A failing delivery is
// isolated per event: it is logged and the remaining events still go out.
func notifyAll(ctx context.Context, notifier Notifier, fresh []model.NormalizedEvent) {
	for _, ev := range fresh {
		if err := notifier.Notify(ctx, ev); err != nil {
			appLog.Error("notification delivery failed", err, "key", ev.Key, "title", ev.Title)
		}
	}
}
