package engine

import (
	"context"
	"sync"
	"time"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

// Source is one external calendar feed. Implementations own their transport
// (the ICS subscription in internal/ics is the shipping one); the engine
// only assumes Fetch is bounded by the collaborator's own timeout contract.
type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, from, to time.Time) ([]model.RawEvent, error)
}

// FetchOutcome is the merged result of one fetch cycle: events from all
// succeeding sources concatenated in configured source order, plus one
// FailedSource entry per source that failed.
type FetchOutcome struct {
	Events []model.RawEvent
	Failed []model.FailedSource
}

// fetchAll queries every source concurrently over [from, to) and joins the
// results. A failing source degrades only itself; its error is captured as
// data, never returned. Result order follows configured source order, not
// completion order.
func fetchAll(ctx context.Context, sources []Source, from, to time.Time) FetchOutcome {
	type result struct {
		events []model.RawEvent
		err    error
	}

	results := make([]result, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			events, err := src.Fetch(ctx, from, to)
			results[i] = result{events: events, err: err}
		}(i, src)
	}
	wg.Wait()

	var out FetchOutcome
	for i, src := range sources {
		if results[i].err != nil {
			appLog.Error("source fetch failed", results[i].err, "source", src.ID())
			out.Failed = append(out.Failed, model.FailedSource{
				SourceID: src.ID(),
				Name:     src.Name(),
				Err:      results[i].err.Error(),
			})
			continue
		}
		out.Events = append(out.Events, results[i].events...)
	}
	return out
}
