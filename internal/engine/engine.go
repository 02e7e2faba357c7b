package engine

import (
	"context"
	"sync"
	"time"

	"calwidget/internal/config"
	appLog "calwidget/internal/log"
	"calwidget/internal/model"
	"calwidget/internal/timeutil"
)

// State is the widget engine's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateReady    State = "ready"
	StateError    State = "error"
)

// Engine owns the refresh lifecycle of one widget instance: it gates fetch
// cycles through the throttle, runs fetch → normalize → group, diffs
// snapshots for novelty, and retains the result for the host to serve.
//
// Exactly one cycle is in flight at a time; a trigger arriving while a
// cycle runs is dropped, not queued. RefreshState (last refresh time,
// config fingerprint, retained snapshot, last computed view) is mutated
// only at the end of a completed cycle.
type Engine struct {
	clock    timeutil.Clock
	cal      *timeutil.Calendar
	notifier Notifier

	mu       sync.Mutex
	cfg      *config.Config
	sources  []Source
	state    State
	inFlight bool

	lastRefresh     time.Time
	lastFingerprint string
	snapshot        map[string]struct{}
	buckets         []model.DayBucket
	failed          []model.FailedSource
}

// View is the engine's renderable output: everything the rendering
// collaborator needs, fully computed and stable before handoff.
type View struct {
	State       State                `json:"state"`
	LastRefresh time.Time            `json:"last_refresh"`
	Buckets     []model.DayBucket    `json:"buckets"`
	Failed      []model.FailedSource `json:"failed_sources"`
}

// New validates the configuration and builds an engine. A configuration
// error is returned synchronously; no fetch is attempted.
func New(cfg *config.Config, cal *timeutil.Calendar, clock timeutil.Clock, sources []Source, notifier Notifier) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		clock:    clock,
		cal:      cal,
		notifier: notifier,
		cfg:      cfg,
		sources:  sources,
		state:    StateIdle,
	}, nil
}

// SetConfig swaps in a new validated configuration and source set. The
// change takes effect on the next cycle; a running cycle is never aborted.
func (e *Engine) SetConfig(cfg *config.Config, sources []Source) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.sources = sources
	return nil
}

// Refresh considers one fetch cycle. It returns true if a cycle actually
// ran. The throttle is consulted unless force is set; an in-flight cycle
// always suppresses a new one, forced or not.
func (e *Engine) Refresh(ctx context.Context, force bool) bool {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		appLog.Debug("refresh skipped: cycle already in flight")
		return false
	}
	now := e.clock.Now()
	cfg := e.cfg
	fingerprint := cfg.Fingerprint()
	if !force && !shouldRefresh(now, e.lastRefresh, e.lastFingerprint, fingerprint) {
		e.mu.Unlock()
		appLog.Debug("refresh skipped: throttled", "last_refresh", e.lastRefresh.Format(time.RFC3339))
		return false
	}
	sources := e.sources
	prev := e.snapshot
	e.inFlight = true
	e.state = StateFetching
	e.mu.Unlock()

	from, to := e.cal.Window(now, cfg.NumberOfDays)
	appLog.Info("fetch cycle start",
		"sources", len(sources),
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339),
	)

	outcome := fetchAll(ctx, sources, from, to)
	normalized := normalize(cfg, outcome.Events, now)
	buckets := group(e.cal, cfg, normalized, now)

	// Novelty is diffed against the raw fetched set, independent of the
	// grouping policies (an event hidden by the events limit is still not
	// "new" next cycle).
	fresh := detectNew(prev, normalized)
	notifyAll(ctx, e.notifier, fresh)

	totalFailure := len(sources) > 0 && len(outcome.Failed) == len(sources)

	e.mu.Lock()
	e.inFlight = false
	e.buckets = buckets
	e.failed = outcome.Failed
	if totalFailure {
		// Nothing was fetched; keep the old snapshot and refresh
		// timestamp so the next trigger retries promptly.
		e.state = StateError
	} else {
		e.state = StateReady
		e.lastRefresh = now
		e.lastFingerprint = fingerprint
		e.snapshot = snapshotKeys(normalized)
	}
	e.mu.Unlock()

	appLog.Info("fetch cycle done",
		"events", len(normalized),
		"buckets", len(buckets),
		"failed_sources", len(outcome.Failed),
		"new_events", len(fresh),
	)
	return true
}

// View returns the last computed renderable output.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	buckets := make([]model.DayBucket, len(e.buckets))
	copy(buckets, e.buckets)
	failed := make([]model.FailedSource, len(e.failed))
	copy(failed, e.failed)

	return View{
		State:       e.state,
		LastRefresh: e.lastRefresh,
		Buckets:     buckets,
		Failed:      failed,
	}
}
