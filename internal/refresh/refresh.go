// Package refresh keeps an in-memory snapshot of calendar events up to date
// on a cron schedule.
//
// Readers get the current *Snapshot with a single atomic load. A refresh
// builds a brand-new snapshot and swaps the pointer, so a snapshot handed
// out is never modified afterwards.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"weekgrid/internal/layout"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
	"weekgrid/internal/source"
)

// Default horizon around the current week that a refresh covers.
const (
	DefaultWeeksBack  = 2
	DefaultWeeksAhead = 8
)

// Snapshot is one immutable view of all calendar events.
type Snapshot struct {
	Events    []model.CalendarEvent
	From      time.Time
	To        time.Time
	UpdatedAt time.Time
	// Failed lists providers whose last fetch failed. Their events are
	// missing from this snapshot.
	Failed []string
}

// Covers reports whether [from, to) lies inside the snapshot range.
func (s *Snapshot) Covers(from, to time.Time) bool {
	return s != nil && !from.Before(s.From) && !to.After(s.To)
}

// Options configures a Refresher.
type Options struct {
	// Schedule is a standard five-field cron spec.
	Schedule  string
	Location  *time.Location
	WeekStart time.Weekday
	// WeeksBack and WeeksAhead default to DefaultWeeksBack/DefaultWeeksAhead.
	WeeksBack  int
	WeeksAhead int
	// Now defaults to time.Now.
	Now func() time.Time
	// Live providers are queried on every Events call and never enter a
	// snapshot. The local agent store is one.
	Live []source.Provider
	// OnRefresh, when set, runs after each published snapshot on the
	// refreshing goroutine.
	OnRefresh func(ctx context.Context, snap *Snapshot)
}

// Refresher owns the current snapshot.
type Refresher struct {
	providers []source.Provider
	opts      Options
	cron      *cron.Cron

	current atomic.Pointer[Snapshot]
	// runMu serializes refresh rounds; readers never take it.
	runMu sync.Mutex
}

// New creates a Refresher. Nothing is fetched until Start or RefreshNow.
func New(providers []source.Provider, opts Options) *Refresher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WeeksBack <= 0 {
		opts.WeeksBack = DefaultWeeksBack
	}
	if opts.WeeksAhead <= 0 {
		opts.WeeksAhead = DefaultWeeksAhead
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{
		providers: providers,
		opts:      opts,
		cron:      cron.New(cron.WithLocation(opts.Location)),
	}
}

// Snapshot returns the current snapshot, or nil before the first
// successful refresh.
func (r *Refresher) Snapshot() *Snapshot {
	return r.current.Load()
}

// Range is the horizon a refresh started at now covers.
func (r *Refresher) Range(now time.Time) (time.Time, time.Time) {
	w := layout.WeekOf(now.In(r.opts.Location), r.opts.WeekStart)
	from := w.Start.AddDate(0, 0, -7*r.opts.WeeksBack)
	to := w.Start.AddDate(0, 0, 7*(r.opts.WeeksAhead+1))
	return from, to
}

// RefreshNow runs one collection round. When every provider fails the
// previous snapshot is kept and the error returned. On partial failure the
// new snapshot is published with the failing providers listed.
func (r *Refresher) RefreshNow(ctx context.Context) (*Snapshot, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := r.opts.Now()
	from, to := r.Range(started)
	res, err := source.Collect(ctx, r.providers, from, to)
	if err != nil && len(res.Failed) == len(r.providers) {
		appLog.Error("refresh failed; keeping previous snapshot", err)
		return r.current.Load(), fmt.Errorf("refresh: %w", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return r.current.Load(), ctxErr
	}

	snap := &Snapshot{
		Events:    res.Events,
		From:      from,
		To:        to,
		UpdatedAt: r.opts.Now(),
		Failed:    res.Failed,
	}
	r.current.Store(snap)
	appLog.Info("snapshot refreshed",
		"events", len(snap.Events),
		"providers", len(r.providers),
		"failed", len(snap.Failed),
		"took", time.Since(started).String(),
	)
	if r.opts.OnRefresh != nil {
		r.opts.OnRefresh(ctx, snap)
	}
	return snap, err
}

// Events returns the events for [from, to). Ranges the snapshot covers are
// served from memory, anything else is collected from the providers. Live
// providers are always queried and appended; a live failure is logged and
// the remaining events are still returned.
func (r *Refresher) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	if snap := r.current.Load(); snap.Covers(from, to) {
		events = snap.Events
	} else {
		appLog.Debug("range outside snapshot; collecting",
			"from", from.Format(time.RFC3339),
			"to", to.Format(time.RFC3339),
		)
		res, err := source.Collect(ctx, r.providers, from, to)
		if err != nil && len(res.Failed) == len(r.providers) {
			return nil, err
		}
		events = res.Events
	}
	if len(r.opts.Live) == 0 {
		return events, nil
	}

	live, err := source.Collect(ctx, r.opts.Live, from, to)
	if err != nil {
		appLog.Error("live sources failed; serving without them", err, "failed", strings.Join(live.Failed, ","))
	}
	if len(live.Events) == 0 {
		return events, nil
	}
	// Copy so the shared snapshot slice is never appended to.
	out := make([]model.CalendarEvent, 0, len(events)+len(live.Events))
	out = append(out, events...)
	return append(out, live.Events...), nil
}

// Start performs an initial refresh and schedules the following ones. It
// blocks until ctx is cancelled, then waits for a running round to finish.
func (r *Refresher) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.opts.Schedule, func() {
		if _, err := r.RefreshNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Warn("scheduled refresh incomplete", "error", err.Error())
		}
	}); err != nil {
		return fmt.Errorf("add refresh schedule %q: %w", r.opts.Schedule, err)
	}

	if _, err := r.RefreshNow(ctx); err != nil {
		appLog.Warn("initial refresh incomplete", "error", err.Error())
	}

	r.cron.Start()
	appLog.Info("refresh scheduler started", "schedule", r.opts.Schedule, "timezone", r.opts.Location.String())

	<-ctx.Done()
	stopped := r.cron.Stop()
	<-stopped.Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}
