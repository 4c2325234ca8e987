// Package source wires the configured calendars to their backends and
// collects events from all of them for a time range.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"weekgrid/internal/caldav"
	"weekgrid/internal/config"
	"weekgrid/internal/google"
	"weekgrid/internal/ics"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// Provider yields the events of one calendar backend for [from, to).
type Provider interface {
	ID() string
	Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
}

// Build creates one provider per remote calendar. Local calendars are not
// returned: they are all served by the agent store (store.AgentSource).
// Calendars that cannot be set up (a missing Google token, for example) are
// logged and skipped; the returned error lists them.
func Build(ctx context.Context, cfg *config.Config, loc *time.Location, client *http.Client) ([]Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	fetcher := ics.NewFetcher(cfg.CacheDir(), client)

	var (
		providers []Provider
		errs      []error
	)
	for _, cal := range cfg.Calendars {
		switch cal.Kind {
		case config.KindICS:
			providers = append(providers, ics.NewCalendar(ics.Source{
				ID:       cal.ID,
				URL:      cal.URL,
				Kind:     cal.Kind,
				Username: cal.Username,
				Password: cal.Password,
			}, fetcher, loc))
		case config.KindCalDAV:
			c, err := caldav.New(caldav.Config{
				ID:       cal.ID,
				URL:      cal.URL,
				Username: cal.Username,
				Password: cal.Password,
				Path:     cal.Path,
			}, client, loc)
			if err != nil {
				errs = append(errs, fmt.Errorf("calendar %s: %w", cal.ID, err))
				continue
			}
			providers = append(providers, c)
		case config.KindGoogle:
			c, err := google.New(ctx, google.Config{
				ID:           cal.ID,
				CalendarID:   cal.Path,
				Account:      cal.Account,
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				TokenDir:     cfg.Google.TokenDir,
			}, loc)
			if err != nil {
				errs = append(errs, fmt.Errorf("calendar %s: %w", cal.ID, err))
				continue
			}
			providers = append(providers, c)
		case config.KindLocal:
		default:
			errs = append(errs, fmt.Errorf("calendar %s: unknown kind %q", cal.ID, cal.Kind))
		}
	}
	err := errorsAggregate(errs)
	if err != nil {
		appLog.Warn("some calendars were skipped", "error", err.Error(), "count", len(errs))
	}
	appLog.Info("calendar sources ready", "providers", len(providers))
	return providers, err
}

// Result is the outcome of one collection round.
type Result struct {
	Events []model.CalendarEvent
	// Counts maps provider ID to the number of events it returned.
	Counts map[string]int
	// Failed lists the providers whose fetch failed.
	Failed []string
}

// Collect queries every provider concurrently. Results are concatenated in
// provider order regardless of completion order. A failing provider does not
// abort the round: the others' events are returned together with the
// aggregated error.
func Collect(ctx context.Context, providers []Provider, from, to time.Time) (Result, error) {
	type outcome struct {
		events []model.CalendarEvent
		err    error
	}
	outcomes := make([]outcome, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := p.Events(ctx, from, to)
			outcomes[i] = outcome{events: events, err: err}
		}()
	}
	wg.Wait()

	res := Result{Counts: make(map[string]int, len(providers))}
	var errs []error
	for i, o := range outcomes {
		id := providers[i].ID()
		if o.err != nil {
			appLog.Error("calendar fetch failed", o.err, "id", id)
			errs = append(errs, fmt.Errorf("%s: %w", id, o.err))
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Counts[id] = len(o.events)
		res.Events = append(res.Events, o.events...)
	}
	return res, errorsAggregate(errs)
}

// errorsAggregate joins errors into one "; "-separated error.
func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
