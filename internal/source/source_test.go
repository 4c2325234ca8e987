package source

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"weekgrid/internal/config"
	"weekgrid/internal/model"
)

type fakeProvider struct {
	id     string
	delay  time.Duration
	events []model.CalendarEvent
	err    error
	calls  atomic.Int32
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.events, f.err
}

func TestCollect(t *testing.T) {
	slow := &fakeProvider{id: "slow", delay: 20 * time.Millisecond,
		events: []model.CalendarEvent{{ID: "s1", Date: "2024-06-10"}}}
	fast := &fakeProvider{id: "fast",
		events: []model.CalendarEvent{{ID: "f1", Date: "2024-06-11"}, {ID: "f2", Date: "2024-06-12"}}}
	broken := &fakeProvider{id: "broken", err: errors.New("boom")}

	from := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	res, err := Collect(context.Background(), []Provider{slow, broken, fast}, from, from.AddDate(0, 0, 7))
	if err == nil || !strings.Contains(err.Error(), "broken: boom") {
		t.Errorf("err = %v", err)
	}

	var got []string
	for _, e := range res.Events {
		got = append(got, e.ID)
	}
	if strings.Join(got, ",") != "s1,f1,f2" {
		t.Errorf("events = %v, want provider order", got)
	}
	if res.Counts["fast"] != 2 || res.Counts["slow"] != 1 {
		t.Errorf("counts = %v", res.Counts)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "broken" {
		t.Errorf("failed = %v", res.Failed)
	}
}

func TestCollectNoProviders(t *testing.T) {
	res, err := Collect(context.Background(), nil, time.Now(), time.Now())
	if err != nil || len(res.Events) != 0 {
		t.Errorf("Collect(nil) = %+v, %v", res, err)
	}
}

func TestBuild(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Calendars = append(cfg.Calendars,
		config.CalendarConfig{ID: "team", Kind: config.KindICS, URL: "https://example.com/team.ics"},
		config.CalendarConfig{ID: "dav", Kind: config.KindCalDAV, URL: "https://dav.example.com/"},
		config.CalendarConfig{ID: "gmail", Kind: config.KindGoogle, Account: "me"},
		config.CalendarConfig{ID: "notes", Kind: config.KindLocal},
	)
	cfg.Normalize()

	providers, err := Build(context.Background(), cfg, time.UTC, nil)
	if err == nil || !strings.Contains(err.Error(), "calendar gmail") {
		t.Errorf("expected google setup error, got %v", err)
	}

	var ids []string
	for _, p := range providers {
		ids = append(ids, p.ID())
	}
	if strings.Join(ids, ",") != "team,dav" {
		t.Errorf("providers = %v", ids)
	}
}

func TestErrorsAggregate(t *testing.T) {
	if errorsAggregate(nil) != nil {
		t.Error("nil slice should give nil error")
	}
	err := errorsAggregate([]error{errors.New("a"), errors.New("b")})
	if err.Error() != "a; b" {
		t.Errorf("got %q", err)
	}
}
