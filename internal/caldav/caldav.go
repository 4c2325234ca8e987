// Package caldav reads events from CalDAV collections (iCloud, Nextcloud,
// Radicale, ...) and expands them through the same recurrence path as ICS
// subscriptions.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	weekics "weekgrid/internal/ics"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// DefaultiCloudURL is used when no server URL is configured.
const DefaultiCloudURL = "https://caldav.icloud.com"

// Config describes one CalDAV-backed calendar.
type Config struct {
	// ID is the calendar ID events are tagged with.
	ID       string
	URL      string
	Username string
	Password string
	// Path selects one collection. Empty means every collection in the
	// user's calendar home.
	Path string
}

// Calendar is a CalDAV account exposed as a calendar source.
type Calendar struct {
	cfg    Config
	client *caldav.Client
	loc    *time.Location

	mu sync.Mutex
	// collections caches discovered paths when cfg.Path is empty.
	collections []string
}

// New builds a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, loc *time.Location) (*Calendar, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultiCloudURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if loc == nil {
		loc = time.Local
	}

	var hc webdav.HTTPClient = httpClient
	if cfg.Username != "" || cfg.Password != "" {
		hc = webdav.HTTPClientWithBasicAuth(hc, cfg.Username, cfg.Password)
	}
	client, err := caldav.NewClient(hc, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}
	return &Calendar{cfg: cfg, client: client, loc: loc}, nil
}

// ID returns the calendar ID.
func (c *Calendar) ID() string { return c.cfg.ID }

// Collection is a discovered calendar collection.
type Collection struct {
	Path        string
	Name        string
	Description string
}

// Discover lists the calendar collections of the authenticated user.
func (c *Calendar) Discover(ctx context.Context) ([]Collection, error) {
	principal, err := c.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := c.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}
	cals, err := c.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	out := make([]Collection, 0, len(cals))
	for _, cal := range cals {
		if !supportsEvents(cal.SupportedComponentSet) {
			continue
		}
		out = append(out, Collection{Path: cal.Path, Name: cal.Name, Description: cal.Description})
	}
	return out, nil
}

func supportsEvents(comps []string) bool {
	if len(comps) == 0 {
		return true
	}
	for _, c := range comps {
		if strings.EqualFold(c, ical.CompEvent) {
			return true
		}
	}
	return false
}

func (c *Calendar) paths(ctx context.Context) ([]string, error) {
	if c.cfg.Path != "" {
		return []string{c.cfg.Path}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collections != nil {
		return c.collections, nil
	}
	cols, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(cols))
	for _, col := range cols {
		paths = append(paths, col.Path)
	}
	c.collections = paths
	return paths, nil
}

// Events queries every selected collection for VEVENTs intersecting
// [from, to) and expands them into display rows.
func (c *Calendar) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	paths, err := c.paths(ctx)
	if err != nil {
		return nil, fmt.Errorf("caldav %s: %w", c.cfg.ID, err)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	src := weekics.Source{ID: c.cfg.ID, URL: c.cfg.URL, Kind: "caldav"}
	var parsed []weekics.ParsedEvent
	for _, p := range paths {
		objects, err := c.client.QueryCalendar(ctx, p, query)
		if err != nil {
			return nil, fmt.Errorf("caldav %s: query %s: %w", c.cfg.ID, p, err)
		}
		for _, obj := range objects {
			parsed = append(parsed, ParseCalendar(src, obj.Data, c.loc)...)
		}
	}

	appLog.Debug("caldav query completed", "id", c.cfg.ID, "collections", len(paths), "vevents", len(parsed))
	return weekics.Expand(parsed, from, to, c.loc)
}

// ParseCalendar converts the VEVENTs of one calendar object. Components that
// lack a UID or DTSTART are skipped. Floating times are read in loc.
func ParseCalendar(src weekics.Source, cal *ical.Calendar, loc *time.Location) []weekics.ParsedEvent {
	if cal == nil || cal.Component == nil {
		return nil
	}
	var out []weekics.ParsedEvent
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ev, err := parseEvent(src, comp, loc)
		if err != nil {
			appLog.Warn("caldav vevent skipped", "id", src.ID, "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out
}

func text(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

func propLocation(p *ical.Prop, fallback *time.Location) *time.Location {
	if tz := p.Params.Get(ical.ParamTimezoneID); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			return l
		}
	}
	return fallback
}

func isDate(p *ical.Prop) bool {
	return p.ValueType() == ical.ValueDate || !strings.Contains(p.Value, "T")
}

func parseEvent(src weekics.Source, comp *ical.Component, loc *time.Location) (weekics.ParsedEvent, error) {
	out := weekics.ParsedEvent{Source: src}

	out.UID = text(comp, ical.PropUID)
	if out.UID == "" {
		return out, fmt.Errorf("missing UID")
	}
	out.Summary = text(comp, ical.PropSummary)
	out.Description = text(comp, ical.PropDescription)
	out.Location = text(comp, ical.PropLocation)
	out.Color = text(comp, ical.PropColor)
	out.Cancelled = strings.EqualFold(text(comp, ical.PropStatus), "CANCELLED")
	for _, a := range comp.Props.Values(ical.PropAttendee) {
		if email := strings.TrimPrefix(strings.TrimPrefix(a.Value, "mailto:"), "MAILTO:"); email != "" {
			out.Attendees = append(out.Attendees, email)
		}
	}

	dtStart := comp.Props.Get(ical.PropDateTimeStart)
	if dtStart == nil {
		return out, fmt.Errorf("missing DTSTART")
	}
	startLoc := propLocation(dtStart, loc)
	start, err := weekics.ParseTime(dtStart.Value, startLoc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = isDate(dtStart)
	out.StartTZ = dtStart.Params.Get(ical.ParamTimezoneID)

	if dtEnd := comp.Props.Get(ical.PropDateTimeEnd); dtEnd != nil {
		if end, err := weekics.ParseTime(dtEnd.Value, propLocation(dtEnd, startLoc)); err == nil {
			out.End = end
		}
	} else if d := text(comp, ical.PropDuration); d != "" {
		if dur, err := weekics.ParseDuration(d); err == nil {
			out.End = start.Add(dur)
		}
	}
	if !out.End.After(out.Start) {
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start
		}
	}

	out.RawRRule = text(comp, ical.PropRecurrenceRule)
	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		exLoc := propLocation(&p, startLoc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := weekics.ParseTime(part, exLoc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if rid := comp.Props.Get(ical.PropRecurrenceID); rid != nil {
		if t, err := weekics.ParseTime(rid.Value, propLocation(rid, startLoc)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}
	return out, nil
}
