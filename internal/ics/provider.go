package ics

import (
	"context"
	"fmt"
	"time"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// Calendar is an ICS subscription exposed as a calendar source.
type Calendar struct {
	src     Source
	fetcher *Fetcher
	loc     *time.Location
}

// NewCalendar binds one feed to a fetcher. loc is the display timezone.
func NewCalendar(src Source, fetcher *Fetcher, loc *time.Location) *Calendar {
	if src.Kind == "" {
		src.Kind = "ics"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{src: src, fetcher: fetcher, loc: loc}
}

// ID returns the calendar ID.
func (c *Calendar) ID() string { return c.src.ID }

// Events downloads the feed and returns the display rows that intersect
// [from, to).
func (c *Calendar) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	res, err := c.fetcher.FetchOne(ctx, c.src)
	if err != nil {
		return nil, fmt.Errorf("ics %s: %w", c.src.ID, err)
	}
	return EventsFromBody(c.src, res.Body, from, to, c.loc)
}

// EventsFromBody parses and expands one ICS payload into display rows.
func EventsFromBody(src Source, body []byte, from, to time.Time, loc *time.Location) ([]model.CalendarEvent, error) {
	parsed, err := ParseICS(src, body)
	if err != nil {
		return nil, fmt.Errorf("ics %s: %w", src.ID, err)
	}
	return Expand(parsed, from, to, loc)
}

// Expand runs recurrence expansion over [from, to) and flattens the
// occurrences into display rows in loc.
func Expand(parsed []ParsedEvent, from, to time.Time, loc *time.Location) ([]model.CalendarEvent, error) {
	res, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.CalendarEvent, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		out = append(out, occ.Events(loc)...)
	}
	appLog.Debug("ics expanded",
		"parsed", len(parsed),
		"occurrences", len(res.Occurrences),
		"rows", len(out),
		"truncated", len(res.TruncatedEvents),
	)
	return out, nil
}
