package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weekgrid/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type, and the
// CalDAV source builds the same value from its own decoder.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Attendees   []string
	Color       string
	// Cancelled is true for STATUS:CANCELLED; such events are never shown.
	Cancelled bool

	Start   time.Time
	End     time.Time
	AllDay  bool
	StartTZ string

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values (with Location set).
//   - It detects all-day events by inspecting the DTSTART value format.
//   - It records RRULE/EXDATE/RECURRENCE-ID but does not expand recurrences.
//
// A VEVENT that fails to parse is logged and skipped.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func propParam(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(strings.TrimSpace(propValue(ve, ical.ComponentPropertySequence))); err == nil {
		out.Seq = n
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.Color = propValue(ve, ical.ComponentPropertyColor)
	out.Cancelled = strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED")

	for _, a := range ve.Attendees() {
		if email := a.Email(); email != "" {
			out.Attendees = append(out.Attendees, email)
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.StartTZ = propParam(dtStart, "TZID")
	out.AllDay = strings.EqualFold(propParam(dtStart, "VALUE"), "DATE") || !strings.Contains(dtStart.Value, "T")

	if out.AllDay {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		if end, err := ve.GetAllDayEndAt(); err == nil && end.After(start) {
			out.End = end
		} else {
			out.End = start.AddDate(0, 0, 1)
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		if end, err := ve.GetEndAt(); err == nil {
			out.End = end
		} else if d := propValue(ve, ical.ComponentPropertyDuration); d != "" {
			if dur, derr := ParseDuration(d); derr == nil {
				out.End = start.Add(dur)
			}
		}
		if out.End.IsZero() {
			out.End = start
		}
	}

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	loc := out.Start.Location()
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := loc
		if tz := propParam(p, "TZID"); tz != "" {
			if l, err := time.LoadLocation(tz); err == nil {
				exLoc = l
			}
		}
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := ParseTime(part, exLoc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		ridLoc := loc
		if tz := propParam(rid, "TZID"); tz != "" {
			if l, err := time.LoadLocation(tz); err == nil {
				ridLoc = l
			}
		}
		if t, err := ParseTime(rid.Value, ridLoc); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// ParseTime parses an iCalendar DATE or DATE-TIME value. Floating values
// are read in loc; a trailing Z forces UTC.
func ParseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// ParseDuration handles the RFC 5545 DURATION subset used by real feeds:
// an optional sign, then weeks, days, hours, minutes and seconds
// (e.g. "PT1H30M", "P1D", "-PT15M").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(strings.ToUpper(v))
	neg := false
	switch {
	case strings.HasPrefix(v, "-"):
		neg, v = true, v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") {
		return 0, errors.New("duration must start with P")
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, errors.New("malformed duration")
		}
		num = ""
		switch {
		case r == 'W' && !inTime:
			total += time.Duration(n) * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, errors.New("malformed duration")
		}
	}
	if num != "" {
		return 0, errors.New("malformed duration")
	}
	if neg {
		total = -total
	}
	return total, nil
}
