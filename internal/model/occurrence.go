package model

import (
	"fmt"
	"time"

	"weekgrid/internal/timeutil"
)

// maxSplitDays bounds how many day rows one occurrence may produce.
const maxSplitDays = 31

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization). Every calendar
// source produces these; Events turns them into display rows.
type Occurrence struct {
	CalendarID string // calendar source ID
	UID        string // iCalendar UID or provider event ID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string
	Attendees   []string
	Color       string
	Source      string

	AllDay bool

	// Start / End are in the configured display timezone. For all-day
	// occurrences only their calendar dates matter; End is exclusive.
	Start time.Time
	End   time.Time
}

// ID is the stable identifier of the instance.
func (o Occurrence) ID() string {
	if o.InstanceKey == "" {
		return o.CalendarID + "/" + o.UID
	}
	return o.CalendarID + "/" + o.UID + "@" + o.InstanceKey
}

// Events converts the occurrence into one CalendarEvent per local day it
// touches. All-day occurrences become untimed rows. A timed occurrence that
// crosses midnight is cut at each day boundary, with "24:00" closing every
// day but the last.
func (o Occurrence) Events(loc *time.Location) []CalendarEvent {
	if loc == nil {
		loc = time.Local
	}
	base := CalendarEvent{
		ID:          o.ID(),
		CalendarID:  o.CalendarID,
		Title:       o.Summary,
		Location:    o.Location,
		Description: o.Description,
		Color:       o.Color,
		Source:      o.Source,
	}
	if len(o.Attendees) > 0 {
		base.Attendees = append([]string(nil), o.Attendees...)
	}

	if o.AllDay {
		return o.allDayEvents(base)
	}

	start, end := o.Start.In(loc), o.End.In(loc)
	if !end.After(start) {
		e := base
		e.Date = timeutil.DateKey(start)
		e.Time = timeutil.ClockOf(start)
		return []CalendarEvent{e}
	}

	var out []CalendarEvent
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for i := 0; i < maxSplitDays && day.Before(end); i++ {
		next := day.AddDate(0, 0, 1)
		from, to := start, end
		if from.Before(day) {
			from = day
		}
		e := base
		if i > 0 {
			e.ID = fmt.Sprintf("%s#%d", base.ID, i)
		}
		e.Date = timeutil.DateKey(day)
		e.Time = timeutil.ClockOf(from)
		if to.Before(next) {
			e.EndTime = timeutil.ClockOf(to)
		} else {
			e.EndTime = "24:00"
		}
		out = append(out, e)
		day = next
	}
	return out
}

func (o Occurrence) allDayEvents(base CalendarEvent) []CalendarEvent {
	// Dates are read in the occurrence's own zone so that a floating
	// DATE value never shifts by a day.
	first := time.Date(o.Start.Year(), o.Start.Month(), o.Start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(o.End.Year(), o.End.Month(), o.End.Day(), 0, 0, 0, 0, time.UTC)
	if !last.After(first) {
		last = first.AddDate(0, 0, 1)
	}

	var out []CalendarEvent
	for i, d := 0, first; i < maxSplitDays && d.Before(last); i, d = i+1, d.AddDate(0, 0, 1) {
		e := base
		if i > 0 {
			e.ID = fmt.Sprintf("%s#%d", base.ID, i)
		}
		e.Date = timeutil.DateKey(d)
		out = append(out, e)
	}
	return out
}
