package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd)
	// an occurrence must intersect.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences within
// the configured range. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, including overrides moved into the range
//     from outside it
//   - STATUS:CANCELLED on either the series or one instance
//
// Timed occurrences are converted into the display timezone. Output is
// sorted by start, then UID, so repeated runs over the same feed agree.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var uids []string

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	all := make([]model.Occurrence, 0)
	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			all = append(all, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].UID < all[j].UID
	})
	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.Cancelled {
		return nil, false
	}
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		if o.Cancelled {
			return nil
		}
		ev, start, end = o, o.Start, o.End
	}
	if !inRange(start, end, cfg) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	if dur < 0 {
		dur = 0
	}

	// Widen the lower bound by the duration so an occurrence that started
	// before the range but is still running gets picked up.
	loc := ev.Start.Location()
	occTimes := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	used := make(map[int]bool)
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, loc)
			occEnd = occStart.AddDate(0, 0, int(dur.Hours()/24+0.5))
			if !occEnd.After(occStart) {
				occEnd = occStart.AddDate(0, 0, 1)
			}
		}

		baseEv, s, e := ev, occStart, occEnd
		if i, ok := overrideIndex(overrides, occStart); ok {
			used[i] = true
			o := overrides[i]
			if o.Cancelled {
				continue
			}
			baseEv, s, e = o, o.Start, o.End
		}
		if !inRange(s, e, cfg) {
			continue
		}
		out = append(out, makeOccurrence(baseEv, s, e, cfg.DisplayLocation))
	}

	// Overrides whose original slot fell outside the range can still be
	// moved into it.
	for i, o := range overrides {
		if used[i] || o.Cancelled || !inRange(o.Start, o.End, cfg) {
			continue
		}
		if len(set.Between(o.Recurrence.Add(-time.Second), o.Recurrence.Add(time.Second), true)) == 0 {
			continue
		}
		out = append(out, makeOccurrence(o, o.Start, o.End, cfg.DisplayLocation))
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	if i, ok := overrideIndex(overrides, start); ok {
		return overrides[i], true
	}
	return ParsedEvent{}, false
}

func overrideIndex(overrides []ParsedEvent, start time.Time) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(start) {
			return i, true
		}
		// All-day RECURRENCE-ID values carry no time of day.
		if ov.AllDay && sameDate(*ov.Recurrence, start) {
			return i, true
		}
	}
	return 0, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// makeOccurrence converts a (possibly overridden) ParsedEvent plus a concrete
// start/end into a model.Occurrence. Timed values are normalized into
// displayLoc; all-day values keep their floating dates.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	if !ev.AllDay {
		start = start.In(displayLoc)
		end = end.In(displayLoc)
	}

	occ := model.Occurrence{
		CalendarID:  ev.Source.ID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Attendees:   ev.Attendees,
		Color:       ev.Color,
		Source:      ev.Source.Kind,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
	switch {
	case ev.IsOverride && ev.Recurrence != nil:
		occ.InstanceKey = ev.Recurrence.UTC().Format("20060102T150405Z")
	case ev.RawRRule != "":
		occ.InstanceKey = start.UTC().Format("20060102T150405Z")
	}
	return occ
}

// inRange reports whether [start, end) intersects the configured range. A
// zero-length event counts when its start lies inside the range.
func inRange(start, end time.Time, cfg ExpandConfig) bool {
	if !end.After(start) {
		return !start.Before(cfg.RangeStart) && start.Before(cfg.RangeEnd)
	}
	return start.Before(cfg.RangeEnd) && end.After(cfg.RangeStart)
}
