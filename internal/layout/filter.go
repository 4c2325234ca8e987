package layout

import "weekgrid/internal/model"

// FilterOptions names the calendars that get special treatment.
type FilterOptions struct {
	// PendingCalendarID is the calendar holding the scheduling agent's
	// pending holds. It is always treated as a placeholder calendar.
	PendingCalendarID string

	// Placeholders lists further placeholder calendar IDs.
	Placeholders map[string]bool
}

func (o FilterOptions) isPlaceholder(calendarID string) bool {
	if calendarID == "" {
		return false
	}
	return calendarID == o.PendingCalendarID || o.Placeholders[calendarID]
}

// Filter returns the display set: the events visible under the given
// calendar toggles. Input order is preserved and events is not modified.
//
// Rules, in order:
//  1. a confirmed or cancelled event sitting in a placeholder calendar is
//     dropped, as is a pending placeholder whose session already has a
//     confirmed event;
//  2. untagged events are always shown;
//  3. anything else is shown iff its calendar is toggled on.
func Filter(events []model.CalendarEvent, toggles model.Toggles, opts FilterOptions) []model.CalendarEvent {
	return filterEvents(events, toggles, opts, false)
}

// ConflictSet is Filter with one rule relaxed: events in the pending agent
// calendar are kept even when that calendar is hidden, so new proposals do
// not double-book a hold the user cannot currently see.
func ConflictSet(events []model.CalendarEvent, toggles model.Toggles, opts FilterOptions) []model.CalendarEvent {
	return filterEvents(events, toggles, opts, true)
}

func filterEvents(events []model.CalendarEvent, toggles model.Toggles, opts FilterOptions, conflicts bool) []model.CalendarEvent {
	confirmedSessions := make(map[string]bool)
	for _, e := range events {
		if e.SessionID != "" && e.Status == model.StatusConfirmed {
			confirmedSessions[e.SessionID] = true
		}
	}

	out := make([]model.CalendarEvent, 0, len(events))
	for _, e := range events {
		if opts.isPlaceholder(e.CalendarID) {
			if e.Status.Graduated() {
				continue
			}
			if e.SessionID != "" && confirmedSessions[e.SessionID] {
				continue
			}
		}
		if conflicts && opts.PendingCalendarID != "" && e.CalendarID == opts.PendingCalendarID {
			out = append(out, e)
			continue
		}
		if e.CalendarID == "" || toggles[e.CalendarID] {
			out = append(out, e)
		}
	}
	return out
}
