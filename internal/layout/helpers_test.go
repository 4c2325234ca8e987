package layout

import (
	"math"
	"testing"

	"weekgrid/internal/model"
)

const testDay = "2024-06-10"

// timed builds an event on testDay. end may be empty.
func timed(id, start, end string) model.CalendarEvent {
	return model.CalendarEvent{ID: id, Date: testDay, Time: start, EndTime: end, Title: id}
}

// layoutDay runs bucketing and column assignment with a full-day window.
func layoutDay(t *testing.T, events ...model.CalendarEvent) []PositionedEvent {
	t.Helper()
	b := bucketDay(testDay, events, Window{Start: 0, End: 1440})
	return assignColumns(b.timed)
}

func byID(ps []PositionedEvent) map[string]PositionedEvent {
	out := make(map[string]PositionedEvent, len(ps))
	for _, p := range ps {
		out[p.Event().ID] = p
	}
	return out
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
