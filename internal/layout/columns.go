package layout

import "weekgrid/internal/model"

// PositionedEvent is a CalendarEvent placed in a day's column grid. It is an
// immutable value; only assignColumns constructs one.
type PositionedEvent struct {
	event        model.CalendarEvent
	start        int
	end          int
	column       int
	totalColumns int
}

func newPositionedEvent(s span, column, total int) PositionedEvent {
	return PositionedEvent{
		event:        s.event,
		start:        s.start,
		end:          s.end,
		column:       column,
		totalColumns: total,
	}
}

// Event returns the underlying event as supplied by the source.
func (p PositionedEvent) Event() model.CalendarEvent { return p.event }

// Column is the zero-based column among concurrently overlapping events.
func (p PositionedEvent) Column() int { return p.column }

// TotalColumns is the column count of the event's whole overlap cluster.
func (p PositionedEvent) TotalColumns() int { return p.totalColumns }

// StartMinutes is the start in minutes since midnight.
func (p PositionedEvent) StartMinutes() int { return p.start }

// EndMinutes is the effective end in minutes since midnight, after the
// duration and one-hour defaults were applied.
func (p PositionedEvent) EndMinutes() int { return p.end }

// assignColumns lays out one day's events. spans must already be sorted by
// start (see bucketDay).
//
// Columns are assigned greedily in order: each event takes the column one
// past the highest column held by an earlier event it overlaps, or column 0
// when it overlaps none. The result is order-dependent and not always the
// narrowest possible layout; existing renders rely on exactly this shape.
//
// TotalColumns is then 1 + the highest column within the event's connected
// overlap cluster. Because the input is sorted and every span has positive
// length, a cluster ends exactly where an event starts at or after the
// furthest end seen so far.
func assignColumns(spans []span) []PositionedEvent {
	n := len(spans)
	if n == 0 {
		return nil
	}

	columns := make([]int, n)
	for i := range spans {
		c := 0
		for j := 0; j < i; j++ {
			if spans[j].overlaps(spans[i]) {
				c = max(c, columns[j]+1)
			}
		}
		columns[i] = c
	}

	totals := make([]int, n)
	clusterStart := 0
	maxEnd := spans[0].end
	maxCol := columns[0]
	closeCluster := func(endExclusive int) {
		for k := clusterStart; k < endExclusive; k++ {
			totals[k] = maxCol + 1
		}
	}
	for i := 1; i < n; i++ {
		if spans[i].start >= maxEnd {
			closeCluster(i)
			clusterStart = i
			maxEnd = spans[i].end
			maxCol = columns[i]
			continue
		}
		maxEnd = max(maxEnd, spans[i].end)
		maxCol = max(maxCol, columns[i])
	}
	closeCluster(n)

	out := make([]PositionedEvent, n)
	for i, s := range spans {
		out[i] = newPositionedEvent(s, columns[i], totals[i])
	}
	return out
}
