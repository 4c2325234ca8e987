// Package layout turns a flat list of calendar events into the geometry of a
// weekly time grid: which events are visible, which day they belong to,
// which column they take when they overlap, and where their box sits inside
// the display window.
//
// Everything here is a pure function of (events, toggles, week, window).
// Nothing is cached between calls and input slices are never modified, so
// callers may share one event snapshot across goroutines.
package layout

import (
	"sync"
	"time"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
	"weekgrid/internal/timeutil"
)

// Engine bundles the layout settings. The zero value is not usable; build
// one with NewEngine or DefaultEngine.
type Engine struct {
	Window   Window
	Geometry GeometryOptions
	Filter   FilterOptions
}

// NewEngine validates the window (panicking on a non-positive span) and
// returns an Engine.
func NewEngine(w Window, g GeometryOptions, f FilterOptions) *Engine {
	w.mustValid()
	return &Engine{Window: w, Geometry: g, Filter: f}
}

// DefaultEngine uses the 06:00-24:00 window and stock geometry.
func DefaultEngine(pendingCalendarID string) *Engine {
	return NewEngine(DefaultWindow, DefaultGeometryOptions(), FilterOptions{PendingCalendarID: pendingCalendarID})
}

// Box is a positioned event with its projected geometry.
type Box struct {
	Event    PositionedEvent
	Geometry Geometry
}

// DayLayout is the render data of one day column.
type DayLayout struct {
	Date time.Time
	Key  string
	// Boxes are ordered by start time, ties in input order.
	Boxes []Box
	// Untimed holds the day's all-day / untimed events.
	Untimed []model.CalendarEvent
	// Outside holds the day's timed events that start outside the window.
	Outside []model.CalendarEvent
}

// WeekLayout is the render data of a whole week.
type WeekLayout struct {
	Week   Week
	Window Window
	Days   [DaysPerWeek]DayLayout
}

// WeekDays returns the seven dates of the week.
func (e *Engine) WeekDays(w Week) [DaysPerWeek]time.Time {
	return w.Days()
}

// EventsForDay filters events by toggles, keeps the ones timed inside the
// window on day, and assigns their columns.
func (e *Engine) EventsForDay(day time.Time, events []model.CalendarEvent, toggles model.Toggles) []PositionedEvent {
	visible := Filter(events, toggles, e.Filter)
	b := bucketDay(timeutil.DateKey(day), visible, e.Window)
	return assignColumns(b.timed)
}

// Project computes the box of a positioned event in this engine's window.
func (e *Engine) Project(p PositionedEvent) Geometry {
	return Project(p, e.Window, e.Geometry)
}

// LayoutWeek lays out all seven days. Days are independent, so each one is
// computed on its own goroutine over the shared, read-only filtered slice.
func (e *Engine) LayoutWeek(w Week, events []model.CalendarEvent, toggles model.Toggles) WeekLayout {
	visible := Filter(events, toggles, e.Filter)
	out := WeekLayout{Week: w, Window: e.Window}

	var wg sync.WaitGroup
	for i, day := range w.Days() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Days[i] = e.layoutDay(day, visible)
		}()
	}
	wg.Wait()

	appLog.Debug("week laid out",
		"week", w.Key(),
		"input_events", len(events),
		"visible_events", len(visible),
	)
	return out
}

func (e *Engine) layoutDay(day time.Time, visible []model.CalendarEvent) DayLayout {
	key := timeutil.DateKey(day)
	b := bucketDay(key, visible, e.Window)

	positioned := assignColumns(b.timed)
	boxes := make([]Box, 0, len(positioned))
	for _, p := range positioned {
		boxes = append(boxes, Box{Event: p, Geometry: e.Project(p)})
	}

	return DayLayout{
		Date:    day,
		Key:     key,
		Boxes:   boxes,
		Untimed: b.untimed,
		Outside: b.outside,
	}
}
