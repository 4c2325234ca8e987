package layout

// OffscreenTop is the TopPercent reported for events that start outside the
// display window. Renderers should not draw them in the grid.
const OffscreenTop = -100.0

// GeometryOptions tunes the projection.
type GeometryOptions struct {
	// MinHeightPercent keeps very short events tall enough to click.
	MinHeightPercent float64 `json:"min_height_percent"`
	// GutterPercent is the horizontal gap between side-by-side columns.
	GutterPercent float64 `json:"gutter_percent"`
}

// DefaultGeometryOptions matches the stock stylesheet.
func DefaultGeometryOptions() GeometryOptions {
	return GeometryOptions{
		MinHeightPercent: 2.5,
		GutterPercent:    0.5,
	}
}

// Geometry is an event box in percentages of the day column.
type Geometry struct {
	TopPercent    float64 `json:"top"`
	HeightPercent float64 `json:"height"`
	LeftPercent   float64 `json:"left"`
	WidthPercent  float64 `json:"width"`
	Visible       bool    `json:"visible"`
}

// Project maps a positioned event onto the window. An event whose top falls
// outside [0, 100) is reported off-screen rather than clamped, so it never
// lands in a wrong slot.
func Project(p PositionedEvent, w Window, o GeometryOptions) Geometry {
	return projectInterval(p.start, p.end, p.column, p.totalColumns, w, o)
}

func projectInterval(start, end, column, total int, w Window, o GeometryOptions) Geometry {
	spanMinutes := float64(w.Span())

	top := float64(start-w.Start) / spanMinutes * 100
	if top < 0 || top >= 100 {
		return Geometry{TopPercent: OffscreenTop}
	}

	height := float64(end-start) / spanMinutes * 100
	height = min(max(height, o.MinHeightPercent), 100)

	if total < 1 {
		total = 1
	}
	colWidth := 100 / float64(total)
	gutter := o.GutterPercent
	if gutter < 0 || gutter >= colWidth {
		gutter = 0
	}

	return Geometry{
		TopPercent:    top,
		HeightPercent: height,
		LeftPercent:   float64(column)*colWidth + gutter/2,
		WidthPercent:  colWidth - gutter,
		Visible:       true,
	}
}
