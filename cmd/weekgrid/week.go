package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"weekgrid/internal/layout"
	"weekgrid/internal/timeutil"
)

func weekCommand() *cli.Command {
	return &cli.Command{
		Name:  "week",
		Usage: "Print the laid-out week: columns, times and box geometry per day.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "any day of the week (YYYY-MM-DD); default today"},
			&cli.StringFlag{Name: "nav", Usage: "today, next or prev, applied after --date"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"},
		},
		Action: func(c *cli.Context) error {
			env, err := openEnv(c)
			if err != nil {
				return err
			}
			defer env.Close()

			now := time.Now().In(env.loc)
			w := layout.WeekOf(now, env.cfg.FirstWeekday())
			if d := c.String("date"); d != "" {
				t, err := timeutil.ParseDateKey(d, env.loc)
				if err != nil {
					return usageErr(c, "invalid --date %q", d)
				}
				w = w.GoToDate(t)
			}
			switch c.String("nav") {
			case "":
			case "today":
				w = w.Today(now)
			case "next":
				w = w.Next()
			case "prev":
				w = w.Prev()
			default:
				return usageErr(c, "invalid --nav %q", c.String("nav"))
			}

			ctx := c.Context
			events, err := env.refresher(ctx, nil).Events(ctx, w.Start, w.End())
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}
			toggles, err := env.store.EffectiveToggles(ctx, env.cfg.CalendarList())
			if err != nil {
				return err
			}
			wl := env.engine.LayoutWeek(w, events, toggles)

			if c.Bool("json") {
				return writeWeekJSON(os.Stdout, wl)
			}
			return writeWeekTable(os.Stdout, wl, env.cfg.ShowAllDay)
		},
	}
}

type weekBoxJSON struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Calendar string          `json:"calendar_id,omitempty"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Column   int             `json:"column"`
	Columns  int             `json:"total_columns"`
	Geometry layout.Geometry `json:"geometry"`
}

type weekDayJSON struct {
	Date    string        `json:"date"`
	Boxes   []weekBoxJSON `json:"boxes"`
	Untimed []string      `json:"untimed,omitempty"`
}

func writeWeekJSON(out io.Writer, wl layout.WeekLayout) error {
	days := make([]weekDayJSON, 0, len(wl.Days))
	for _, d := range wl.Days {
		day := weekDayJSON{Date: d.Key, Boxes: []weekBoxJSON{}}
		for _, b := range d.Boxes {
			ev := b.Event.Event()
			day.Boxes = append(day.Boxes, weekBoxJSON{
				ID:       ev.ID,
				Title:    ev.Title,
				Calendar: ev.CalendarID,
				Start:    timeutil.MinutesToTime(b.Event.StartMinutes()),
				End:      timeutil.MinutesToTime(b.Event.EndMinutes()),
				Column:   b.Event.Column(),
				Columns:  b.Event.TotalColumns(),
				Geometry: b.Geometry,
			})
		}
		for _, e := range d.Untimed {
			day.Untimed = append(day.Untimed, e.Title)
		}
		days = append(days, day)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"week_start": wl.Week.Key(),
		"window":     wl.Window.String(),
		"days":       days,
	})
}

func writeWeekTable(out io.Writer, wl layout.WeekLayout, showAllDay bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s  (week of %s, window %s)\n", wl.Week.Label(), wl.Week.Key(), wl.Window)
	for _, d := range wl.Days {
		fmt.Fprintf(tw, "\n%s %s\n", d.Date.Format("Mon"), d.Key)
		if showAllDay {
			for _, e := range d.Untimed {
				fmt.Fprintf(tw, "  all-day\t\t%s\t%s\n", e.Title, e.CalendarID)
			}
		}
		for _, b := range d.Boxes {
			ev := b.Event.Event()
			fmt.Fprintf(tw, "  %s-%s\t[%d/%d]\t%s\t%s\ttop=%.1f%% h=%.1f%%\n",
				timeutil.MinutesToTime(b.Event.StartMinutes()),
				timeutil.MinutesToTime(b.Event.EndMinutes()),
				b.Event.Column()+1, b.Event.TotalColumns(),
				ev.Title, ev.CalendarID,
				b.Geometry.TopPercent, b.Geometry.HeightPercent,
			)
		}
		for _, e := range d.Outside {
			fmt.Fprintf(tw, "  %s\t(outside)\t%s\t%s\n", e.Time, e.Title, e.CalendarID)
		}
	}
	return tw.Flush()
}
