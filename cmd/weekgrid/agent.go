package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"weekgrid/internal/model"
)

func agentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Manage scheduling-agent holds and events.",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a hold (pending, in the pending calendar unless --calendar is set).",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Required: true, Usage: "YYYY-MM-DD"},
					&cli.StringFlag{Name: "time", Usage: "HH:MM; empty for an all-day hold"},
					&cli.StringFlag{Name: "end", Usage: "HH:MM end time"},
					&cli.IntFlag{Name: "duration", Usage: "minutes, used when --end is empty"},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "calendar"},
					&cli.StringFlag{Name: "session", Usage: "groups the alternative holds of one request"},
					&cli.StringFlag{Name: "location"},
					&cli.StringSliceFlag{Name: "attendee"},
				},
				Action: func(c *cli.Context) error {
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()

					calendarID := c.String("calendar")
					if calendarID == "" {
						calendarID = env.cfg.PendingCalendarID
					}
					ev, err := env.store.CreateAgentEvent(c.Context, model.CalendarEvent{
						CalendarID: calendarID,
						SessionID:  c.String("session"),
						Date:       c.String("date"),
						Time:       c.String("time"),
						EndTime:    c.String("end"),
						Duration:   c.Int("duration"),
						Title:      c.String("title"),
						Location:   c.String("location"),
						Attendees:  c.StringSlice("attendee"),
					})
					if err != nil {
						return err
					}
					return printJSON(ev)
				},
			},
			{
				Name:  "list",
				Usage: "List agent events by date range or session.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "first date (inclusive)"},
					&cli.StringFlag{Name: "to", Usage: "last date (exclusive)"},
					&cli.StringFlag{Name: "session"},
				},
				Action: func(c *cli.Context) error {
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()

					var events []model.CalendarEvent
					if s := c.String("session"); s != "" {
						events, err = env.store.ListSession(c.Context, s)
					} else {
						events, err = env.store.ListAgentEvents(c.Context, c.String("from"), c.String("to"))
					}
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tDATE\tTIME\tSTATUS\tCALENDAR\tSESSION\tTITLE")
					for _, e := range events {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Time, e.Status, e.CalendarID, e.SessionID, e.Title)
					}
					return tw.Flush()
				},
			},
			{
				Name:      "status",
				Usage:     "Set the status of an agent event (pending, confirmed, cancelled).",
				ArgsUsage: "<event-id> <status>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "calendar", Usage: "move the event to this calendar"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return usageErr(c, "expected <event-id> <status>")
					}
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()
					id, status := c.Args().Get(0), model.Status(c.Args().Get(1))
					var ev model.CalendarEvent
					if status == model.StatusConfirmed {
						ev, err = env.confirm(c.Context, id, c.String("calendar"))
					} else {
						ev, err = env.store.UpdateStatus(c.Context, id, status, c.String("calendar"))
					}
					if err != nil {
						return err
					}
					return printJSON(ev)
				},
			},
			{
				Name:      "confirm",
				Usage:     "Confirm one hold and cancel the other holds of its session.",
				ArgsUsage: "<event-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "calendar", Usage: "calendar the confirmed event moves to (default: confirmed_calendar_id for holds)"},
				},
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return usageErr(c, "event id is required")
					}
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()
					ev, err := env.confirm(c.Context, id, c.String("calendar"))
					if err != nil {
						return err
					}
					return printJSON(ev)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an agent event.",
				ArgsUsage: "<event-id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return usageErr(c, "event id is required")
					}
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()
					return env.store.DeleteAgentEvent(c.Context, id)
				},
			},
		},
	}
}

// confirm moves a hold out of its placeholder calendar while confirming it.
func (e *appEnv) confirm(ctx context.Context, id, requested string) (model.CalendarEvent, error) {
	current, err := e.store.GetAgentEvent(ctx, id)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	target, err := e.cfg.ConfirmCalendar(current.CalendarID, requested)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return e.store.ConfirmSession(ctx, id, target)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
