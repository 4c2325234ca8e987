package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"weekgrid/internal/caldav"
	"weekgrid/internal/config"
	"weekgrid/internal/google"
)

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List, toggle and discover calendars.",
		Action: func(c *cli.Context) error {
			env, err := openEnv(c)
			if err != nil {
				return err
			}
			defer env.Close()

			toggles, err := env.store.EffectiveToggles(c.Context, env.cfg.CalendarList())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tSELECTED\tPLACEHOLDER")
			for _, cal := range env.cfg.CalendarList() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", cal.ID, cal.Name, cal.Kind, toggles[cal.ID], cal.Placeholder)
			}
			return tw.Flush()
		},
		Subcommands: []*cli.Command{
			{
				Name:      "toggle",
				Usage:     "Show or hide a calendar (flips it unless --selected is given).",
				ArgsUsage: "<calendar-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "selected", Usage: "true or false"},
				},
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return usageErr(c, "calendar id is required")
					}
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()
					if _, ok := env.cfg.Calendar(id); !ok {
						return fmt.Errorf("unknown calendar %q", id)
					}

					toggles, err := env.store.EffectiveToggles(c.Context, env.cfg.CalendarList())
					if err != nil {
						return err
					}
					selected := !toggles[id]
					if v := c.String("selected"); v != "" {
						if selected, err = strconv.ParseBool(v); err != nil {
							return usageErr(c, "invalid --selected %q", v)
						}
					}
					if err := env.store.SetSelected(c.Context, id, selected); err != nil {
						return err
					}
					fmt.Printf("%s selected=%t\n", id, selected)
					return nil
				},
			},
			{
				Name:      "discover",
				Usage:     "List the remote collections of a CalDAV or Google calendar.",
				ArgsUsage: "<calendar-id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return usageErr(c, "calendar id is required")
					}
					env, err := openEnv(c)
					if err != nil {
						return err
					}
					defer env.Close()
					cal, ok := env.cfg.Calendar(id)
					if !ok {
						return fmt.Errorf("unknown calendar %q", id)
					}

					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					switch cal.Kind {
					case config.KindCalDAV:
						client, err := caldav.New(caldav.Config{
							ID: cal.ID, URL: cal.URL, Username: cal.Username, Password: cal.Password,
						}, nil, env.loc)
						if err != nil {
							return err
						}
						cols, err := client.Discover(c.Context)
						if err != nil {
							return err
						}
						fmt.Fprintln(tw, "PATH\tNAME\tDESCRIPTION")
						for _, col := range cols {
							fmt.Fprintf(tw, "%s\t%s\t%s\n", col.Path, col.Name, col.Description)
						}
					case config.KindGoogle:
						client, err := google.New(c.Context, google.Config{
							ID:           cal.ID,
							Account:      cal.Account,
							ClientID:     env.cfg.Google.ClientID,
							ClientSecret: env.cfg.Google.ClientSecret,
							TokenDir:     env.cfg.Google.TokenDir,
						}, env.loc)
						if err != nil {
							return err
						}
						cals, err := client.Calendars(c.Context)
						if err != nil {
							return err
						}
						fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tSELECTED")
						for _, gc := range cals {
							fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", gc.ID, gc.Name, gc.Color, gc.Selected)
						}
					default:
						return fmt.Errorf("calendar %q is %s; discovery needs caldav or google", id, cal.Kind)
					}
					return tw.Flush()
				},
			},
		},
	}
}
