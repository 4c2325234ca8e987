package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"weekgrid/internal/capture"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/refresh"
	"weekgrid/internal/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI/API and refresh calendars on the configured schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
			&cli.BoolFlag{Name: "capture", Usage: "re-render the PNG preview after every refresh"},
		},
		Action: func(c *cli.Context) error {
			env, err := openEnv(c)
			if err != nil {
				return err
			}
			defer env.Close()
			if l := c.String("listen"); l != "" {
				env.cfg.Listen = l
			}

			appLog.Info("weekgrid starting", "version", version, "listen", env.cfg.Listen, "timezone", env.loc.String())

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			// The hook runs on every refresh, scheduled ones included, so
			// cached weeks never outlive the snapshot they were built from.
			var srv *web.Server
			withCapture := c.Bool("capture")
			ref := env.refresher(ctx, func(ctx context.Context, _ *refresh.Snapshot) {
				if srv != nil {
					srv.Invalidate()
				}
				if withCapture {
					if err := capture.CalendarPNG(ctx, env.captureOptions(capture.PageURL(env.cfg.Listen, ""))); err != nil {
						appLog.Error("preview capture failed", err)
					}
				}
			})

			srv = web.NewServer(web.Options{
				Config:   env.cfg,
				Engine:   env.engine,
				Store:    env.store,
				Events:   ref,
				Location: env.loc,
			})

			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.Serve(ctx) }()

			refreshDone := make(chan error, 1)
			go func() { refreshDone <- ref.Start(ctx) }()

			// Whichever side stops first takes the other one down.
			var serr, rerr error
			select {
			case serr = <-serveErr:
				cancel()
				rerr = <-refreshDone
			case rerr = <-refreshDone:
				cancel()
				serr = <-serveErr
			}
			appLog.Info("weekgrid exiting")
			return errors.Join(serr, rerr)
		},
	}
}

func (e *appEnv) captureOptions(url string) capture.Options {
	opts := capture.Options{URL: url, OutputPath: e.cfg.PreviewPath()}
	if e.cfg.BasicAuth != nil {
		opts.Username = e.cfg.BasicAuth.Username
		opts.Password = e.cfg.BasicAuth.Password
	}
	return opts
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Render the week grid to a PNG with headless Chromium.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "any day of the week to render (YYYY-MM-DD); default this week"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "PNG path (default <data_dir>/preview.png)"},
			&cli.StringFlag{Name: "url", Usage: "capture a running server's /calendar page instead of an in-process one"},
			&cli.IntFlag{Name: "width", Value: capture.DefaultWidth},
			&cli.IntFlag{Name: "height", Value: capture.DefaultHeight},
			&cli.BoolFlag{Name: "ink", Usage: "reduce the PNG to black, red and white for e-paper panels"},
		},
		Action: func(c *cli.Context) error {
			env, err := openEnv(c)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			url := c.String("url")
			if url == "" {
				// Serve the page from this process on a loopback port.
				ln, err := net.Listen("tcp", "127.0.0.1:0")
				if err != nil {
					return err
				}
				srv := &http.Server{
					Handler: web.NewServer(web.Options{
						Config:   env.cfg,
						Engine:   env.engine,
						Store:    env.store,
						Events:   env.refresher(ctx, nil),
						Location: env.loc,
					}).Handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						appLog.Error("capture server failed", err)
					}
				}()
				defer srv.Close()
				url = capture.PageURL(ln.Addr().String(), c.String("date"))
			}

			opts := env.captureOptions(url)
			opts.Width = c.Int("width")
			opts.Height = c.Int("height")
			opts.Ink = c.Bool("ink")
			if out := c.String("output"); out != "" {
				opts.OutputPath = out
			}
			return capture.CalendarPNG(ctx, opts)
		},
	}
}
