package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"weekgrid/internal/config"
	"weekgrid/internal/layout"
	appLog "weekgrid/internal/log"
	"weekgrid/internal/refresh"
	"weekgrid/internal/source"
	"weekgrid/internal/store"
)

const version = "0.3.0"

func main() {
	// Load .env first; a missing file is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "weekgrid",
		Usage:   "Weekly calendar grid over ICS, CalDAV, Google and scheduling-agent calendars.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./weekgrid.yaml",
				EnvVars: []string{"WEEKGRID_CONFIG"},
				Usage:   "path to the YAML (or .toml) config file; created with defaults if missing",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides the config file)",
			},
		},
		Before: func(c *cli.Context) error {
			if lvl := c.String("log-level"); lvl != "" {
				appLog.SetLevel(appLog.ParseLevel(lvl))
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			weekCommand(),
			calendarsCommand(),
			agentCommand(),
			captureCommand(),
			googleAuthCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("weekgrid failed", err)
		os.Exit(1)
	}
}

// appEnv is the state shared by every command.
type appEnv struct {
	cfg    *config.Config
	loc    *time.Location
	store  *store.Store
	engine *layout.Engine
}

// openEnv loads and validates the configuration and opens the store.
func openEnv(c *cli.Context) (*appEnv, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if !c.IsSet("log-level") {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	engine, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	appLog.Debug("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"window", engine.Window.String(),
		"refresh", cfg.RefreshCron,
		"calendars", len(cfg.Calendars),
		"data_dir", cfg.DataDir,
	)
	return &appEnv{cfg: cfg, loc: loc, store: st, engine: engine}, nil
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		appLog.Warn("closing store failed", "error", err.Error())
	}
}

// refresher wires every configured calendar into a Refresher. Calendars
// that cannot be set up are logged by source.Build and left out.
func (e *appEnv) refresher(ctx context.Context, onRefresh func(context.Context, *refresh.Snapshot)) *refresh.Refresher {
	providers, _ := source.Build(ctx, e.cfg, e.loc, nil)
	return refresh.New(providers, refresh.Options{
		Schedule:  e.cfg.RefreshCron,
		Location:  e.loc,
		WeekStart: e.cfg.FirstWeekday(),
		Live:      []source.Provider{e.store.Source()},
		OnRefresh: onRefresh,
	})
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

var errUsage = errors.New("usage error")

func usageErr(c *cli.Context, format string, args ...any) error {
	_ = cli.ShowSubcommandHelp(c)
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
