package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/webitel/shardscope/config"
	"github.com/webitel/shardscope/internal/service"
)

const (
	ServiceName      = "shardscope"
	ServiceNamespace = "webitel"

	commandTimeout = 30 * time.Second
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Bot shard telemetry and guild locator",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Commands: []*cli.Command{
			serverCmd(),
			fleetCmd(),
			locateCmd(),
		},
	}
	cli.VersionPrinter = func(c *cli.Context) {
		_ = writeJSON(map[string]string{
			"version":         version,
			"commit":          commit,
			"commit_date":     commitDate,
			"branch":          branch,
			"build_timestamp": buildTimestamp,
		})
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the dashboard API, fleet poller and live stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

func fleetCmd() *cli.Command {
	return &cli.Command{
		Name:  "fleet",
		Usage: "Print the current fleet summary as JSON",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "shards",
				Usage: "Include the per-shard records",
			},
		},
		Action: func(c *cli.Context) error {
			return withClient(c.Context, func(ctx context.Context, fleet *service.FleetService, _ service.Locator) error {
				f, err := fleet.Fleet(ctx)
				if err != nil {
					return err
				}
				if c.Bool("shards") {
					return writeJSON(f)
				}
				return writeJSON(f.Summary)
			})
		},
	}
}

func locateCmd() *cli.Command {
	return &cli.Command{
		Name:      "locate",
		Usage:     "Find the shard hosting a guild",
		ArgsUsage: "<guild-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("locate expects exactly one guild id", 2)
			}
			return withClient(c.Context, func(ctx context.Context, _ *service.FleetService, locator service.Locator) error {
				res, err := locator.Locate(ctx, c.Args().First())
				if err != nil {
					return err
				}
				return writeJSON(res)
			})
		},
	}
}

func withClient(parent context.Context, fn func(ctx context.Context, fleet *service.FleetService, locator service.Locator) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	var (
		fleet   *service.FleetService
		locator service.Locator
	)
	app := NewClientApp(cfg, &fleet, &locator)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, fleet, locator)
	return errors.Join(runErr, app.Stop(context.Background()))
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
