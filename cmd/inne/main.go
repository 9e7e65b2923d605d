package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/edelkas/inne-sub000/app"
	"github.com/edelkas/inne-sub000/config"
	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "inne",
		Usage: "custom leaderboard server for N++ mappacks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"INNE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			seedCommand(),
			updateHashesCommand(),
			digestCommand(),
			goldCheckCommand(),
			patchCommand(),
			wipeCommand(),
			rerankCommand(),
			completionsCommand(),
			blacklistCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withApp builds the application for a command and closes it afterwards.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := c.Context
	obs, err := observability.Init(ctx, config.ToObsConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	a, err := app.NewApp(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	return fn(ctx, a)
}
