package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/edelkas/inne-sub000/app"
	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the CLE server",
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				ctx, stop := app.WithShutdownSignals(ctx)
				defer stop()
				return a.Run(ctx)
			})
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "read the mappack directories into the database",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "update", Usage: "re-read mappacks already in the database"},
			&cli.BoolFlag{Name: "all", Usage: "read every version instead of only the newest"},
			&cli.BoolFlag{Name: "hard", Usage: "recreate highscoreables instead of checking them"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				report, err := a.Modules.MappackModule.MappackService.Seed(ctx, mappackservice.SeedOptions{
					Update:   c.Bool("update"),
					All:      c.Bool("all"),
					Hard:     c.Bool("hard"),
					Progress: newBarProgress(c.App.ErrWriter),
				})
				if err != nil {
					return err
				}
				return printSeedReport(c.App.Writer, report)
			})
		},
	}
}

func printSeedReport(w io.Writer, report *mappackservice.SeedReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Mappack\tVersion\tFile errors\tMap errors\tNames\tTiles\tObjects\tHashes")
	for _, v := range report.Versions {
		hashes := "-"
		if v.Hashes != nil {
			hashes = formatHashReport(v.Hashes)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			v.Code, v.Version, v.FileErrors, v.MapErrors, v.NameChanges, v.TileChanges, v.ObjChanges, hashes)
	}
	return tw.Flush()
}

func formatHashReport(r *mappackservice.HashReport) string {
	parts := make([]string, 0, len(npp.Kinds))
	for _, k := range npp.Kinds {
		parts = append(parts, fmt.Sprintf("%s %d/%d", k, r.Computed[k], r.Computed[k]+r.Missing[k]))
	}
	return strings.Join(parts, ", ")
}

func updateHashesCommand() *cli.Command {
	return &cli.Command{
		Name:  "update-hashes",
		Usage: "recompute the stored map hashes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mappack", Usage: "only this mappack code"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				packs, err := selectMappacks(ctx, a, c.String("mappack"))
				if err != nil {
					return err
				}
				progress := newBarProgress(c.App.ErrWriter)
				progress.Start("Updating hashes", len(packs))
				reports := make([]*mappackservice.HashReport, len(packs))
				for i, p := range packs {
					reports[i], err = a.Modules.MappackModule.MappackService.UpdateHashes(ctx, p.ID)
					if err != nil {
						progress.Finish()
						return fmt.Errorf("update hashes of %s: %w", p.Code, err)
					}
					progress.Increment()
				}
				progress.Finish()

				for i, p := range packs {
					fmt.Fprintf(c.App.Writer, "%s: %s\n", p.Code, formatHashReport(reports[i]))
				}
				return nil
			})
		},
	}
}

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:  "digest",
		Usage: "write the mappack digest file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "digest path, defaults to mappacks.digest"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				path := c.String("output")
				if path == "" {
					path = a.Config.Mappacks.Digest
				}
				if err := a.Modules.MappackModule.MappackService.WriteDigest(ctx, path); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Digest written to %s\n", path)
				return nil
			})
		},
	}
}

func goldCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "gold-check",
		Usage: "list level scores whose gold count is inconsistent",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mappack", Usage: "only this mappack code"},
			&cli.Int64Flag{Name: "min-id", Usage: "skip scores with a lower ID"},
			&cli.BoolFlag{Name: "strict", Usage: "only scores in the top 20 of either board"},
			&cli.StringFlag{Name: "xlsx", Usage: "also export the report to this spreadsheet"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				filter := leaderboarddb.GoldFilter{MinID: c.Int64("min-id"), Strict: c.Bool("strict")}
				if code := c.String("mappack"); code != "" {
					pack, err := a.Modules.MappackModule.MappackService.GetMappack(ctx, code)
					if err != nil {
						return err
					}
					filter.MappackID = pack.ID
				}

				boards := a.Modules.LeaderboardModule.LeaderboardService
				report, err := boards.GoldCheck(ctx, filter)
				if err != nil {
					return err
				}
				if err := printGoldReport(c.App.Writer, report); err != nil {
					return err
				}

				path := c.String("xlsx")
				if path == "" {
					return nil
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := boards.ExportGoldCheck(ctx, report, f); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
}

func printGoldReport(w io.Writer, report *leaderboardservice.GoldReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(leaderboardservice.GoldReportHeader, "\t"))
	for _, row := range report.Rows {
		fmt.Fprintln(tw, strings.Join(row.Cells(), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d scores failed the gold check\n", len(report.Rows), report.Checked)
	return err
}

func patchCommand() *cli.Command {
	return &cli.Command{
		Name:      "patch",
		Usage:     "change the highscore of a stored run",
		ArgsUsage: "<score id> <seconds>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.ShowSubcommandHelp(c)
			}
			id, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid score id: %w", err)
			}
			seconds, err := strconv.ParseFloat(c.Args().Get(1), 64)
			if err != nil {
				return fmt.Errorf("invalid score: %w", err)
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				res, err := a.Modules.ScoreModule.ScoreService.PatchScore(ctx, scoreservice.PatchRequest{ScoreID: id, Seconds: seconds})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Patched %d on %s: %.3f -> %.3f (gold %d)\n",
					res.ScoreID, res.Name, float64(npp.HSDisplay(res.OldHS))/1000, float64(npp.HSDisplay(res.NewHS))/1000, res.Gold)
				return nil
			})
		},
	}
}

func wipeCommand() *cli.Command {
	return &cli.Command{
		Name:      "wipe",
		Usage:     "delete a stored run and promote the player's next best",
		ArgsUsage: "<score id>",
		Action: func(c *cli.Context) error {
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid score id: %w", err)
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				res, err := a.Modules.ScoreModule.ScoreService.WipeScore(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Wiped %d on %s (promoted hs %d, sr %d)\n", res.ScoreID, res.Name, res.PromotedHS, res.PromotedSR)
				return nil
			})
		},
	}
}

func rerankCommand() *cli.Command {
	return &cli.Command{
		Name:      "rerank",
		Usage:     "recompute both boards of a highscoreable",
		ArgsUsage: "<level|episode|story> <id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.ShowSubcommandHelp(c)
			}
			kind, err := npp.ParseKind(c.Args().Get(0))
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				report, err := a.Modules.LeaderboardModule.LeaderboardService.Rerank(ctx, kind, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s %d: %d hs, %d sr ranked, %d obsolete deleted, %d completions\n",
					kind, id, report.Ranked[npp.Highscore], report.Ranked[npp.Speedrun], report.Deleted, report.Completions)
				return nil
			})
		},
	}
}

func completionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "completions",
		Usage: "recount the completions of every highscoreable",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mappack", Usage: "only this mappack code"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, a *app.App) error {
				var mappackID int64
				if code := c.String("mappack"); code != "" {
					pack, err := a.Modules.MappackModule.MappackService.GetMappack(ctx, code)
					if err != nil {
						return err
					}
					mappackID = pack.ID
				}
				n, err := a.Modules.LeaderboardModule.LeaderboardService.RecountCompletions(ctx, mappackID)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Recounted %d highscoreables\n", n)
				return nil
			})
		},
	}
}

func blacklistCommand() *cli.Command {
	return &cli.Command{
		Name:      "blacklist",
		Usage:     "flag a player so their submissions are rejected",
		ArgsUsage: "<metanet id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "remove the flag instead"},
		},
		Action: func(c *cli.Context) error {
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid metanet id: %w", err)
			}
			return withApp(c, func(ctx context.Context, a *app.App) error {
				return a.Modules.ScoreModule.ScoreService.SetBlacklisted(ctx, id, !c.Bool("clear"))
			})
		},
	}
}

// selectMappacks returns one mappack by code, or all of them.
func selectMappacks(ctx context.Context, a *app.App, code string) ([]mappackdomain.Pack, error) {
	service := a.Modules.MappackModule.MappackService
	if code == "" {
		return service.ListMappacks(ctx)
	}
	pack, err := service.GetMappack(ctx, code)
	if err != nil {
		return nil, err
	}
	return []mappackdomain.Pack{*pack}, nil
}
