package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/internal/fixtures"
	"github.com/okian/riichi/internal/replay"
	"github.com/okian/riichi/pkg/logger"
)

// withService runs fn against a service over the configured store and
// closes the store afterwards.
func (c *cli) withService(ctx context.Context, fn func(*service.Service) error) (err error) {
	svc, err := c.newService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, svc.Stop(context.WithoutCancel(ctx)))
	}()
	return fn(svc)
}

func (c *cli) standingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "standings <contest>",
		Short: "Print the standings timeline as JSON lines, one session per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *service.Service) error {
				enc := json.NewEncoder(c.out)
				for rec, err := range svc.Standings(cmd.Context(), args[0]) {
					if err != nil {
						return err
					}
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (c *cli) leaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard <contest>",
		Short: "Print the ranked player leaderboard as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *service.Service) error {
				rows, err := svc.Leaderboard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			})
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load contests, rosters, sessions and games from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fixtures.LoadFile(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *service.Service) error {
				sum, err := fixtures.Apply(cmd.Context(), svc.Store(), f)
				if err != nil {
					return err
				}
				c.log.Info(cmd.Context(), "fixture loaded",
					logger.String("file", args[0]),
					logger.Int("contests", sum.Contests),
					logger.Int("games", sum.Games),
				)
				return json.NewEncoder(c.out).Encode(sum)
			})
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	league := fixtures.DefaultLeague()
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Seed a synthetic league",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := fixtures.Generate(league)
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *service.Service) error {
				sum, err := fixtures.Apply(cmd.Context(), svc.Store(), f)
				if err != nil {
					return err
				}
				return json.NewEncoder(c.out).Encode(struct {
					ContestID string `json:"contestId"`
					fixtures.Summary
				}{ContestID: f.Contests[0].ID, Summary: sum})
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&league.Name, "name", league.Name, "contest name")
	fl.IntVar(&league.Teams, "teams", league.Teams, "number of teams")
	fl.IntVar(&league.PlayersPerTeam, "players", league.PlayersPerTeam, "players per team")
	fl.IntVar(&league.Sessions, "sessions", league.Sessions, "number of sessions")
	fl.IntVar(&league.GamesPerSession, "games", league.GamesPerSession, "games per session")
	fl.Uint64Var(&league.Seed, "seed", league.Seed, "random seed for seating and scores")
	return cmd
}

func (c *cli) replayCmd() *cobra.Command {
	var cfg replay.Config
	cmd := &cobra.Command{
		Use:   "replay <file.yaml>",
		Short: "Post a fixture's games to a running API and verify the standings it serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := fixtures.LoadFile(args[0])
			if err != nil {
				return err
			}
			stats, err := replay.Run(cmd.Context(), cfg, f)
			if encErr := json.NewEncoder(c.out).Encode(stats); encErr != nil {
				return errors.Join(err, encErr)
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the API")
	fl.StringVar(&cfg.Token, "token", os.Getenv("RIICHI_TOKEN"), "bearer token for game submission")
	fl.IntVar(&cfg.Workers, "workers", 8, "concurrent submitters")
	fl.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "per request timeout")
	fl.DurationVar(&cfg.Settle, "settle", 30*time.Second, "how long to wait for standings to match")
	return cmd
}
