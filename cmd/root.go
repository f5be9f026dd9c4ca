package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/riichi/internal/adapters/repository"
	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/internal/config"
	"github.com/okian/riichi/pkg/logger"
)

// cli carries what every subcommand needs once the root has loaded config.
type cli struct {
	out        io.Writer
	configFile string
	cfg        *config.Config
	log        logger.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:          "riichi",
		Short:        "Team league standings for riichi contests",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "path to a YAML config file (overrides RIICHI_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.serve(cmd.Context())
			},
		},
		c.standingsCmd(),
		c.leaderboardCmd(),
		c.seedCmd(),
		c.generateCmd(),
		c.replayCmd(),
	)
	return root
}

// setup loads configuration and initialises logging.
func (c *cli) setup(ctx context.Context) error {
	if c.configFile != "" {
		if err := os.Setenv("RIICHI_CONFIG", c.configFile); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// logs go to stderr so command output stays clean on stdout
	if err := logger.InitWithFormat(os.Stderr, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}
	c.log = logger.Get()
	return nil
}

// newService opens the configured store and builds a service over it.
func (c *cli) newService(ctx context.Context) (*service.Service, error) {
	store, err := repository.Open(ctx, repository.Config{
		Driver: c.cfg.Store.Driver,
		DSN:    c.cfg.Store.DSN,
		Path:   c.cfg.Store.Path,
	})
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithStore(store),
		service.WithLogger(logger.Named("service")),
		service.WithWorkerCount(c.cfg.WorkerCount),
		service.WithQueueSize(c.cfg.QueueSize),
		service.WithDedupeSize(c.cfg.DedupeSize),
		service.WithLeaderboardGameCap(c.cfg.LeaderboardGameCap),
		service.WithContestCacheTTL(c.cfg.ContestCacheTTL),
	), nil
}
