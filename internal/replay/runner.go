package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/internal/fixtures"
	"github.com/okian/riichi/pkg/logger"
)

// Run submits every game of f to the service at cfg.BaseURL and waits for
// each contest's served standings to match the locally computed ones.
//
// The service must already hold the fixture's contests, rosters and
// sessions; only games travel over the API.
func Run(ctx context.Context, cfg Config, f *fixtures.File) (stats Stats, err error) {
	cfg = cfg.withDefaults()
	log := logger.Named("replay")
	stats.Contests = len(f.Contests)
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("workers", cfg.Workers),
		logger.Duration("settle", cfg.Settle),
	)

	if err = checkIDs(f); err != nil {
		return stats, err
	}

	c := newClient(cfg)
	if err = c.checkHealth(ctx); err != nil {
		return stats, err
	}

	want, err := expectedStandings(ctx, f)
	if err != nil {
		return stats, fmt.Errorf("compute expected standings: %w", err)
	}

	var games []model.GameResult
	for _, fc := range f.Contests {
		for _, g := range fc.Games {
			g.ContestID = fc.ID
			if g.ContestMajsoulID == 0 {
				g.ContestMajsoulID = fc.MajsoulID
			}
			games = append(games, g)
		}
	}
	if err := submitGames(ctx, c, cfg.Workers, games, &stats); err != nil {
		return stats, fmt.Errorf("submit games: %w", err)
	}
	log.Info(ctx, "games submitted",
		logger.Int64("queued", stats.Queued),
		logger.Int64("duplicates", stats.Duplicates),
		logger.Int64("failed", stats.Failed),
	)

	for _, fc := range f.Contests {
		if err := awaitStandings(ctx, c, fc.ID, want[fc.ID], cfg.Settle); err != nil {
			return stats, fmt.Errorf("contest %q: %w", fc.ID, err)
		}
		stats.Verified++
		log.Info(ctx, "standings verified", logger.String("contest", fc.ID), logger.Int("sessions", len(want[fc.ID])))
	}
	return stats, nil
}
