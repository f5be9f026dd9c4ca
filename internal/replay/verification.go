package replay

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/okian/riichi/internal/adapters/repository"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/internal/domain/standings"
	"github.com/okian/riichi/internal/fixtures"
)

// checkIDs rejects fixtures whose contests, sessions or teams rely on ids
// generated by the store, since those cannot match the remote ones.
func checkIDs(f *fixtures.File) error {
	for _, c := range f.Contests {
		if c.ID == "" {
			return fmt.Errorf("%w: contest %q has no id", ErrFixture, c.Name)
		}
		for _, s := range c.Sessions {
			if s.ID == "" {
				return fmt.Errorf("%w: contest %q has a session without id", ErrFixture, c.ID)
			}
		}
		for _, t := range c.Teams {
			if t.ID == "" {
				return fmt.Errorf("%w: contest %q has a team without id", ErrFixture, c.ID)
			}
		}
	}
	return nil
}

// expectedStandings applies f to a scratch memory store and computes each
// contest's timeline, keyed by contest id.
func expectedStandings(ctx context.Context, f *fixtures.File) (map[string][]model.StandingsRecord, error) {
	store := repository.NewMemoryStore()
	if _, err := fixtures.Apply(ctx, store, f); err != nil {
		return nil, err
	}
	engine := standings.New(store)

	out := make(map[string][]model.StandingsRecord, len(f.Contests))
	for _, fc := range f.Contests {
		contest, err := store.Contest(ctx, fc.ID)
		if err != nil {
			return nil, fmt.Errorf("contest %q: %w", fc.ID, err)
		}
		sessions, err := store.Sessions(ctx, contest.ID)
		if err != nil {
			return nil, err
		}
		recs, err := standings.Collect(engine.Standings(ctx, contest, sessions))
		if err != nil {
			return nil, err
		}
		out[contest.ID] = recs
	}
	return out, nil
}

// compare reports the first difference between two timelines.
func compare(want, got []model.StandingsRecord) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: %d sessions, want %d", ErrMismatch, len(got), len(want))
	}
	for i := range want {
		if want[i].ID != got[i].ID {
			return fmt.Errorf("%w: session %d is %q, want %q", ErrMismatch, i, got[i].ID, want[i].ID)
		}
		if !maps.Equal(want[i].Totals, got[i].Totals) {
			return fmt.Errorf("%w: session %q totals %v, want %v", ErrMismatch, want[i].ID, got[i].Totals, want[i].Totals)
		}
		if !maps.Equal(want[i].AggregateTotals, got[i].AggregateTotals) {
			return fmt.Errorf("%w: session %q aggregate %v, want %v", ErrMismatch, want[i].ID, got[i].AggregateTotals, want[i].AggregateTotals)
		}
	}
	return nil
}

// awaitStandings polls the served timeline of contestID until it matches
// want or settle elapses. The last difference is returned on timeout.
func awaitStandings(ctx context.Context, c *client, contestID string, want []model.StandingsRecord, settle time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, settle)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last error
	for {
		var got []model.StandingsRecord
		err := c.getJSON(ctx, "/contests/"+contestID+"/sessions", &got)
		switch {
		case err == nil:
			if last = compare(want, got); last == nil {
				return nil
			}
		case ctx.Err() != nil && last != nil:
			return last
		default:
			last = err
		}

		select {
		case <-ctx.Done():
			return last
		case <-ticker.C:
		}
	}
}
