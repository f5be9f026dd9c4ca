// Package leaderboard ranks the players of a contest by capped cumulative uma.
package leaderboard

import (
	"sort"

	"github.com/okian/riichi/internal/domain/model"
)

// DefaultGameCap is the number of games per player that count toward score.
const DefaultGameCap = 5

// Option applies a configuration option to an aggregation.
type Option func(*aggregator)

// WithGameCap sets how many of a player's games count toward their score.
// Non-positive values are ignored.
func WithGameCap(n int) Option {
	return func(a *aggregator) {
		if n > 0 {
			a.cap = n
		}
	}
}

type aggregator struct {
	cap int
}

// tally is a player's running totals, kept in first-appearance order.
type tally struct {
	id     string
	played int
	score  int64
}

// PlayerIDs returns the distinct participants of games in first-appearance order.
func PlayerIDs(games []model.GameResult) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, g := range games {
		for _, p := range g.Players {
			if _, ok := seen[p.ID]; !ok {
				seen[p.ID] = struct{}{}
				ids = append(ids, p.ID)
			}
		}
	}
	return ids
}

// Aggregate computes every participant's leaderboard row from the full game
// set of a contest and returns them ranked (see Rank).
//
// Games are first ordered by end time, then id, so that the cap selects a
// player's chronologically first games whatever order the store returned.
// GamesPlayed counts every game; TourneyScore sums uma over only the first
// cap games. Every participant must be present in directory, otherwise a
// *model.ResolutionError of kind "player" is returned. Malformed games abort
// the aggregation.
func Aggregate(games []model.GameResult, directory map[string]model.Player, opts ...Option) ([]model.ContestPlayerRanking, error) {
	a := aggregator{cap: DefaultGameCap}
	for _, opt := range opts {
		opt(&a)
	}

	ordered := append([]model.GameResult(nil), games...)
	model.SortChronologically(ordered)

	index := make(map[string]*tally)
	var order []*tally
	for _, g := range ordered {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		for seat, p := range g.Players {
			t, ok := index[p.ID]
			if !ok {
				if _, known := directory[p.ID]; !known {
					return nil, &model.ResolutionError{Kind: "player", GameID: g.ID, PlayerID: p.ID}
				}
				t = &tally{id: p.ID}
				index[p.ID] = t
				order = append(order, t)
			}
			t.played++
			if t.played <= a.cap {
				t.score += g.FinalScore[seat].Uma
			}
		}
	}

	rows := make([]model.ContestPlayerRanking, len(order))
	for i, t := range order {
		rows[i] = model.ContestPlayerRanking{
			Player:       directory[t.id],
			GamesPlayed:  t.played,
			TourneyScore: t.score,
		}
		// the directory entry may omit the id it is keyed by
		rows[i].ID = t.id
	}
	return Rank(rows), nil
}

// Rank sorts rows by descending TourneyScore and assigns TourneyRank as the
// 0-based position. Equal scores keep their input order. rows is sorted in
// place and returned.
func Rank(rows []model.ContestPlayerRanking) []model.ContestPlayerRanking {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TourneyScore > rows[j].TourneyScore
	})
	for i := range rows {
		rows[i].TourneyRank = i
	}
	return rows
}
