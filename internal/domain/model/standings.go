package model

import "encoding/json"

// SessionSummary maps team id to the uma it earned in one session window.
// Teams without games in the window are absent rather than zero.
type SessionSummary map[string]int64

// Clone returns an independent copy of the summary.
func (s SessionSummary) Clone() SessionSummary {
	out := make(SessionSummary, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// StandingsRecord is one session of the standings timeline.
type StandingsRecord struct {
	Session
	Totals          SessionSummary `json:"totals"`
	AggregateTotals SessionSummary `json:"aggregateTotals"`
}

// MarshalJSON flattens the session fields next to the totals.
func (r StandingsRecord) MarshalJSON() ([]byte, error) {
	type flat struct {
		Session
		Totals          SessionSummary `json:"totals"`
		AggregateTotals SessionSummary `json:"aggregateTotals"`
	}
	totals, agg := r.Totals, r.AggregateTotals
	if totals == nil {
		totals = SessionSummary{}
	}
	if agg == nil {
		agg = SessionSummary{}
	}
	return json.Marshal(flat{Session: r.Session, Totals: totals, AggregateTotals: agg})
}

// ContestPlayerRanking is a player's row on the contest leaderboard.
type ContestPlayerRanking struct {
	Player
	GamesPlayed  int   `json:"gamesPlayed"`
	TourneyScore int64 `json:"tourneyScore"`
	TourneyRank  int   `json:"tourneyRank"`
}
