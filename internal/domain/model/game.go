package model

import (
	"sort"
	"time"
)

// SeatCount is the number of participants in every recorded game.
const SeatCount = 4

// FinalScore is the result of one seat at game end.
type FinalScore struct {
	Score int64 `json:"score" yaml:"score"`
	Uma   int64 `json:"uma" yaml:"uma"`
}

// GameResult is an immutable record of one completed game. Players and
// FinalScore are parallel: FinalScore[i] belongs to Players[i].
type GameResult struct {
	ID               string       `json:"_id" yaml:"id"`
	MajsoulID        string       `json:"majsoulId" yaml:"majsoul_id"`
	ContestID        string       `json:"contestId" yaml:"contest_id"`
	ContestMajsoulID int64        `json:"contestMajsoulId" yaml:"contest_majsoul_id"`
	StartTime        time.Time    `json:"start_time" yaml:"start_time"`
	EndTime          time.Time    `json:"end_time" yaml:"end_time"`
	Players          []PlayerRef  `json:"players" yaml:"players"`
	FinalScore       []FinalScore `json:"finalScore" yaml:"final_score"`

	// SessionID is only populated by game listings filtered by session.
	SessionID string `json:"sessionId,omitempty" yaml:"-"`
}

// Validate rejects games without exactly four seats of players and scores.
func (g GameResult) Validate() error {
	if len(g.Players) != SeatCount || len(g.FinalScore) != SeatCount {
		return &MalformedGameError{GameID: g.key(), Players: len(g.Players), Scores: len(g.FinalScore)}
	}
	for _, p := range g.Players {
		if p.ID == "" {
			return &MalformedGameError{GameID: g.key(), Players: len(g.Players), Scores: len(g.FinalScore), Reason: "empty player id"}
		}
	}
	if g.EndTime.IsZero() {
		return &MalformedGameError{GameID: g.key(), Players: len(g.Players), Scores: len(g.FinalScore), Reason: "missing end time"}
	}
	return nil
}

// TotalUma sums uma over all seats.
func (g GameResult) TotalUma() int64 {
	var total int64
	for _, s := range g.FinalScore {
		total += s.Uma
	}
	return total
}

func (g GameResult) key() string {
	if g.ID != "" {
		return g.ID
	}
	return g.MajsoulID
}

// SortChronologically orders games by end time, then by identity, in place.
func SortChronologically(games []GameResult) {
	sort.SliceStable(games, func(i, j int) bool {
		if !games[i].EndTime.Equal(games[j].EndTime) {
			return games[i].EndTime.Before(games[j].EndTime)
		}
		return games[i].ID < games[j].ID
	})
}

// GameFilter selects games for listings.
type GameFilter struct {
	ContestIDs []string
	Windows    []Window
	PlayerID   string
	// Last keeps only the most recent N games when positive.
	Last int
}

// Match reports whether g passes every criterion except Last.
func (f GameFilter) Match(g GameResult) bool {
	if len(f.ContestIDs) > 0 && !contains(f.ContestIDs, g.ContestID) {
		return false
	}
	if len(f.Windows) > 0 {
		in := false
		for _, w := range f.Windows {
			if w.Contains(g.EndTime) {
				in = true
				break
			}
		}
		if !in {
			return false
		}
	}
	if f.PlayerID != "" {
		found := false
		for _, p := range g.Players {
			if p.ID == f.PlayerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
