package fixtures

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/riichi/internal/domain/model"
)

// League shapes a synthetic contest.
type League struct {
	Name            string
	Teams           int
	PlayersPerTeam  int
	Sessions        int
	GamesPerSession int
	Start           time.Time
	SessionSpacing  time.Duration
	Seed            uint64
}

// DefaultLeague is an eight team league with a weekly session.
func DefaultLeague() League {
	return League{
		Name:            "Synthetic League",
		Teams:           8,
		PlayersPerTeam:  4,
		Sessions:        6,
		GamesPerSession: 8,
		Start:           time.Date(2024, 1, 6, 18, 0, 0, 0, time.UTC),
		SessionSpacing:  7 * 24 * time.Hour,
		Seed:            1,
	}
}

// umaSpread is the placement bonus by finishing position.
var umaSpread = [model.SeatCount]int64{15000, 5000, -5000, -15000}

// Generate builds a fixture for l. The same seed yields the same seating
// and scores; identities are fresh uuids on every call.
func Generate(l League) (*File, error) {
	if l.Teams < model.SeatCount || l.PlayersPerTeam < 1 || l.Sessions < 1 || l.GamesPerSession < 0 {
		return nil, fmt.Errorf("%w: need at least %d teams, a player per team and a session", ErrInvalidLeague, model.SeatCount)
	}
	rng := rand.New(rand.NewPCG(l.Seed, l.Seed^0x9e3779b97f4a7c15))

	f := &File{}
	c := Contest{Contest: model.Contest{
		ID:         uuid.NewString(),
		FriendlyID: int64(rng.IntN(900_000) + 100_000),
		MajsoulID:  int64(rng.IntN(900_000) + 100_000),
		Name:       l.Name,
	}}

	roster := make([][]string, l.Teams)
	for t := range l.Teams {
		team := model.Team{ID: uuid.NewString(), Name: fmt.Sprintf("Team %d", t+1)}
		for p := range l.PlayersPerTeam {
			player := model.Player{ID: uuid.NewString(), Nickname: fmt.Sprintf("player-%d-%d", t+1, p+1)}
			f.Players = append(f.Players, player)
			team.Players = append(team.Players, model.PlayerRef{ID: player.ID})
			roster[t] = append(roster[t], player.ID)
		}
		c.Teams = append(c.Teams, team)
	}

	for s := range l.Sessions {
		start := l.Start.Add(time.Duration(s) * l.SessionSpacing)
		c.Sessions = append(c.Sessions, model.Session{ID: uuid.NewString(), ScheduledTime: start})

		for g := range l.GamesPerSession {
			end := start.Add(time.Duration(g+1) * 45 * time.Minute)
			c.Games = append(c.Games, synthGame(rng, roster, c.MajsoulID, end))
		}
	}

	f.Contests = append(f.Contests, c)
	return f, nil
}

// synthGame seats one player from each of four distinct teams. Scores sum
// to the starting total and uma to zero.
func synthGame(rng *rand.Rand, roster [][]string, contestMajsoulID int64, end time.Time) model.GameResult {
	teams := rng.Perm(len(roster))[:model.SeatCount]
	order := rng.Perm(model.SeatCount)

	g := model.GameResult{
		ID:               uuid.NewString(),
		MajsoulID:        uuid.NewString(),
		ContestMajsoulID: contestMajsoulID,
		StartTime:        end.Add(-40 * time.Minute),
		EndTime:          end,
	}
	scores := placementScores(rng)
	for seat, t := range teams {
		members := roster[t]
		g.Players = append(g.Players, model.PlayerRef{ID: members[rng.IntN(len(members))]})
		place := order[seat]
		score := scores[place]
		g.FinalScore = append(g.FinalScore, model.FinalScore{
			Score: score,
			Uma:   score - 25000 + umaSpread[place],
		})
	}
	return g
}

// placementScores returns four descending scores summing to 100000 in
// multiples of 100.
func placementScores(rng *rand.Rand) [model.SeatCount]int64 {
	var out [model.SeatCount]int64
	remaining := int64(1000)
	for i := range model.SeatCount - 1 {
		// keep room for the seats still to be scored
		share := remaining / int64(model.SeatCount-i)
		delta := rng.Int64N(share/2+1) - share/4
		out[i] = share + delta
		remaining -= out[i]
	}
	out[model.SeatCount-1] = remaining
	for i := 1; i < model.SeatCount; i++ {
		for j := i; j > 0 && out[j] > out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	for i := range out {
		out[i] *= 100
	}
	return out
}
