// Package standings turns completed games into a per-session, cumulative
// team standings timeline.
//
// Sessions partition time into half-open windows
// [session[i].ScheduledTime, session[i+1].ScheduledTime); the last window is
// unbounded. Each window's games are summed per team, and a running total
// is carried forward from the first session to the last.
package standings

import (
	"context"
	"iter"

	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/pkg/logger"
)

// GameSource supplies the completed games of a contest that ended inside a window.
type GameSource interface {
	GamesInWindow(ctx context.Context, contestID string, w model.Window) ([]model.GameResult, error)
}

// Windows returns one window per session. sessions must already be sorted
// by ScheduledTime ascending; the order is not checked.
func Windows(sessions []model.Session) []model.Window {
	windows := make([]model.Window, len(sessions))
	for i, s := range sessions {
		windows[i] = model.Window{Start: s.ScheduledTime}
		if i+1 < len(sessions) {
			end := sessions[i+1].ScheduledTime
			windows[i].End = &end
		}
	}
	return windows
}

// teamIndex maps player id to team id. When a player is listed on more than
// one team the first team in roster order wins.
type teamIndex map[string]string

func indexTeams(teams []model.Team) teamIndex {
	idx := make(teamIndex)
	for _, t := range teams {
		for _, p := range t.Players {
			if _, ok := idx[p.ID]; !ok {
				idx[p.ID] = t.ID
			}
		}
	}
	return idx
}

// Summarize sums each team's uma over games. Every seat must resolve to a
// team; the first seat that does not aborts with a *model.ResolutionError.
func Summarize(games []model.GameResult, teams []model.Team) (model.SessionSummary, error) {
	return indexTeams(teams).summarize(games)
}

func (idx teamIndex) summarize(games []model.GameResult) (model.SessionSummary, error) {
	totals := make(model.SessionSummary)
	for _, g := range games {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		for seat, p := range g.Players {
			teamID, ok := idx[p.ID]
			if !ok {
				return nil, &model.ResolutionError{Kind: "team", GameID: g.ID, PlayerID: p.ID}
			}
			totals[teamID] += g.FinalScore[seat].Uma
		}
	}
	return totals, nil
}

// Accumulate returns prev plus totals over the union of their keys. Neither
// input is modified.
func Accumulate(prev, totals model.SessionSummary) model.SessionSummary {
	out := prev.Clone()
	for team, uma := range totals {
		out[team] += uma
	}
	return out
}

// Engine computes standings against a GameSource. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	games  GameSource
	logger logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine reading games from src.
func New(src GameSource, opts ...Option) *Engine {
	e := &Engine{games: src, logger: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SessionSummary fetches the contest's games in w and sums them per team.
func (e *Engine) SessionSummary(ctx context.Context, contest model.Contest, w model.Window) (model.SessionSummary, error) {
	return e.summary(ctx, contest.ID, indexTeams(contest.Teams), w)
}

func (e *Engine) summary(ctx context.Context, contestID string, idx teamIndex, w model.Window) (model.SessionSummary, error) {
	games, err := e.games.GamesInWindow(ctx, contestID, w)
	if err != nil {
		return nil, model.WrapStore("games_in_window", err)
	}
	return idx.summarize(games)
}

// Standings returns the lazy standings timeline of contest, one record per
// session in the order given. sessions must be sorted by ScheduledTime.
//
// Each step fetches that session's games only when the consumer pulls it,
// so stopping early issues no further store calls. The first error is
// yielded once and ends the sequence; records already yielded stay valid.
// Every call re-reads the store.
func (e *Engine) Standings(ctx context.Context, contest model.Contest, sessions []model.Session) iter.Seq2[model.StandingsRecord, error] {
	return func(yield func(model.StandingsRecord, error) bool) {
		idx := indexTeams(contest.Teams)
		windows := Windows(sessions)
		aggregate := model.SessionSummary{}

		for i, s := range sessions {
			if err := ctx.Err(); err != nil {
				yield(model.StandingsRecord{}, err)
				return
			}

			totals, err := e.summary(ctx, contest.ID, idx, windows[i])
			if err != nil {
				e.logger.Warn(ctx, "standings aborted",
					logger.String("contest", contest.ID),
					logger.String("session", s.ID),
					logger.Error(err),
				)
				yield(model.StandingsRecord{}, err)
				return
			}

			aggregate = Accumulate(aggregate, totals)
			e.logger.Debug(ctx, "session summarized",
				logger.String("contest", contest.ID),
				logger.String("session", s.ID),
				logger.Int("teams", len(totals)),
			)

			if !yield(model.StandingsRecord{Session: s, Totals: totals, AggregateTotals: aggregate}, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice. On error it returns the records emitted
// before the failure together with the error.
func Collect(seq iter.Seq2[model.StandingsRecord, error]) ([]model.StandingsRecord, error) {
	var out []model.StandingsRecord
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
