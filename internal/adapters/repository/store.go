// Package repository defines the contest store contract and its backends.
package repository

import (
	"context"
	"time"

	"github.com/okian/riichi/internal/domain/model"
)

// Store provides read/write access to contests, sessions, players and
// recorded games.
//
// Reads never cache: every call reflects the current state of the backend.
// Returned values are copies and may be modified by the caller.
type Store interface {
	// Contests lists every contest without its teams.
	Contests(ctx context.Context) ([]model.Contest, error)
	// Contest returns a contest with its teams by id or friendly id.
	// Returns ErrNotFound when neither matches.
	Contest(ctx context.Context, ref string) (model.Contest, error)
	// ContestByMajsoulID returns the contest games with the given upstream id belong to.
	ContestByMajsoulID(ctx context.Context, majsoulID int64) (model.Contest, error)

	// Sessions returns the contest's sessions ordered by ScheduledTime ascending.
	Sessions(ctx context.Context, contestID string) ([]model.Session, error)
	// Session returns a single session. Returns ErrNotFound when unknown.
	Session(ctx context.Context, id string) (model.Session, error)

	// GamesInWindow returns the contest's games whose EndTime falls in w.
	GamesInWindow(ctx context.Context, contestID string, w model.Window) ([]model.GameResult, error)
	// ContestGames returns every game of the contest ordered by end time.
	ContestGames(ctx context.Context, contestID string) ([]model.GameResult, error)
	// Games lists games matching f. With f.Last set the newest f.Last games
	// are returned newest first; otherwise games are ordered by end time.
	Games(ctx context.Context, f model.GameFilter) ([]model.GameResult, error)
	// IsGameRecorded reports whether a game with the upstream id exists.
	IsGameRecorded(ctx context.Context, majsoulID string) (bool, error)

	// Roster returns the contest's teams and the players listed on them.
	Roster(ctx context.Context, contestID string) (model.Roster, error)
	// Players returns the directory entries for ids. Unknown ids are omitted.
	Players(ctx context.Context, ids []string) ([]model.Player, error)

	// RecordGame stores a validated game. Returns ErrDuplicateGame when a
	// game with the same upstream id was already recorded.
	RecordGame(ctx context.Context, g model.GameResult) (model.GameResult, error)
	SaveContest(ctx context.Context, c model.Contest) (model.Contest, error)
	SaveSession(ctx context.Context, s model.Session) (model.Session, error)
	SavePlayer(ctx context.Context, p model.Player) (model.Player, error)
	// UpdateSession moves a session. Returns ErrNotFound when unknown.
	UpdateSession(ctx context.Context, id string, scheduled time.Time) (model.Session, error)
	// UpdateTeam applies the non-nil fields of patch. Returns ErrNotFound when unknown.
	UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (model.Team, error)

	Close() error
}
