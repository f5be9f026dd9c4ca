package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/okian/riichi/internal/domain/model"
)

//go:embed sql/schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const contestColumns = `id, COALESCE(friendly_id, 0), COALESCE(majsoul_id, 0), name, tag`

func scanContest(row pgx.Row) (model.Contest, error) {
	var c model.Contest
	err := row.Scan(&c.ID, &c.FriendlyID, &c.MajsoulID, &c.Name, &c.Tag)
	return c, err
}

// Contests lists contests ordered by friendly id.
func (s *PostgresStore) Contests(ctx context.Context) ([]model.Contest, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY friendly_id NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Contest, error) {
		return scanContest(row)
	})
}

// Contest looks a contest up by id or friendly id and loads its teams.
func (s *PostgresStore) Contest(ctx context.Context, ref string) (model.Contest, error) {
	var friendly *int64
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		friendly = &n
	}
	return s.contestWhere(ctx, `id = $1 OR friendly_id = $2`, ref, friendly)
}

// ContestByMajsoulID looks a contest up by its upstream id.
func (s *PostgresStore) ContestByMajsoulID(ctx context.Context, majsoulID int64) (model.Contest, error) {
	return s.contestWhere(ctx, `majsoul_id = $1`, majsoulID)
}

func (s *PostgresStore) contestWhere(ctx context.Context, where string, args ...any) (model.Contest, error) {
	c, err := scanContest(s.pool.QueryRow(ctx, `SELECT `+contestColumns+` FROM contests WHERE `+where+` LIMIT 1`, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contest{}, ErrNotFound
	}
	if err != nil {
		return model.Contest{}, fmt.Errorf("failed to get contest: %w", err)
	}
	if c.Teams, err = s.teams(ctx, c.ID); err != nil {
		return model.Contest{}, err
	}
	return c, nil
}

const teamsQuery = `
	SELECT t.id, t.name, t.image, t.anthem, t.color,
	       COALESCE(array_agg(tp.player_id ORDER BY tp.position) FILTER (WHERE tp.player_id IS NOT NULL), '{}')
	FROM teams t
	LEFT JOIN team_players tp ON tp.team_id = t.id
	WHERE %s
	GROUP BY t.id
	ORDER BY t.position`

func scanTeam(row pgx.Row) (model.Team, error) {
	var (
		t   model.Team
		ids []string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Image, &t.Anthem, &t.Color, &ids); err != nil {
		return model.Team{}, err
	}
	t.Players = make([]model.PlayerRef, len(ids))
	for i, id := range ids {
		t.Players[i] = model.PlayerRef{ID: id}
	}
	return t, nil
}

func (s *PostgresStore) teams(ctx context.Context, contestID string) ([]model.Team, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(teamsQuery, `t.contest_id = $1`), contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Team, error) {
		return scanTeam(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan teams: %w", err)
	}
	return teams, nil
}

func collectSessions(rows pgx.Rows) ([]model.Session, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Session, error) {
		var sess model.Session
		err := row.Scan(&sess.ID, &sess.ContestID, &sess.ScheduledTime)
		return sess, err
	})
}

// Sessions returns the contest's sessions by scheduled time.
func (s *PostgresStore) Sessions(ctx context.Context, contestID string) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, contest_id, scheduled_time FROM sessions
		WHERE contest_id = $1
		ORDER BY scheduled_time, id`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return sessions, nil
}

// Session returns one session by id.
func (s *PostgresStore) Session(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx, `SELECT id, contest_id, scheduled_time FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.ContestID, &sess.ScheduledTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

const gameColumns = `id, COALESCE(majsoul_id, ''), contest_id, contest_majsoul_id, start_time, end_time, players, final_score`

func (s *PostgresStore) queryGames(ctx context.Context, query string, args ...any) ([]model.GameResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GameResult, error) {
		var g model.GameResult
		err := row.Scan(&g.ID, &g.MajsoulID, &g.ContestID, &g.ContestMajsoulID,
			&g.StartTime, &g.EndTime, &g.Players, &g.FinalScore)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan games: %w", err)
	}
	return games, nil
}

// GamesInWindow selects the contest's games with start <= end_time < end.
func (s *PostgresStore) GamesInWindow(ctx context.Context, contestID string, w model.Window) ([]model.GameResult, error) {
	return s.queryGames(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE contest_id = $1 AND end_time >= $2 AND ($3::timestamptz IS NULL OR end_time < $3)
		ORDER BY end_time, id`, contestID, w.Start, w.End)
}

// ContestGames returns every game of the contest.
func (s *PostgresStore) ContestGames(ctx context.Context, contestID string) ([]model.GameResult, error) {
	return s.queryGames(ctx, `SELECT `+gameColumns+` FROM games WHERE contest_id = $1 ORDER BY end_time, id`, contestID)
}

// Games builds a filtered listing query from f.
func (s *PostgresStore) Games(ctx context.Context, f model.GameFilter) ([]model.GameResult, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(f.ContestIDs) > 0 {
		where = append(where, "contest_id = ANY("+arg(f.ContestIDs)+")")
	}
	if len(f.Windows) > 0 {
		var or []string
		for _, w := range f.Windows {
			clause := "end_time >= " + arg(w.Start)
			if w.End != nil {
				clause += " AND end_time < " + arg(*w.End)
			}
			or = append(or, "("+clause+")")
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}
	if f.PlayerID != "" {
		filter, err := json.Marshal([]model.PlayerRef{{ID: f.PlayerID}})
		if err != nil {
			return nil, fmt.Errorf("failed to encode player filter: %w", err)
		}
		where = append(where, "players @> "+arg(string(filter))+"::jsonb")
	}

	query := `SELECT ` + gameColumns + ` FROM games`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Last > 0 {
		query += " ORDER BY end_time DESC, id DESC LIMIT " + arg(f.Last)
	} else {
		query += " ORDER BY end_time, id"
	}
	return s.queryGames(ctx, query, args...)
}

// IsGameRecorded checks the unique upstream id.
func (s *PostgresStore) IsGameRecorded(ctx context.Context, majsoulID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE majsoul_id = $1)`, majsoulID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check game: %w", err)
	}
	return exists, nil
}

// Roster loads teams and players concurrently.
func (s *PostgresStore) Roster(ctx context.Context, contestID string) (model.Roster, error) {
	var roster model.Roster
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		teams, err := s.teams(gctx, contestID)
		roster.Teams = teams
		return err
	})
	g.Go(func() error {
		rows, err := s.pool.Query(gctx, `
			SELECT DISTINCT p.id, p.nickname, p.display_name, COALESCE(p.majsoul_id, 0)
			FROM players p
			JOIN team_players tp ON tp.player_id = p.id
			JOIN teams t ON t.id = tp.team_id
			WHERE t.contest_id = $1
			ORDER BY p.id`, contestID)
		if err != nil {
			return fmt.Errorf("failed to list roster players: %w", err)
		}
		roster.Players, err = collectPlayers(rows)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.Roster{}, err
	}
	return roster, nil
}

func collectPlayers(rows pgx.Rows) ([]model.Player, error) {
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Player, error) {
		var p model.Player
		err := row.Scan(&p.ID, &p.Nickname, &p.DisplayName, &p.MajsoulID)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan players: %w", err)
	}
	return players, nil
}

// Players returns directory entries for ids.
func (s *PostgresStore) Players(ctx context.Context, ids []string) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nickname, display_name, COALESCE(majsoul_id, 0)
		FROM players WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return collectPlayers(rows)
}

// RecordGame inserts a validated game.
func (s *PostgresStore) RecordGame(ctx context.Context, g model.GameResult) (model.GameResult, error) {
	if err := g.Validate(); err != nil {
		return model.GameResult{}, err
	}
	if g.ID == "" {
		g.ID = newID()
	}
	players, err := json.Marshal(g.Players)
	if err != nil {
		return model.GameResult{}, fmt.Errorf("failed to encode players: %w", err)
	}
	scores, err := json.Marshal(g.FinalScore)
	if err != nil {
		return model.GameResult{}, fmt.Errorf("failed to encode scores: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO games (id, majsoul_id, contest_id, contest_majsoul_id, start_time, end_time, players, final_score)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7::jsonb, $8::jsonb)`,
		g.ID, g.MajsoulID, g.ContestID, g.ContestMajsoulID, g.StartTime, g.EndTime, string(players), string(scores))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.GameResult{}, ErrDuplicateGame
		}
		return model.GameResult{}, fmt.Errorf("failed to record game: %w", err)
	}
	g.SessionID = ""
	return g, nil
}

// SaveContest upserts a contest and replaces its teams in one transaction.
func (s *PostgresStore) SaveContest(ctx context.Context, c model.Contest) (model.Contest, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	c = cloneContest(c)
	for i := range c.Teams {
		if c.Teams[i].ID == "" {
			c.Teams[i].ID = newID()
		}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO contests (id, friendly_id, majsoul_id, name, tag)
			VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				friendly_id = EXCLUDED.friendly_id, majsoul_id = EXCLUDED.majsoul_id,
				name = EXCLUDED.name, tag = EXCLUDED.tag`,
			c.ID, c.FriendlyID, c.MajsoulID, c.Name, c.Tag); err != nil {
			return fmt.Errorf("failed to upsert contest: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM teams WHERE contest_id = $1`, c.ID); err != nil {
			return fmt.Errorf("failed to clear teams: %w", err)
		}
		for i, t := range c.Teams {
			if _, err := tx.Exec(ctx, `
				INSERT INTO teams (id, contest_id, position, name, image, anthem, color)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				t.ID, c.ID, i, t.Name, t.Image, t.Anthem, t.Color); err != nil {
				return fmt.Errorf("failed to insert team %s: %w", t.ID, err)
			}
			for j, p := range t.Players {
				if _, err := tx.Exec(ctx, `
					INSERT INTO team_players (team_id, player_id, position) VALUES ($1, $2, $3)
					ON CONFLICT DO NOTHING`, t.ID, p.ID, j); err != nil {
					return fmt.Errorf("failed to insert team player: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.Contest{}, err
	}
	return c, nil
}

// SaveSession upserts a session.
func (s *PostgresStore) SaveSession(ctx context.Context, sess model.Session) (model.Session, error) {
	if sess.ID == "" {
		sess.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, contest_id, scheduled_time) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET contest_id = EXCLUDED.contest_id, scheduled_time = EXCLUDED.scheduled_time`,
		sess.ID, sess.ContestID, sess.ScheduledTime)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// SavePlayer upserts a directory entry.
func (s *PostgresStore) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO players (id, nickname, display_name, majsoul_id) VALUES ($1, $2, $3, NULLIF($4, 0))
		ON CONFLICT (id) DO UPDATE SET
			nickname = EXCLUDED.nickname, display_name = EXCLUDED.display_name, majsoul_id = EXCLUDED.majsoul_id`,
		p.ID, p.Nickname, p.DisplayName, p.MajsoulID)
	if err != nil {
		return model.Player{}, fmt.Errorf("failed to save player: %w", err)
	}
	return p, nil
}

// UpdateSession moves a session.
func (s *PostgresStore) UpdateSession(ctx context.Context, id string, scheduled time.Time) (model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx, `
		UPDATE sessions SET scheduled_time = $2 WHERE id = $1
		RETURNING id, contest_id, scheduled_time`, id, scheduled).
		Scan(&sess.ID, &sess.ContestID, &sess.ScheduledTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to update session: %w", err)
	}
	return sess, nil
}

// UpdateTeam applies the set fields of patch.
func (s *PostgresStore) UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (model.Team, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE teams SET image = COALESCE($2, image), anthem = COALESCE($3, anthem)
		WHERE id = $1`, id, patch.Image, patch.Anthem)
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Team{}, ErrNotFound
	}
	t, err := scanTeam(s.pool.QueryRow(ctx, fmt.Sprintf(teamsQuery, `t.id = $1`), id))
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to reload team: %w", err)
	}
	return t, nil
}
