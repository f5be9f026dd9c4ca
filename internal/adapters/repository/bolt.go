package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/asdine/storm"
	"github.com/asdine/storm/q"

	"github.com/okian/riichi/internal/domain/model"
)

// Bucket records. Indexed fields sit beside the payload so storm can match
// on them; times are indexed as Unix nanoseconds.

type boltContest struct {
	ID         string `storm:"id"`
	FriendlyID int64  `storm:"index"`
	MajsoulID  int64  `storm:"index"`
	Contest    model.Contest
}

// model restores the fields the JSON codec drops from the payload.
func (r boltContest) model() model.Contest {
	c := r.Contest
	c.MajsoulID = r.MajsoulID
	return c
}

type boltSession struct {
	ID        string `storm:"id"`
	ContestID string `storm:"index"`
	Scheduled int64  `storm:"index"`
	Session   model.Session
}

type boltPlayer struct {
	ID        string `storm:"id"`
	MajsoulID int64
	Player    model.Player
}

// model restores the upstream id the JSON codec drops from the payload.
func (r boltPlayer) model() model.Player {
	p := r.Player
	p.MajsoulID = r.MajsoulID
	return p
}

type boltGame struct {
	ID        string `storm:"id"`
	MajsoulID string `storm:"unique"`
	ContestID string `storm:"index"`
	EndTime   int64  `storm:"index"`
	Game      model.GameResult
}

// BoltStore is a Store kept in a single storm (bbolt) database file.
type BoltStore struct {
	db *storm.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// notFound maps storm's empty result to ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, storm.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// none treats storm's empty result as an empty list.
func none(err error) error {
	if errors.Is(err, storm.ErrNotFound) {
		return nil
	}
	return err
}

// Contests lists contests by friendly id.
func (s *BoltStore) Contests(ctx context.Context) ([]model.Contest, error) {
	var recs []boltContest
	if err := none(s.db.All(&recs)); err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].FriendlyID < recs[j].FriendlyID })

	out := make([]model.Contest, len(recs))
	for i, r := range recs {
		out[i] = r.Contest.Summary()
	}
	return out, nil
}

// Contest resolves ref as an id, then as a friendly id.
func (s *BoltStore) Contest(ctx context.Context, ref string) (model.Contest, error) {
	var rec boltContest
	err := s.db.One("ID", ref, &rec)
	if errors.Is(err, storm.ErrNotFound) {
		friendly, perr := strconv.ParseInt(ref, 10, 64)
		if perr != nil {
			return model.Contest{}, ErrNotFound
		}
		err = s.db.One("FriendlyID", friendly, &rec)
	}
	if err != nil {
		return model.Contest{}, notFound(err, "contest")
	}
	return rec.model(), nil
}

// ContestByMajsoulID resolves a contest by its upstream id.
func (s *BoltStore) ContestByMajsoulID(ctx context.Context, majsoulID int64) (model.Contest, error) {
	var rec boltContest
	if err := s.db.One("MajsoulID", majsoulID, &rec); err != nil {
		return model.Contest{}, notFound(err, "contest")
	}
	return rec.model(), nil
}

// Sessions returns the contest's sessions by scheduled time.
func (s *BoltStore) Sessions(ctx context.Context, contestID string) ([]model.Session, error) {
	var recs []boltSession
	if err := none(s.db.Find("ContestID", contestID, &recs)); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]model.Session, len(recs))
	for i, r := range recs {
		out[i] = r.Session
	}
	sortSessions(out)
	return out, nil
}

// Session returns one session.
func (s *BoltStore) Session(ctx context.Context, id string) (model.Session, error) {
	var rec boltSession
	if err := s.db.One("ID", id, &rec); err != nil {
		return model.Session{}, notFound(err, "session")
	}
	return rec.Session, nil
}

func (s *BoltStore) selectGames(matchers ...q.Matcher) ([]model.GameResult, error) {
	var recs []boltGame
	if err := none(s.db.Select(matchers...).Find(&recs)); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	out := make([]model.GameResult, len(recs))
	for i, r := range recs {
		out[i] = r.Game
	}
	model.SortChronologically(out)
	return out, nil
}

func windowMatcher(w model.Window) q.Matcher {
	m := q.Gte("EndTime", w.Start.UnixNano())
	if w.End == nil {
		return m
	}
	return q.And(m, q.Lt("EndTime", w.End.UnixNano()))
}

// GamesInWindow matches the contest's games on the indexed end time.
func (s *BoltStore) GamesInWindow(ctx context.Context, contestID string, w model.Window) ([]model.GameResult, error) {
	return s.selectGames(q.Eq("ContestID", contestID), windowMatcher(w))
}

// ContestGames returns the contest's games.
func (s *BoltStore) ContestGames(ctx context.Context, contestID string) ([]model.GameResult, error) {
	return s.selectGames(q.Eq("ContestID", contestID))
}

// Games filters by contest in storm and applies the remaining criteria in memory.
func (s *BoltStore) Games(ctx context.Context, f model.GameFilter) ([]model.GameResult, error) {
	var matchers []q.Matcher
	if len(f.ContestIDs) > 0 {
		or := make([]q.Matcher, len(f.ContestIDs))
		for i, id := range f.ContestIDs {
			or[i] = q.Eq("ContestID", id)
		}
		matchers = append(matchers, q.Or(or...))
	}
	if len(f.Windows) > 0 {
		or := make([]q.Matcher, len(f.Windows))
		for i, w := range f.Windows {
			or[i] = windowMatcher(w)
		}
		matchers = append(matchers, q.Or(or...))
	}

	games, err := s.selectGames(matchers...)
	if err != nil {
		return nil, err
	}
	out := games[:0]
	for _, g := range games {
		if f.Match(g) {
			out = append(out, g)
		}
	}
	return applyLast(out, f.Last), nil
}

// IsGameRecorded checks the unique upstream id index.
func (s *BoltStore) IsGameRecorded(ctx context.Context, majsoulID string) (bool, error) {
	var rec boltGame
	err := s.db.One("MajsoulID", majsoulID, &rec)
	if errors.Is(err, storm.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check game: %w", err)
	}
	return true, nil
}

// Roster returns the contest's teams and their players' directory entries.
func (s *BoltStore) Roster(ctx context.Context, contestID string) (model.Roster, error) {
	var rec boltContest
	if err := s.db.One("ID", contestID, &rec); err != nil {
		return model.Roster{}, notFound(err, "contest")
	}
	var ids []string
	seen := make(map[string]struct{})
	for _, t := range rec.Contest.Teams {
		for _, p := range t.Players {
			if _, dup := seen[p.ID]; !dup {
				seen[p.ID] = struct{}{}
				ids = append(ids, p.ID)
			}
		}
	}
	players, err := s.Players(ctx, ids)
	if err != nil {
		return model.Roster{}, err
	}
	return model.Roster{Teams: rec.Contest.Teams, Players: players}, nil
}

// Players returns directory entries for ids in the order requested.
func (s *BoltStore) Players(ctx context.Context, ids []string) ([]model.Player, error) {
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		var rec boltPlayer
		err := s.db.One("ID", id, &rec)
		if errors.Is(err, storm.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get player: %w", err)
		}
		out = append(out, rec.model())
	}
	return out, nil
}

// RecordGame stores a validated game of an existing contest. Recorded games
// are never overwritten, whether matched by id or by upstream id.
func (s *BoltStore) RecordGame(ctx context.Context, g model.GameResult) (model.GameResult, error) {
	if err := g.Validate(); err != nil {
		return model.GameResult{}, err
	}
	if g.ID == "" {
		g.ID = newID()
	}
	g.SessionID = ""

	tx, err := s.db.Begin(true)
	if err != nil {
		return model.GameResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if found, err := exists(tx, "ID", g.ContestID, &boltContest{}); err != nil || !found {
		return model.GameResult{}, orNotFound(err)
	}
	// storm lets a record with the same id overwrite itself, unique index included
	if found, err := exists(tx, "ID", g.ID, &boltGame{}); err != nil || found {
		return model.GameResult{}, orDuplicate(err)
	}
	if g.MajsoulID != "" {
		if found, err := exists(tx, "MajsoulID", g.MajsoulID, &boltGame{}); err != nil || found {
			return model.GameResult{}, orDuplicate(err)
		}
	}

	rec := boltGame{ID: g.ID, MajsoulID: g.MajsoulID, ContestID: g.ContestID, EndTime: g.EndTime.UnixNano(), Game: g}
	if err := tx.Save(&rec); err != nil {
		if errors.Is(err, storm.ErrAlreadyExists) {
			return model.GameResult{}, ErrDuplicateGame
		}
		return model.GameResult{}, fmt.Errorf("failed to record game: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.GameResult{}, fmt.Errorf("failed to record game: %w", err)
	}
	return g, nil
}

// exists reports whether a record with field equal to value is stored.
func exists(n storm.Node, field string, value, to any) (bool, error) {
	err := n.One(field, value, to)
	if errors.Is(err, storm.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", field, err)
	}
	return true, nil
}

func orNotFound(err error) error {
	if err != nil {
		return err
	}
	return ErrNotFound
}

func orDuplicate(err error) error {
	if err != nil {
		return err
	}
	return ErrDuplicateGame
}

// SaveContest writes a contest together with its teams.
func (s *BoltStore) SaveContest(ctx context.Context, c model.Contest) (model.Contest, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	c = cloneContest(c)
	for i := range c.Teams {
		if c.Teams[i].ID == "" {
			c.Teams[i].ID = newID()
		}
	}
	rec := boltContest{ID: c.ID, FriendlyID: c.FriendlyID, MajsoulID: c.MajsoulID, Contest: c}
	if err := s.db.Save(&rec); err != nil {
		return model.Contest{}, fmt.Errorf("failed to save contest: %w", err)
	}
	return c, nil
}

// SaveSession writes a session.
func (s *BoltStore) SaveSession(ctx context.Context, sess model.Session) (model.Session, error) {
	if sess.ID == "" {
		sess.ID = newID()
	}
	rec := boltSession{ID: sess.ID, ContestID: sess.ContestID, Scheduled: sess.ScheduledTime.UnixNano(), Session: sess}
	if err := s.db.Save(&rec); err != nil {
		return model.Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// SavePlayer writes a directory entry.
func (s *BoltStore) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if err := s.db.Save(&boltPlayer{ID: p.ID, MajsoulID: p.MajsoulID, Player: p}); err != nil {
		return model.Player{}, fmt.Errorf("failed to save player: %w", err)
	}
	return p, nil
}

// UpdateSession moves a session.
func (s *BoltStore) UpdateSession(ctx context.Context, id string, scheduled time.Time) (model.Session, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	sess.ScheduledTime = scheduled
	return s.SaveSession(ctx, sess)
}

// UpdateTeam patches a team inside the contest record that holds it.
func (s *BoltStore) UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (model.Team, error) {
	var recs []boltContest
	if err := none(s.db.All(&recs)); err != nil {
		return model.Team{}, fmt.Errorf("failed to list contests: %w", err)
	}
	for _, rec := range recs {
		for i := range rec.Contest.Teams {
			t := &rec.Contest.Teams[i]
			if t.ID != id {
				continue
			}
			if patch.Image != nil {
				t.Image = *patch.Image
			}
			if patch.Anthem != nil {
				t.Anthem = *patch.Anthem
			}
			if err := s.db.Save(&rec); err != nil {
				return model.Team{}, fmt.Errorf("failed to save team: %w", err)
			}
			return cloneTeam(*t), nil
		}
	}
	return model.Team{}, ErrNotFound
}
