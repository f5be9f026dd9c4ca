package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/riichi/internal/domain/model"
)

// MemoryStore is an in-process Store. Games of each contest are indexed by
// a treap ordered by end time so window queries are range scans.
type MemoryStore struct {
	mu sync.RWMutex

	contests     map[string]model.Contest
	contestOrder []string
	sessions     map[string]model.Session
	players      map[string]model.Player
	games        map[string]model.GameResult
	byMajsoulID  map[string]string
	index        map[string]*node // contest id -> games treap

	newID func() string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		contests:    make(map[string]model.Contest),
		sessions:    make(map[string]model.Session),
		players:     make(map[string]model.Player),
		games:       make(map[string]model.GameResult),
		byMajsoulID: make(map[string]string),
		index:       make(map[string]*node),
		newID:       newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Contests lists contests in insertion order without teams.
func (s *MemoryStore) Contests(ctx context.Context) ([]model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Contest, 0, len(s.contestOrder))
	for _, id := range s.contestOrder {
		out = append(out, s.contests[id].Summary())
	}
	return out, nil
}

// Contest resolves ref as a contest id first, then as a friendly id.
func (s *MemoryStore) Contest(ctx context.Context, ref string) (model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.contests[ref]; ok {
		return cloneContest(c), nil
	}
	friendly, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return model.Contest{}, ErrNotFound
	}
	for _, id := range s.contestOrder {
		if c := s.contests[id]; c.FriendlyID == friendly {
			return cloneContest(c), nil
		}
	}
	return model.Contest{}, ErrNotFound
}

// ContestByMajsoulID finds the contest tagged with the upstream id.
func (s *MemoryStore) ContestByMajsoulID(ctx context.Context, majsoulID int64) (model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.contestOrder {
		if c := s.contests[id]; c.MajsoulID == majsoulID {
			return cloneContest(c), nil
		}
	}
	return model.Contest{}, ErrNotFound
}

// Sessions returns the contest's sessions sorted by scheduled time.
func (s *MemoryStore) Sessions(ctx context.Context, contestID string) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Session
	for _, sess := range s.sessions {
		if sess.ContestID == contestID {
			out = append(out, sess)
		}
	}
	sortSessions(out)
	return out, nil
}

// Session returns one session by id.
func (s *MemoryStore) Session(ctx context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return sess, nil
}

// GamesInWindow range-scans the contest index over w.
func (s *MemoryStore) GamesInWindow(ctx context.Context, contestID string, w model.Window) ([]model.GameResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := windowBounds(w.Start, w.End)
	var out []model.GameResult
	ascend(s.index[contestID], lo, hi, func(k gameKey) bool {
		out = append(out, cloneGame(s.games[k.id]))
		return true
	})
	return out, nil
}

// ContestGames returns all games of the contest in end time order.
func (s *MemoryStore) ContestGames(ctx context.Context, contestID string) ([]model.GameResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.index[contestID], nil), nil
}

// Games lists games matching f across the selected contests.
func (s *MemoryStore) Games(ctx context.Context, f model.GameFilter) ([]model.GameResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	contestIDs := f.ContestIDs
	if len(contestIDs) == 0 {
		contestIDs = s.contestOrder
	}
	var out []model.GameResult
	for _, id := range contestIDs {
		out = append(out, s.collect(s.index[id], f.Match)...)
	}
	s.mu.RUnlock()

	model.SortChronologically(out)
	return applyLast(out, f.Last), nil
}

// collect walks the whole tree in order. Must be called with the lock held.
func (s *MemoryStore) collect(root *node, keep func(model.GameResult) bool) []model.GameResult {
	out := make([]model.GameResult, 0, nsize(root))
	ascend(root, gameKey{}, nil, func(k gameKey) bool {
		g := s.games[k.id]
		if keep == nil || keep(g) {
			out = append(out, cloneGame(g))
		}
		return true
	})
	return out
}

// IsGameRecorded checks the upstream id index.
func (s *MemoryStore) IsGameRecorded(ctx context.Context, majsoulID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byMajsoulID[majsoulID]
	return ok, nil
}

// Roster returns the contest's teams and the directory entries of their
// players. Players missing from the directory are omitted.
func (s *MemoryStore) Roster(ctx context.Context, contestID string) (model.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contests[contestID]
	if !ok {
		return model.Roster{}, ErrNotFound
	}
	c = cloneContest(c)
	roster := model.Roster{Teams: c.Teams}
	seen := make(map[string]struct{})
	for _, t := range c.Teams {
		for _, ref := range t.Players {
			if _, dup := seen[ref.ID]; dup {
				continue
			}
			seen[ref.ID] = struct{}{}
			if p, ok := s.players[ref.ID]; ok {
				roster.Players = append(roster.Players, p)
			}
		}
	}
	return roster, nil
}

// Players returns directory entries for ids in the order requested.
func (s *MemoryStore) Players(ctx context.Context, ids []string) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// RecordGame validates and indexes g. Games without an id get one.
func (s *MemoryStore) RecordGame(ctx context.Context, g model.GameResult) (model.GameResult, error) {
	if err := g.Validate(); err != nil {
		return model.GameResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[g.ContestID]; !ok {
		return model.GameResult{}, ErrNotFound
	}
	if g.MajsoulID != "" {
		if _, dup := s.byMajsoulID[g.MajsoulID]; dup {
			return model.GameResult{}, ErrDuplicateGame
		}
	}
	if g.ID == "" {
		g.ID = s.newID()
	}
	if _, dup := s.games[g.ID]; dup {
		return model.GameResult{}, ErrDuplicateGame
	}
	g = cloneGame(g)
	g.SessionID = ""
	s.games[g.ID] = g
	if g.MajsoulID != "" {
		s.byMajsoulID[g.MajsoulID] = g.ID
	}
	s.index[g.ContestID] = insert(s.index[g.ContestID], gameKey{end: g.EndTime, id: g.ID})
	return cloneGame(g), nil
}

// SaveContest inserts or replaces a contest with its teams.
func (s *MemoryStore) SaveContest(ctx context.Context, c model.Contest) (model.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.newID()
	}
	c = cloneContest(c)
	for i := range c.Teams {
		if c.Teams[i].ID == "" {
			c.Teams[i].ID = s.newID()
		}
	}
	if _, ok := s.contests[c.ID]; !ok {
		s.contestOrder = append(s.contestOrder, c.ID)
	}
	s.contests[c.ID] = c
	return cloneContest(c), nil
}

// SaveSession inserts or replaces a session of an existing contest.
func (s *MemoryStore) SaveSession(ctx context.Context, sess model.Session) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[sess.ContestID]; !ok {
		return model.Session{}, ErrNotFound
	}
	if sess.ID == "" {
		sess.ID = s.newID()
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

// SavePlayer inserts or replaces a directory entry.
func (s *MemoryStore) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.newID()
	}
	s.players[p.ID] = p
	return p, nil
}

// UpdateSession moves a session to scheduled.
func (s *MemoryStore) UpdateSession(ctx context.Context, id string, scheduled time.Time) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	sess.ScheduledTime = scheduled
	s.sessions[id] = sess
	return sess, nil
}

// UpdateTeam patches the display attributes of a team in whichever contest holds it.
func (s *MemoryStore) UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cid, c := range s.contests {
		for i := range c.Teams {
			if c.Teams[i].ID != id {
				continue
			}
			if patch.Image != nil {
				c.Teams[i].Image = *patch.Image
			}
			if patch.Anthem != nil {
				c.Teams[i].Anthem = *patch.Anthem
			}
			s.contests[cid] = c
			return cloneTeam(c.Teams[i]), nil
		}
	}
	return model.Team{}, ErrNotFound
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func sortSessions(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].ScheduledTime.Equal(sessions[j].ScheduledTime) {
			return sessions[i].ScheduledTime.Before(sessions[j].ScheduledTime)
		}
		return sessions[i].ID < sessions[j].ID
	})
}

// applyLast keeps the newest n games of a chronological list, newest first.
func applyLast(games []model.GameResult, n int) []model.GameResult {
	if n <= 0 {
		return games
	}
	if len(games) > n {
		games = games[len(games)-n:]
	}
	out := make([]model.GameResult, len(games))
	for i, g := range games {
		out[len(games)-1-i] = g
	}
	return out
}

func cloneGame(g model.GameResult) model.GameResult {
	g.Players = append([]model.PlayerRef(nil), g.Players...)
	g.FinalScore = append([]model.FinalScore(nil), g.FinalScore...)
	return g
}

func cloneTeam(t model.Team) model.Team {
	t.Players = append([]model.PlayerRef(nil), t.Players...)
	return t
}

func cloneContest(c model.Contest) model.Contest {
	if c.Teams == nil {
		return c
	}
	teams := make([]model.Team, len(c.Teams))
	for i, t := range c.Teams {
		teams[i] = cloneTeam(t)
	}
	c.Teams = teams
	return c
}
