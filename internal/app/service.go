// Package service wires the store, the standings engine, the leaderboard and
// the game recording pipeline into the operations the HTTP API and CLI use.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/riichi/internal/adapters/mq/queue"
	"github.com/okian/riichi/internal/adapters/mq/worker"
	"github.com/okian/riichi/internal/adapters/repository"
	"github.com/okian/riichi/internal/domain/dedupe"
	"github.com/okian/riichi/internal/domain/leaderboard"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/internal/domain/standings"
	"github.com/okian/riichi/pkg/logger"
	"github.com/okian/riichi/pkg/metrics"
)

const (
	tracerName        = "github.com/okian/riichi/service"
	defaultQueueSize  = 1024
	defaultDedupeSize = 50000
	defaultContestTTL = time.Minute
	shutdownTimeout   = 30 * time.Second
)

// Submission outcomes returned by SubmitGame.
const (
	SubmissionQueued    = "queued"
	SubmissionDuplicate = "duplicate"
)

// Overview is a contest with its standings timeline and leaderboard.
type Overview struct {
	Contest  model.Contest                `json:"contest"`
	Sessions []model.StandingsRecord      `json:"sessions"`
	Players  []model.ContestPlayerRanking `json:"players"`
}

// GamesQuery selects games for listings. Contest references may be ids or
// friendly ids.
type GamesQuery struct {
	Contests []string
	Sessions []string
	Last     int
}

// Service implements the read and write operations of the standings service.
type Service struct {
	mu sync.RWMutex

	backend  repository.Store
	store    repository.Store // instrumented backend
	engine   *standings.Engine
	contests *cache.Cache // contest ref -> contest id
	tracer   trace.Tracer

	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	gameCap     int
	contestTTL  time.Duration

	started bool
	closed  bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Reads work immediately; SubmitGame needs Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		gameCap:     leaderboard.DefaultGameCap,
		contestTTL:  defaultContestTTL,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = repository.NewMemoryStore()
	}

	s.store = repository.Instrument(s.backend)
	s.engine = standings.New(s.store, standings.WithLogger(s.logger.Named("standings")))
	s.contests = cache.New(s.contestTTL, 2*s.contestTTL)
	s.tracer = otel.Tracer(tracerName)
	return s
}

// Store returns the instrumented store the service reads and writes through.
func (s *Service) Store() repository.Store { return s.store }

// Start creates the recording pipeline and launches its workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.closed {
		return ErrStopped
	}
	s.logger.Info(ctx, "starting standings service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store, worker.WithLogger(s.logger))

	// workers outlive the start context; Stop drains them
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "standings service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("leaderboardGameCap", s.gameCap),
	)
	return nil
}

// Stop closes the queue, lets workers drain it and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping standings service...")
		_ = s.queue.Close()

		waitCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := s.pool.Wait(waitCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
		s.cancel()
		s.started = false
	}
	if !s.closed {
		s.closed = true
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	s.logger.Info(ctx, "standings service stopped")
	return errors.Join(errs...)
}

// Contests lists contests without teams.
func (s *Service) Contests(ctx context.Context) ([]model.Contest, error) {
	contests, err := s.store.Contests(ctx)
	if err != nil {
		return nil, model.WrapStore("contests", err)
	}
	return contests, nil
}

// Contest resolves ref (id or friendly id) and loads the contest with teams.
// The ref to id mapping is cached; the contest itself is always read fresh.
func (s *Service) Contest(ctx context.Context, ref string) (model.Contest, error) {
	if id, ok := s.contests.Get(ref); ok {
		c, err := s.store.Contest(ctx, id.(string))
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Contest{}, model.WrapStore("contest", err)
		}
		s.contests.Delete(ref)
	}

	c, err := s.store.Contest(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Contest{}, fmt.Errorf("contest %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return model.Contest{}, model.WrapStore("contest", err)
	}
	s.contests.Set(ref, c.ID, cache.DefaultExpiration)
	return c, nil
}

// Standings streams the standings timeline of the referenced contest.
//
// The sequence is lazy: the contest and its sessions are loaded on the
// first pull and each session's games only when its record is pulled.
// A lookup failure is yielded as the sequence's only element.
func (s *Service) Standings(ctx context.Context, ref string) iter.Seq2[model.StandingsRecord, error] {
	return func(yield func(model.StandingsRecord, error) bool) {
		ctx, span := s.tracer.Start(ctx, "service.standings", trace.WithAttributes(attribute.String("contest.ref", ref)))
		defer span.End()

		start := time.Now()
		outcome, emitted := "ok", 0
		defer func() {
			span.SetAttributes(attribute.Int("sessions.emitted", emitted))
			metrics.RecordStandings(outcome, float64(time.Since(start).Milliseconds()))
		}()
		fail := func(err error) {
			outcome = s.failure(ctx, span, "standings", err)
			yield(model.StandingsRecord{}, err)
		}

		contest, err := s.Contest(ctx, ref)
		if err != nil {
			fail(err)
			return
		}
		sessions, err := s.store.Sessions(ctx, contest.ID)
		if err != nil {
			fail(model.WrapStore("sessions", err))
			return
		}
		roster, err := s.store.Roster(ctx, contest.ID)
		if err != nil {
			fail(model.WrapStore("roster", err))
			return
		}
		contest.Teams = roster.Teams

		for rec, err := range s.engine.Standings(ctx, contest, sessions) {
			if err != nil {
				fail(err)
				return
			}
			emitted++
			metrics.RecordSessionEmitted()
			if !yield(rec, nil) {
				outcome = "stopped"
				return
			}
		}
	}
}

// Leaderboard ranks the referenced contest's players by capped uma.
func (s *Service) Leaderboard(ctx context.Context, ref string) (rows []model.ContestPlayerRanking, err error) {
	ctx, span := s.tracer.Start(ctx, "service.leaderboard", trace.WithAttributes(attribute.String("contest.ref", ref)))
	defer span.End()

	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = s.failure(ctx, span, "leaderboard", err)
		}
		metrics.RecordLeaderboard(outcome, float64(time.Since(start).Milliseconds()))
	}()

	contest, err := s.Contest(ctx, ref)
	if err != nil {
		return nil, err
	}
	games, err := s.store.ContestGames(ctx, contest.ID)
	if err != nil {
		return nil, model.WrapStore("contest_games", err)
	}
	directory, err := s.directory(ctx, contest.ID, leaderboard.PlayerIDs(games))
	if err != nil {
		return nil, err
	}

	rows, err = leaderboard.Aggregate(games, directory, leaderboard.WithGameCap(s.gameCap))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("players", len(rows)), attribute.Int("games", len(games)))
	return rows, nil
}

// directory maps ids to player entries. Team members come from the
// contest roster; anyone else who played is looked up individually.
func (s *Service) directory(ctx context.Context, contestID string, ids []string) (map[string]model.Player, error) {
	roster, err := s.store.Roster(ctx, contestID)
	if err != nil {
		return nil, model.WrapStore("roster", err)
	}
	directory := make(map[string]model.Player, len(ids))
	for _, p := range roster.Players {
		directory[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := directory[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return directory, nil
	}
	guests, err := s.store.Players(ctx, missing)
	if err != nil {
		return nil, model.WrapStore("players", err)
	}
	for _, p := range guests {
		directory[p.ID] = p
	}
	return directory, nil
}

// failure classifies err for metrics and marks the span. It returns the
// metrics outcome label.
func (s *Service) failure(ctx context.Context, span trace.Span, op string, err error) string {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var re *model.ResolutionError
	switch {
	case errors.As(err, &re):
		metrics.RecordResolutionError(re.Kind)
		s.logger.Warn(ctx, op+" unresolved participant",
			logger.String("player", re.PlayerID),
			logger.String("game", re.GameID),
			logger.String("kind", re.Kind),
		)
		return "unresolved"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrMalformedGame):
		s.logger.Warn(ctx, op+" malformed game", logger.Error(err))
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		s.logger.Error(ctx, op+" failed", logger.Error(err))
		return "error"
	}
}

// Overview computes the standings timeline and the leaderboard concurrently.
func (s *Service) Overview(ctx context.Context, ref string) (Overview, error) {
	contest, err := s.Contest(ctx, ref)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{Contest: contest}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := standings.Collect(s.Standings(gctx, contest.ID))
		out.Sessions = recs
		return err
	})
	g.Go(func() error {
		rows, err := s.Leaderboard(gctx, contest.ID)
		out.Players = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// Games lists games for the given contests and sessions. When sessions are
// given each game carries the id of the session whose window holds it.
func (s *Service) Games(ctx context.Context, query GamesQuery) ([]model.GameResult, error) {
	filter := model.GameFilter{Last: query.Last}

	if len(query.Contests) > 0 {
		for _, ref := range query.Contests {
			c, err := s.Contest(ctx, ref)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			filter.ContestIDs = append(filter.ContestIDs, c.ID)
		}
		if len(filter.ContestIDs) == 0 {
			return []model.GameResult{}, nil
		}
	}

	var sessionIDs []string
	for _, id := range query.Sessions {
		w, err := s.sessionWindow(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		filter.Windows = append(filter.Windows, w)
		sessionIDs = append(sessionIDs, id)
	}
	if len(query.Sessions) > 0 && len(filter.Windows) == 0 {
		return []model.GameResult{}, nil
	}

	games, err := s.store.Games(ctx, filter)
	if err != nil {
		return nil, model.WrapStore("games", err)
	}
	for i := range games {
		for j, w := range filter.Windows {
			if w.Contains(games[i].EndTime) {
				games[i].SessionID = sessionIDs[j]
				break
			}
		}
	}
	return games, nil
}

// sessionWindow returns the window running from the session to the next
// session of the same contest.
func (s *Service) sessionWindow(ctx context.Context, id string) (model.Window, error) {
	sess, err := s.store.Session(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Window{}, ErrNotFound
	}
	if err != nil {
		return model.Window{}, model.WrapStore("session", err)
	}
	sessions, err := s.store.Sessions(ctx, sess.ContestID)
	if err != nil {
		return model.Window{}, model.WrapStore("sessions", err)
	}
	windows := standings.Windows(sessions)
	for i, other := range sessions {
		if other.ID == id {
			return windows[i], nil
		}
	}
	return model.Window{Start: sess.ScheduledTime}, nil
}

// PlayerGames lists one player's games in the referenced contest.
func (s *Service) PlayerGames(ctx context.Context, ref, playerID string) ([]model.GameResult, error) {
	contest, err := s.Contest(ctx, ref)
	if err != nil {
		return nil, err
	}
	games, err := s.store.Games(ctx, model.GameFilter{ContestIDs: []string{contest.ID}, PlayerID: playerID})
	if err != nil {
		return nil, model.WrapStore("games", err)
	}
	return games, nil
}

// UpdateSession moves a session to a new scheduled time.
func (s *Service) UpdateSession(ctx context.Context, id string, scheduled time.Time) (model.Session, error) {
	sess, err := s.store.UpdateSession(ctx, id, scheduled)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Session{}, model.WrapStore("update_session", err)
	}
	s.logger.Info(ctx, "session rescheduled",
		logger.String("session", sess.ID),
		logger.String("scheduledTime", sess.ScheduledTime.Format(time.RFC3339)),
	)
	return sess, nil
}

// UpdateTeam applies a display patch to a team.
func (s *Service) UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (model.Team, error) {
	team, err := s.store.UpdateTeam(ctx, id, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Team{}, fmt.Errorf("team %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Team{}, model.WrapStore("update_team", err)
	}
	s.logger.Info(ctx, "team updated", logger.String("team", team.ID))
	return team, nil
}

// SubmitGame validates a finished game and queues it for recording. A game
// whose upstream id was already submitted is reported as a duplicate; games
// without an upstream id are always queued.
func (s *Service) SubmitGame(ctx context.Context, g model.GameResult) (string, error) { //nolint:gocritic // hugeParam: games are queued by value
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}
	if err := g.Validate(); err != nil {
		metrics.RecordGameRejected("malformed")
		return "", err
	}
	// games without an upstream id cannot be matched, so only the store's id check applies
	tracked := g.MajsoulID != ""
	if tracked && s.deduper.SeenAndRecord(ctx, g.MajsoulID) {
		metrics.RecordGameDuplicate()
		s.logger.Debug(ctx, "duplicate game submission", logger.String("majsoul_id", g.MajsoulID))
		return SubmissionDuplicate, nil
	}
	if !s.queue.Enqueue(ctx, g) {
		if tracked {
			s.deduper.Unrecord(ctx, g.MajsoulID)
		}
		metrics.RecordGameRejected("queue_full")
		return "", ErrQueueFull
	}
	return SubmissionQueued, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":            s.started,
		"workerCount":        s.workerCount,
		"queueSize":          s.queueSize,
		"dedupeSize":         s.dedupeSize,
		"leaderboardGameCap": s.gameCap,
		"cachedContestRefs":  s.contests.ItemCount(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["gamesProcessed"] = s.pool.Processed()
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return stats
}
