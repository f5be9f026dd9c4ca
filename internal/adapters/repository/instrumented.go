package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/pkg/metrics"
)

const tracerName = "github.com/okian/riichi/repository"

// Instrumented decorates a Store with a span and latency metrics per call.
// ErrNotFound and ErrDuplicateGame are expected outcomes and are not
// counted as failures.
type Instrumented struct {
	next   Store
	tracer trace.Tracer
}

// Instrument wraps next.
func Instrument(next Store) *Instrumented {
	return &Instrumented{next: next, tracer: otel.Tracer(tracerName)}
}

func (s *Instrumented) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		failed := err != nil && err != ErrNotFound && err != ErrDuplicateGame
		metrics.RecordStoreCall(op, float64(time.Since(start).Milliseconds()), failed)
		if failed {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (s *Instrumented) Contests(ctx context.Context) (out []model.Contest, err error) {
	ctx, done := s.observe(ctx, "contests")
	defer func() { done(err) }()
	return s.next.Contests(ctx)
}

func (s *Instrumented) Contest(ctx context.Context, ref string) (out model.Contest, err error) {
	ctx, done := s.observe(ctx, "contest", attribute.String("contest.ref", ref))
	defer func() { done(err) }()
	return s.next.Contest(ctx, ref)
}

func (s *Instrumented) ContestByMajsoulID(ctx context.Context, majsoulID int64) (out model.Contest, err error) {
	ctx, done := s.observe(ctx, "contest_by_majsoul_id", attribute.Int64("contest.majsoul_id", majsoulID))
	defer func() { done(err) }()
	return s.next.ContestByMajsoulID(ctx, majsoulID)
}

func (s *Instrumented) Sessions(ctx context.Context, contestID string) (out []model.Session, err error) {
	ctx, done := s.observe(ctx, "sessions", attribute.String("contest.id", contestID))
	defer func() { done(err) }()
	return s.next.Sessions(ctx, contestID)
}

func (s *Instrumented) Session(ctx context.Context, id string) (out model.Session, err error) {
	ctx, done := s.observe(ctx, "session", attribute.String("session.id", id))
	defer func() { done(err) }()
	return s.next.Session(ctx, id)
}

func (s *Instrumented) GamesInWindow(ctx context.Context, contestID string, w model.Window) (out []model.GameResult, err error) {
	ctx, done := s.observe(ctx, "games_in_window",
		attribute.String("contest.id", contestID),
		attribute.String("window.start", w.Start.Format(time.RFC3339)),
		attribute.Bool("window.bounded", w.Bounded()),
	)
	defer func() { done(err) }()
	return s.next.GamesInWindow(ctx, contestID, w)
}

func (s *Instrumented) ContestGames(ctx context.Context, contestID string) (out []model.GameResult, err error) {
	ctx, done := s.observe(ctx, "contest_games", attribute.String("contest.id", contestID))
	defer func() { done(err) }()
	return s.next.ContestGames(ctx, contestID)
}

func (s *Instrumented) Games(ctx context.Context, f model.GameFilter) (out []model.GameResult, err error) {
	ctx, done := s.observe(ctx, "games",
		attribute.StringSlice("contest.ids", f.ContestIDs),
		attribute.Int("windows", len(f.Windows)),
		attribute.Int("last", f.Last),
	)
	defer func() { done(err) }()
	return s.next.Games(ctx, f)
}

func (s *Instrumented) IsGameRecorded(ctx context.Context, majsoulID string) (ok bool, err error) {
	ctx, done := s.observe(ctx, "is_game_recorded")
	defer func() { done(err) }()
	return s.next.IsGameRecorded(ctx, majsoulID)
}

func (s *Instrumented) Roster(ctx context.Context, contestID string) (out model.Roster, err error) {
	ctx, done := s.observe(ctx, "roster", attribute.String("contest.id", contestID))
	defer func() { done(err) }()
	return s.next.Roster(ctx, contestID)
}

func (s *Instrumented) Players(ctx context.Context, ids []string) (out []model.Player, err error) {
	ctx, done := s.observe(ctx, "players", attribute.Int("players.requested", len(ids)))
	defer func() { done(err) }()
	return s.next.Players(ctx, ids)
}

func (s *Instrumented) RecordGame(ctx context.Context, g model.GameResult) (out model.GameResult, err error) {
	ctx, done := s.observe(ctx, "record_game", attribute.String("contest.id", g.ContestID))
	defer func() { done(err) }()
	return s.next.RecordGame(ctx, g)
}

func (s *Instrumented) SaveContest(ctx context.Context, c model.Contest) (out model.Contest, err error) {
	ctx, done := s.observe(ctx, "save_contest")
	defer func() { done(err) }()
	return s.next.SaveContest(ctx, c)
}

func (s *Instrumented) SaveSession(ctx context.Context, sess model.Session) (out model.Session, err error) {
	ctx, done := s.observe(ctx, "save_session")
	defer func() { done(err) }()
	return s.next.SaveSession(ctx, sess)
}

func (s *Instrumented) SavePlayer(ctx context.Context, p model.Player) (out model.Player, err error) {
	ctx, done := s.observe(ctx, "save_player")
	defer func() { done(err) }()
	return s.next.SavePlayer(ctx, p)
}

func (s *Instrumented) UpdateSession(ctx context.Context, id string, scheduled time.Time) (out model.Session, err error) {
	ctx, done := s.observe(ctx, "update_session", attribute.String("session.id", id))
	defer func() { done(err) }()
	return s.next.UpdateSession(ctx, id, scheduled)
}

func (s *Instrumented) UpdateTeam(ctx context.Context, id string, patch model.TeamPatch) (out model.Team, err error) {
	ctx, done := s.observe(ctx, "update_team", attribute.String("team.id", id))
	defer func() { done(err) }()
	return s.next.UpdateTeam(ctx, id, patch)
}

func (s *Instrumented) Close() error { return s.next.Close() }

var _ Store = (*Instrumented)(nil)
