package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/riichi/internal/adapters/repository"
	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

var day0 = time.Date(2020, 5, 1, 18, 0, 0, 0, time.UTC)

func refs(ids ...string) []model.PlayerRef {
	out := make([]model.PlayerRef, len(ids))
	for i, id := range ids {
		out[i] = model.PlayerRef{ID: id}
	}
	return out
}

func game(id string, end time.Time, players [4]string, uma [4]int64) model.GameResult {
	g := model.GameResult{ID: id, MajsoulID: "m-" + id, ContestID: "c1", ContestMajsoulID: 900, EndTime: end}
	for i := range players {
		g.Players = append(g.Players, model.PlayerRef{ID: players[i]})
		g.FinalScore = append(g.FinalScore, model.FinalScore{Uma: uma[i]})
	}
	return g
}

// seeded returns a memory store holding one contest with two sessions and
// three games.
func seeded(t *testing.T) *repository.MemoryStore {
	ctx := context.Background()
	s := repository.NewMemoryStore()
	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_, err := s.SaveContest(ctx, model.Contest{
		ID: "c1", FriendlyID: 7, MajsoulID: 900, Name: "League",
		Teams: []model.Team{
			{ID: "red", Players: refs("p1", "p5")},
			{ID: "blue", Players: refs("p2")},
			{ID: "green", Players: refs("p3")},
			{ID: "gold", Players: refs("p4")},
		},
	})
	must(err)
	for _, p := range []string{"p1", "p2", "p3", "p4", "p5"} {
		_, err := s.SavePlayer(ctx, model.Player{ID: p, Nickname: "nick-" + p})
		must(err)
	}
	_, err = s.SaveSession(ctx, model.Session{ID: "s1", ContestID: "c1", ScheduledTime: day0})
	must(err)
	_, err = s.SaveSession(ctx, model.Session{ID: "s2", ContestID: "c1", ScheduledTime: day0.AddDate(0, 0, 1)})
	must(err)

	for _, g := range []model.GameResult{
		game("g1", day0.Add(time.Hour), [4]string{"p1", "p2", "p3", "p4"}, [4]int64{30, 10, -10, -30}),
		game("g2", day0.Add(2*time.Hour), [4]string{"p5", "p2", "p3", "p4"}, [4]int64{5, 5, 5, -15}),
		game("g3", day0.AddDate(0, 0, 1).Add(time.Hour), [4]string{"p1", "p2", "p3", "p4"}, [4]int64{-20, 40, 0, -20}),
	} {
		_, err := s.RecordGame(ctx, g)
		must(err)
	}
	return s
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then reads work before Start", func() {
			contests, err := svc.Contests(context.Background())
			So(err, ShouldBeNil)
			So(contests, ShouldBeEmpty)
		})

		Convey("And submissions are refused", func() {
			_, err := svc.SubmitGame(context.Background(), model.GameResult{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_Reads(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a seeded store", t, func() {
		svc := service.New(service.WithStore(seeded(t)))

		Convey("Contest resolves friendly ids and caches the mapping", func() {
			c, err := svc.Contest(ctx, "7")
			So(err, ShouldBeNil)
			So(c.ID, ShouldEqual, "c1")
			So(c.Teams, ShouldHaveLength, 4)
			So(svc.GetStats()["cachedContestRefs"], ShouldEqual, 1)

			_, err = svc.Contest(ctx, "404")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("Standings produce one cumulative record per session", func() {
			recs, err := standings.Collect(svc.Standings(ctx, "7"))
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].Totals["red"], ShouldEqual, 35)
			So(recs[1].Totals["red"], ShouldEqual, -20)
			So(recs[1].AggregateTotals["red"], ShouldEqual, 15)
			So(recs[1].AggregateTotals["blue"], ShouldEqual, 55)
		})

		Convey("Standings of an unknown contest yield a single not found error", func() {
			recs, err := standings.Collect(svc.Standings(ctx, "missing"))
			So(recs, ShouldBeEmpty)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("Leaderboard ranks players by capped uma", func() {
			rows, err := svc.Leaderboard(ctx, "c1")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 5)
			So(rows[0].ID, ShouldEqual, "p2")
			So(rows[0].TourneyScore, ShouldEqual, 55)
			So(rows[0].GamesPlayed, ShouldEqual, 3)
			So(rows[0].Nickname, ShouldEqual, "nick-p2")
			for i, r := range rows {
				So(r.TourneyRank, ShouldEqual, i)
			}
		})

		Convey("Overview bundles both computations", func() {
			ov, err := svc.Overview(ctx, "7")
			So(err, ShouldBeNil)
			So(ov.Contest.ID, ShouldEqual, "c1")
			So(ov.Sessions, ShouldHaveLength, 2)
			So(ov.Players, ShouldHaveLength, 5)
		})

		Convey("Games filtered by session carry the session id", func() {
			games, err := svc.Games(ctx, service.GamesQuery{Sessions: []string{"s2"}})
			So(err, ShouldBeNil)
			So(games, ShouldHaveLength, 1)
			So(games[0].ID, ShouldEqual, "g3")
			So(games[0].SessionID, ShouldEqual, "s2")
		})

		Convey("Games with last return the newest first", func() {
			games, err := svc.Games(ctx, service.GamesQuery{Contests: []string{"7"}, Last: 2})
			So(err, ShouldBeNil)
			So(games, ShouldHaveLength, 2)
			So(games[0].ID, ShouldEqual, "g3")
			So(games[1].ID, ShouldEqual, "g2")
		})

		Convey("Games for unknown contests are empty", func() {
			games, err := svc.Games(ctx, service.GamesQuery{Contests: []string{"nope"}})
			So(err, ShouldBeNil)
			So(games, ShouldBeEmpty)
		})

		Convey("PlayerGames lists one player's games", func() {
			games, err := svc.PlayerGames(ctx, "7", "p5")
			So(err, ShouldBeNil)
			So(games, ShouldHaveLength, 1)
			So(games[0].ID, ShouldEqual, "g2")
		})

		Convey("Rescheduling a session moves games between windows", func() {
			_, err := svc.UpdateSession(ctx, "s2", day0.Add(90*time.Minute))
			So(err, ShouldBeNil)

			recs, err := standings.Collect(svc.Standings(ctx, "c1"))
			So(err, ShouldBeNil)
			So(recs[0].Totals["red"], ShouldEqual, 30)
			So(recs[1].Totals["red"], ShouldEqual, -15)

			_, err = svc.UpdateSession(ctx, "s9", day0)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("UpdateTeam patches display fields", func() {
			anthem := "https://example.org/anthem.mp3"
			team, err := svc.UpdateTeam(ctx, "red", model.TeamPatch{Anthem: &anthem})
			So(err, ShouldBeNil)
			So(team.Anthem, ShouldEqual, anthem)

			_, err = svc.UpdateTeam(ctx, "purple", model.TeamPatch{Anthem: &anthem})
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a game with a player on no team", t, func() {
		store := seeded(t)
		_, err := store.RecordGame(ctx, game("g9", day0.AddDate(0, 0, 1).Add(2*time.Hour), [4]string{"p1", "p2", "p3", "ghost"}, [4]int64{1, 1, 1, -3}))
		So(err, ShouldBeNil)
		svc := service.New(service.WithStore(store))

		Convey("Then standings stop with a resolution error after the first session", func() {
			recs, err := standings.Collect(svc.Standings(ctx, "c1"))
			So(recs, ShouldHaveLength, 1)
			So(errors.Is(err, model.ErrUnresolved), ShouldBeTrue)
		})

		Convey("And the leaderboard reports the missing player", func() {
			_, err := svc.Leaderboard(ctx, "c1")
			var re *model.ResolutionError
			So(errors.As(err, &re), ShouldBeTrue)
			So(re.Kind, ShouldEqual, "player")
		})
	})
}

// rosterStore counts roster reads and records which ids fall through to
// the player directory.
type rosterStore struct {
	repository.Store
	rosters int
	looked  []string
}

func (s *rosterStore) Roster(ctx context.Context, contestID string) (model.Roster, error) {
	s.rosters++
	return s.Store.Roster(ctx, contestID)
}

func (s *rosterStore) Players(ctx context.Context, ids []string) ([]model.Player, error) {
	s.looked = append(s.looked, ids...)
	return s.Store.Players(ctx, ids)
}

func TestService_Roster(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a store that counts roster reads", t, func() {
		store := &rosterStore{Store: seeded(t)}
		svc := service.New(service.WithStore(store))

		Convey("Standings resolve teams through the roster", func() {
			recs, err := standings.Collect(svc.Standings(ctx, "c1"))
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(store.rosters, ShouldEqual, 1)
		})

		Convey("The leaderboard takes team members from the roster", func() {
			rows, err := svc.Leaderboard(ctx, "c1")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 5)
			So(store.rosters, ShouldEqual, 1)
			So(store.looked, ShouldBeEmpty)
			So(rows[0].Nickname, ShouldEqual, "nick-p2")
		})

		Convey("Players outside every team are looked up individually", func() {
			_, err := store.SavePlayer(ctx, model.Player{ID: "p6", Nickname: "nick-p6"})
			So(err, ShouldBeNil)
			_, err = store.RecordGame(ctx, game("g6", day0.Add(3*time.Hour), [4]string{"p6", "p2", "p3", "p4"}, [4]int64{90, 0, -45, -45}))
			So(err, ShouldBeNil)

			rows, err := svc.Leaderboard(ctx, "c1")
			So(err, ShouldBeNil)
			So(store.looked, ShouldResemble, []string{"p6"})
			So(rows[0].ID, ShouldEqual, "p6")
			So(rows[0].Nickname, ShouldEqual, "nick-p6")
		})
	})
}

func TestService_SubmitGame(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		store := seeded(t)
		svc := service.New(service.WithStore(store), service.WithWorkerCount(2), service.WithQueueSize(16))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.GetStats()["started"], ShouldEqual, true)

		fresh := game("", day0.AddDate(0, 0, 1).Add(3*time.Hour), [4]string{"p1", "p2", "p3", "p4"}, [4]int64{1, 2, 3, -6})
		fresh.MajsoulID = "m-new"
		fresh.ContestID = ""

		Convey("When a new game is submitted", func() {
			outcome, err := svc.SubmitGame(ctx, fresh)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, service.SubmissionQueued)

			Convey("Then the same upstream id is reported as a duplicate", func() {
				outcome, err := svc.SubmitGame(ctx, fresh)
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, service.SubmissionDuplicate)
			})

			Convey("And after Stop the game is recorded", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				ok, err := store.IsGameRecorded(ctx, "m-new")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When a malformed game is submitted", func() {
			bad := fresh
			bad.Players = bad.Players[:3]
			_, err := svc.SubmitGame(ctx, bad)
			So(errors.Is(err, model.ErrMalformedGame), ShouldBeTrue)
		})

		Convey("When games without an upstream id are submitted", func() {
			first, second := fresh, fresh
			first.MajsoulID, second.MajsoulID = "", ""
			second.EndTime = second.EndTime.Add(time.Hour)

			outcome, err := svc.SubmitGame(ctx, first)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, service.SubmissionQueued)

			outcome, err = svc.SubmitGame(ctx, second)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, service.SubmissionQueued)
			So(svc.GetStats()["dedupeEntries"], ShouldEqual, 0)

			Convey("Then both are recorded", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				games, err := store.ContestGames(ctx, "c1")
				So(err, ShouldBeNil)
				So(games, ShouldHaveLength, 5)
			})
		})

		Convey("When many games are submitted", func() {
			for i := 0; i < 10; i++ {
				g := fresh
				g.MajsoulID = fmt.Sprintf("bulk-%d", i)
				_, err := svc.SubmitGame(ctx, g)
				So(err, ShouldBeNil)
			}
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then stopping drains every one into the store", func() {
				games, err := store.ContestGames(ctx, "c1")
				So(err, ShouldBeNil)
				So(games, ShouldHaveLength, 13)
			})

			Convey("And the service cannot be restarted", func() {
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
			})
		})

		Reset(func() { _ = svc.Stop(ctx) })
	})
}
