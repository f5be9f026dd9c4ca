package leaderboard_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/riichi/internal/domain/leaderboard"
	"github.com/okian/riichi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2020, 5, 1, 18, 0, 0, 0, time.UTC)

// seatGame puts "star" in seat 0 with the given uma against three fillers.
func seatGame(n int, uma int64) model.GameResult {
	return model.GameResult{
		ID:      fmt.Sprintf("g%02d", n),
		EndTime: base.Add(time.Duration(n) * time.Hour),
		Players: []model.PlayerRef{{ID: "star"}, {ID: "f1"}, {ID: "f2"}, {ID: "f3"}},
		FinalScore: []model.FinalScore{
			{Uma: uma}, {Uma: 0}, {Uma: 0}, {Uma: -uma},
		},
	}
}

func directory(ids ...string) map[string]model.Player {
	out := make(map[string]model.Player, len(ids))
	for _, id := range ids {
		out[id] = model.Player{ID: id, Nickname: "nick-" + id}
	}
	return out
}

func TestAggregate(t *testing.T) {
	Convey("Given a player with seven games", t, func() {
		umas := []int64{10, -5, 3, 8, -2, 20, 1}
		var games []model.GameResult
		for i, u := range umas {
			games = append(games, seatGame(i, u))
		}
		dir := directory("star", "f1", "f2", "f3")

		Convey("When aggregated with the default cap", func() {
			rows, err := leaderboard.Aggregate(games, dir)
			So(err, ShouldBeNil)
			star := find(rows, "star")

			Convey("Then only the first five games count toward score", func() {
				So(star.TourneyScore, ShouldEqual, 14)
			})
			Convey("And every game counts toward games played", func() {
				So(star.GamesPlayed, ShouldEqual, 7)
			})
			Convey("And directory attributes are merged in", func() {
				So(star.Nickname, ShouldEqual, "nick-star")
			})
		})

		Convey("When the store returns the games newest first", func() {
			reversed := make([]model.GameResult, len(games))
			for i := range games {
				reversed[len(games)-1-i] = games[i]
			}
			rows, err := leaderboard.Aggregate(reversed, dir)

			Convey("Then the cap still selects the chronologically first games", func() {
				So(err, ShouldBeNil)
				So(find(rows, "star").TourneyScore, ShouldEqual, 14)
			})
			Convey("And the input slice is left untouched", func() {
				So(reversed[0].ID, ShouldEqual, "g06")
			})
		})

		Convey("When aggregated with a cap of two", func() {
			rows, err := leaderboard.Aggregate(games, dir, leaderboard.WithGameCap(2))
			So(err, ShouldBeNil)
			So(find(rows, "star").TourneyScore, ShouldEqual, 5)
		})
	})

	Convey("Given a participant missing from the directory", t, func() {
		_, err := leaderboard.Aggregate([]model.GameResult{seatGame(0, 10)}, directory("star", "f1", "f2"))

		Convey("Then a player resolution error is returned", func() {
			var re *model.ResolutionError
			So(errors.As(err, &re), ShouldBeTrue)
			So(re.Kind, ShouldEqual, "player")
			So(re.PlayerID, ShouldEqual, "f3")
		})
	})

	Convey("Given a malformed game", t, func() {
		g := seatGame(0, 10)
		g.Players = g.Players[:3]
		_, err := leaderboard.Aggregate([]model.GameResult{g}, directory("star", "f1", "f2", "f3"))
		So(errors.Is(err, model.ErrMalformedGame), ShouldBeTrue)
	})

	Convey("Given no games", t, func() {
		rows, err := leaderboard.Aggregate(nil, nil)
		So(err, ShouldBeNil)
		So(rows, ShouldBeEmpty)
	})

	Convey("Given players tied on score", t, func() {
		// f1 and f2 both finish on zero; f1 sits before f2 in the first game.
		rows, err := leaderboard.Aggregate([]model.GameResult{seatGame(0, 10)}, directory("star", "f1", "f2", "f3"))
		So(err, ShouldBeNil)

		Convey("Then ranks follow first appearance among equals", func() {
			So(rows[0].ID, ShouldEqual, "star")
			So(rows[1].ID, ShouldEqual, "f1")
			So(rows[2].ID, ShouldEqual, "f2")
			So(rows[3].ID, ShouldEqual, "f3")
			for i, r := range rows {
				So(r.TourneyRank, ShouldEqual, i)
			}
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given scores 30, 30, 10 in that order", t, func() {
		rows := []model.ContestPlayerRanking{
			{Player: model.Player{ID: "a"}, TourneyScore: 30},
			{Player: model.Player{ID: "b"}, TourneyScore: 30},
			{Player: model.Player{ID: "c"}, TourneyScore: 10},
		}
		ranked := leaderboard.Rank(rows)

		Convey("Then ranks are 0, 1, 2 with input order kept on the tie", func() {
			So(ranked[0].ID, ShouldEqual, "a")
			So(ranked[0].TourneyRank, ShouldEqual, 0)
			So(ranked[1].ID, ShouldEqual, "b")
			So(ranked[1].TourneyRank, ShouldEqual, 1)
			So(ranked[2].ID, ShouldEqual, "c")
			So(ranked[2].TourneyRank, ShouldEqual, 2)
		})
	})

	Convey("Given unsorted scores", t, func() {
		ranked := leaderboard.Rank([]model.ContestPlayerRanking{
			{Player: model.Player{ID: "low"}, TourneyScore: -40},
			{Player: model.Player{ID: "high"}, TourneyScore: 55},
		})
		So(ranked[0].ID, ShouldEqual, "high")
		So(ranked[1].ID, ShouldEqual, "low")
	})
}

func TestPlayerIDs(t *testing.T) {
	Convey("Given two games sharing players", t, func() {
		ids := leaderboard.PlayerIDs([]model.GameResult{seatGame(0, 1), seatGame(1, 1)})
		So(ids, ShouldResemble, []string{"star", "f1", "f2", "f3"})
	})
}

func find(rows []model.ContestPlayerRanking, id string) model.ContestPlayerRanking {
	for _, r := range rows {
		if r.ID == id {
			return r
		}
	}
	return model.ContestPlayerRanking{}
}
