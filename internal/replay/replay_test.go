package replay

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/okian/riichi/internal/adapters/http/api"
	"github.com/okian/riichi/internal/adapters/repository"
	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/internal/fixtures"
	"github.com/okian/riichi/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// remote is a running API holding a fixture's league without its games.
type remote struct {
	svc   *service.Service
	srv   *httptest.Server
	token string
}

func startRemote(t *testing.T, f *fixtures.File) remote {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	league := &fixtures.File{Players: f.Players}
	for _, c := range f.Contests {
		c.Games = nil
		league.Contests = append(league.Contests, c)
	}
	if _, err := fixtures.Apply(ctx, store, league); err != nil {
		t.Fatalf("seed: %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	svc := service.New(service.WithStore(store), service.WithWorkerCount(2))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	auth := api.NewAuthenticator(&key.PublicKey, "riichi", "league-admin")
	srv := httptest.NewServer(api.NewServer(svc, api.WithAuthenticator(auth), api.WithWriteLimit(1000, 1000)).Handler())

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    "league-admin",
		Audience:  jwt.ClaimStrings{"riichi"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return remote{svc: svc, srv: srv, token: token}
}

func (r remote) close() {
	r.srv.Close()
	_ = r.svc.Stop(context.Background())
}

func smallLeague(t *testing.T) *fixtures.File {
	l := fixtures.DefaultLeague()
	l.Teams, l.PlayersPerTeam, l.Sessions, l.GamesPerSession = 4, 2, 3, 4
	f, err := fixtures.Generate(l)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return f
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running API seeded with a league but no games", t, func() {
		f := smallLeague(t)
		r := startRemote(t, f)
		Reset(r.close)

		cfg := Config{BaseURL: r.srv.URL, Token: r.token, Workers: 4, Settle: 5 * time.Second}

		Convey("Replaying the games converges on the local standings", func() {
			stats, err := Run(ctx, cfg, f)
			So(err, ShouldBeNil)
			So(stats.Submitted, ShouldEqual, 12)
			So(stats.Queued, ShouldEqual, 12)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Verified, ShouldEqual, 1)

			Convey("A second replay only finds duplicates", func() {
				again, err := Run(ctx, cfg, f)
				So(err, ShouldBeNil)
				So(again.Duplicates, ShouldEqual, 12)
				So(again.Queued, ShouldEqual, 0)
			})
		})

		Convey("Submissions without a token fail and verification times out", func() {
			cfg.Token = ""
			cfg.Settle = 600 * time.Millisecond
			stats, err := Run(ctx, cfg, f)
			So(err, ShouldWrap, ErrMismatch)
			So(stats.Failed, ShouldEqual, 12)
			So(stats.Verified, ShouldEqual, 0)
		})

		Convey("A fixture relying on generated ids is rejected", func() {
			f.Contests[0].Sessions = append(f.Contests[0].Sessions, model.Session{})
			_, err := Run(ctx, cfg, f)
			So(err, ShouldWrap, ErrFixture)
		})
	})

	Convey("An unreachable service fails the health check", t, func() {
		srv := httptest.NewServer(nil)
		url := srv.URL
		srv.Close()

		_, err := Run(ctx, Config{BaseURL: url, Timeout: time.Second}, smallLeague(t))
		So(err, ShouldWrap, ErrUnhealthy)
	})
}

func TestCompare(t *testing.T) {
	rec := func(id string, totals, agg model.SessionSummary) model.StandingsRecord {
		return model.StandingsRecord{Session: model.Session{ID: id}, Totals: totals, AggregateTotals: agg}
	}

	Convey("compare", t, func() {
		want := []model.StandingsRecord{
			rec("s1", model.SessionSummary{"a": 10, "b": -10}, model.SessionSummary{"a": 10, "b": -10}),
			rec("s2", nil, model.SessionSummary{"a": 10, "b": -10}),
		}

		Convey("Accepts an empty summary for a session without games", func() {
			got := []model.StandingsRecord{want[0], rec("s2", model.SessionSummary{}, want[1].AggregateTotals)}
			So(compare(want, got), ShouldBeNil)
		})

		Convey("Reports missing sessions", func() {
			So(compare(want, want[:1]), ShouldWrap, ErrMismatch)
		})

		Convey("Reports differing totals", func() {
			got := []model.StandingsRecord{rec("s1", model.SessionSummary{"a": 5, "b": -5}, want[0].AggregateTotals), want[1]}
			So(compare(want, got), ShouldWrap, ErrMismatch)
		})
	})
}
