package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/riichi/internal/adapters/mq/queue"
	"github.com/okian/riichi/internal/adapters/mq/worker"
	"github.com/okian/riichi/internal/adapters/repository"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

var endTime = time.Date(2020, 5, 1, 20, 0, 0, 0, time.UTC)

func finishedGame(majsoulID string, seats int) model.GameResult {
	g := model.GameResult{MajsoulID: majsoulID, ContestMajsoulID: 900, EndTime: endTime}
	for i := 0; i < seats; i++ {
		g.Players = append(g.Players, model.PlayerRef{ID: fmt.Sprintf("p%d", i)})
		g.FinalScore = append(g.FinalScore, model.FinalScore{Score: 25000})
	}
	return g
}

func newStore(t *testing.T) *repository.MemoryStore {
	s := repository.NewMemoryStore()
	if _, err := s.SaveContest(context.Background(), model.Contest{ID: "c1", MajsoulID: 900}); err != nil {
		t.Fatalf("seed contest: %v", err)
	}
	return s
}

// failingRecorder fails every store call.
type failingRecorder struct{}

func (failingRecorder) ContestByMajsoulID(context.Context, int64) (model.Contest, error) {
	return model.Contest{ID: "c1"}, nil
}

func (failingRecorder) IsGameRecorded(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingRecorder) RecordGame(context.Context, model.GameResult) (model.GameResult, error) {
	return model.GameResult{}, errors.New("connection refused")
}

func TestWorkerProcess(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a worker over a memory store", t, func() {
		store := newStore(t)
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), store)

		convey.Convey("When a complete game arrives", func() {
			outcome, err := w.Process(ctx, finishedGame("m1", 4))

			convey.Convey("Then it is recorded against the contest resolved by majsoul id", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeRecorded)
				games, _ := store.ContestGames(ctx, "c1")
				convey.So(games, convey.ShouldHaveLength, 1)
				convey.So(games[0].ContestID, convey.ShouldEqual, "c1")
			})
		})

		convey.Convey("When the same game arrives twice", func() {
			_, _ = w.Process(ctx, finishedGame("m1", 4))
			outcome, err := w.Process(ctx, finishedGame("m1", 4))

			convey.Convey("Then the second is skipped as a duplicate", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeDuplicate)
				games, _ := store.ContestGames(ctx, "c1")
				convey.So(games, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When a three-player game arrives", func() {
			outcome, err := w.Process(ctx, finishedGame("m3", 3))

			convey.Convey("Then it is rejected as malformed and not recorded", func() {
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeRejected)
				convey.So(errors.Is(err, model.ErrMalformedGame), convey.ShouldBeTrue)
				ok, _ := store.IsGameRecorded(ctx, "m3")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the game belongs to an unknown contest", func() {
			g := finishedGame("m4", 4)
			g.ContestMajsoulID = 12345
			outcome, err := w.Process(ctx, g)

			convey.So(outcome, convey.ShouldEqual, worker.OutcomeRejected)
			convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a worker whose store is down", t, func() {
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), failingRecorder{})
		outcome, err := w.Process(ctx, finishedGame("m1", 4))

		convey.So(outcome, convey.ShouldEqual, worker.OutcomeRejected)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers draining a queue", t, func() {
		ctx := context.Background()
		store := newStore(t)
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		pool := worker.NewPool(3, q, store)
		pool.Start(ctx)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, finishedGame(fmt.Sprintf("m%d", i), 4)), convey.ShouldBeTrue)
		}
		// one duplicate and one malformed game
		q.Enqueue(ctx, finishedGame("m0", 4))
		q.Enqueue(ctx, finishedGame("bad", 2))

		convey.Convey("When the queue is closed and the pool waited on", func() {
			_ = q.Close()
			waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Wait(waitCtx)

			convey.Convey("Then every queued game was handled exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(pool.Processed(), convey.ShouldEqual, 22)
				games, _ := store.ContestGames(ctx, "c1")
				convey.So(games, convey.ShouldHaveLength, 20)
			})
		})
	})

	convey.Convey("Given a pool whose run context is cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		pool := worker.NewPool(2, queue.NewInMemoryQueue(), newStore(t))
		pool.Start(ctx)
		cancel()

		waitCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		convey.So(pool.Wait(waitCtx), convey.ShouldBeNil)
	})
}

func TestConcurrentDuplicates(t *testing.T) {
	convey.Convey("Given many workers racing on the same game", t, func() {
		ctx := context.Background()
		store := newStore(t)
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), store)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = w.Process(ctx, finishedGame("same", 4))
			}()
		}
		wg.Wait()

		convey.Convey("Then the store holds it once", func() {
			games, _ := store.ContestGames(ctx, "c1")
			convey.So(games, convey.ShouldHaveLength, 1)
		})
	})
}
