// Package worker drains the game queue into the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/okian/riichi/internal/adapters/repository"
	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/pkg/logger"
	"github.com/okian/riichi/pkg/metrics"
)

// Outcomes of processing one game.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// Recorder is the slice of the store workers write through.
type Recorder interface {
	ContestByMajsoulID(ctx context.Context, majsoulID int64) (model.Contest, error)
	IsGameRecorded(ctx context.Context, majsoulID string) (bool, error)
	RecordGame(ctx context.Context, g model.GameResult) (model.GameResult, error)
}

// Queue defines how workers receive games.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.GameResult
}

// InMemoryWorker records games read from a Queue.
type InMemoryWorker struct {
	queue    Queue
	recorder Recorder
	name     string
	logger   logger.Logger

	processed atomic.Int64
	done      chan struct{}
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		recorder: recorder,
		name:     "worker",
		logger:   logger.Nop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes games until the queue is drained and closed or ctx ends.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for g := range w.queue.Dequeue(ctx) {
		outcome, err := w.Process(ctx, g)
		w.processed.Add(1)
		if err != nil {
			w.logger.Error(ctx, "game not recorded",
				logger.String("majsoul_id", g.MajsoulID),
				logger.String("outcome", outcome),
				logger.Error(err),
			)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Processed returns the number of games handled, whatever the outcome.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Process records one game and reports its outcome. Duplicates are not errors.
func (w *InMemoryWorker) Process(ctx context.Context, g model.GameResult) (string, error) { //nolint:gocritic // hugeParam: games travel by value through the queue
	if err := g.Validate(); err != nil {
		metrics.RecordGameRejected("malformed")
		return OutcomeRejected, err
	}

	if g.ContestID == "" {
		contest, err := w.recorder.ContestByMajsoulID(ctx, g.ContestMajsoulID)
		if err != nil {
			metrics.RecordGameRejected("unknown_contest")
			return OutcomeRejected, fmt.Errorf("resolve contest %d: %w", g.ContestMajsoulID, err)
		}
		g.ContestID = contest.ID
	}

	if g.MajsoulID != "" {
		recorded, err := w.recorder.IsGameRecorded(ctx, g.MajsoulID)
		if err != nil {
			metrics.RecordGameRejected("store_error")
			return OutcomeRejected, fmt.Errorf("check game %s: %w", g.MajsoulID, err)
		}
		if recorded {
			metrics.RecordGameDuplicate()
			return OutcomeDuplicate, nil
		}
	}

	saved, err := w.recorder.RecordGame(ctx, g)
	if errors.Is(err, repository.ErrDuplicateGame) {
		metrics.RecordGameDuplicate()
		return OutcomeDuplicate, nil
	}
	if err != nil {
		metrics.RecordGameRejected("store_error")
		return OutcomeRejected, fmt.Errorf("record game %s: %w", g.MajsoulID, err)
	}

	metrics.RecordGameRecorded()
	w.logger.Debug(ctx, "game recorded",
		logger.String("game", saved.ID),
		logger.String("contest", saved.ContestID),
	)
	return OutcomeRecorded, nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates workerCount workers. A non-positive count uses one
// worker per CPU.
func NewPool(workerCount int, queue Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{workers: make([]*InMemoryWorker, workerCount), logger: logger.Nop()}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, recorder, wopts...)
		if i == 0 {
			p.logger = p.workers[0].logger
		}
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed sums the games handled by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Wait blocks until every worker has exited or ctx ends. The caller must
// close the queue (or cancel the Run context) for workers to exit.
func (p *Pool) Wait(ctx context.Context) error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
