// Package queue holds finished games between submission and recording.
package queue

import (
	"context"
	"sync"

	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a game. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, g model.GameResult) bool
	// Dequeue returns a channel of queued games, closed once the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan model.GameResult
	// Len returns the current number of queued games.
	Len() int
	// Close stops accepting games. Queued games remain available to Dequeue.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	games    chan model.GameResult
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.games = make(chan model.GameResult, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue never blocks; a full buffer rejects the game.
func (q *InMemoryQueue) Enqueue(ctx context.Context, g model.GameResult) bool { //nolint:gocritic // hugeParam: games travel by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}
	select {
	case q.games <- g:
		metrics.UpdateQueueSize(len(q.games))
		return true
	default:
		return false
	}
}

// Dequeue forwards queued games until the queue is drained after Close or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.GameResult {
	out := make(chan model.GameResult)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case g, ok := <-q.games:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.games))
				select {
				case out <- g:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of queued games.
func (q *InMemoryQueue) Len() int {
	return len(q.games)
}

// Close stops accepting games. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.games)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
