// Package memory provides an in-process seed queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// Queue is a bounded in-memory queue with context-aware operations. A
// capacity of zero makes Enqueue block until a worker takes the seed.
type Queue struct {
	ch      chan crawler.Seed
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan crawler.Seed, capacity),
	}
}

// Enqueue pushes a seed into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, seed crawler.Seed) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- seed:
		return nil
	}
}

// Dequeue pops the next seed. Once the queue is closed and drained it
// returns crawler.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (crawler.Seed, error) {
	select {
	case <-ctx.Done():
		return crawler.Seed{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case seed, ok := <-q.ch:
		if !ok {
			return crawler.Seed{}, crawler.ErrQueueClosed
		}
		return seed, nil
	}
}

// Close stops accepting seeds. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
