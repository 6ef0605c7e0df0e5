package dispatcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/queue/memory"
	"github.com/JakeFAU/district-staff-crawler/internal/worker"
)

type collector struct {
	mu    sync.Mutex
	seen  []int
	block chan struct{}
}

func (c *collector) Handle(_ context.Context, seed crawler.Seed) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, seed.Position)
}

func (c *collector) sorted() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]int(nil), c.seen...)
	sort.Ints(out)
	return out
}

func seeds(n int) crawler.SeedList {
	out := make(crawler.SeedList, n)
	for i := range out {
		out[i] = crawler.Seed{Position: i + 1}
	}
	return out
}

func pool(q crawler.Queue, h worker.Handler, n int) []*worker.Worker {
	workers := make([]*worker.Worker, n)
	for i := range workers {
		workers[i] = worker.New(i, q, h, zap.NewNop())
	}
	return workers
}

func TestDispatcherRunProcessesEverySeed(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(0)
	h := &collector{}
	var mu sync.Mutex
	var dispatched []int

	n, err := New(q, pool(q, h, 4), zap.NewNop()).Run(context.Background(), seeds(25), func(s crawler.Seed) error {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, s.Position)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Len(t, h.sorted(), 25)
	for i, p := range dispatched {
		assert.Equal(t, i+1, p, "dispatch order")
	}
}

func TestDispatcherCancelStopsDispatchButFinishesInFlight(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(0)
	h := &collector{block: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := New(q, pool(q, h, 2), zap.NewNop()).Run(ctx, seeds(10), nil)
		done <- result{n, err}
	}()

	// Both workers are now blocked in Handle; dispatch waits on the third seed.
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(h.block)

	select {
	case res := <-done:
		require.ErrorIs(t, res.err, context.Canceled)
		assert.Equal(t, 2, res.n)
		assert.Equal(t, []int{1, 2}, h.sorted())
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not return after cancel")
	}
}

func TestDispatcherHookErrorsDoNotStopDispatch(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(0)
	h := &collector{}

	n, err := New(q, pool(q, h, 1), nil).Run(context.Background(), seeds(3), func(crawler.Seed) error {
		return errors.New("disk full")
	})

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, h.sorted())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, crawler.Seed) error { return q.err }

func (q *errorQueue) Dequeue(context.Context) (crawler.Seed, error) {
	return crawler.Seed{}, crawler.ErrQueueClosed
}

func (q *errorQueue) Close() {}

func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(&errorQueue{err: errors.New("boom")}, nil, nil)

	err := dispatch.Enqueue(context.Background(), crawler.Seed{Position: 1})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
