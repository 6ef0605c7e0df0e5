// Package worker implements the seed consumption loop used in concurrent mode.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/metrics"
)

// Handler processes one seed end to end. It owns error isolation, so it
// reports nothing back to the worker.
type Handler interface {
	Handle(ctx context.Context, seed crawler.Seed)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, seed crawler.Seed)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, seed crawler.Seed) {
	f(ctx, seed)
}

// Worker consumes seeds from a queue until it is closed.
type Worker struct {
	id      int
	queue   crawler.Queue
	handler Handler
	logger  *zap.Logger
}

// New constructs a Worker.
func New(id int, queue crawler.Queue, handler Handler, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:      id,
		queue:   queue,
		handler: handler,
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, handling seeds until the queue is closed and drained (nil) or
// ctx ends (ctx error).
func (w *Worker) Run(ctx context.Context) error {
	for {
		seed, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return fmt.Errorf("worker %d: %w", w.id, ctx.Err())
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued seed",
			zap.Int("seed_position", seed.Position),
			zap.String("url", seed.URL),
		)
		w.handle(ctx, seed)
	}
}

func (w *Worker) handle(ctx context.Context, seed crawler.Seed) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	w.handler.Handle(ctx, seed)
}
