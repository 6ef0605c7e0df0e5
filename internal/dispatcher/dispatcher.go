// Package dispatcher fans seeds out to a pool of workers.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/worker"
)

// Dispatcher feeds a queue consumed by a fixed set of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run enqueues seeds in order, calling onDispatch after each successful
// enqueue, then closes the queue and waits for the workers to drain it.
// Cancelling ctx stops dispatch only: workers run on a context detached from
// ctx so that every dispatched seed is finished. It returns the number of
// seeds dispatched and ctx's error if dispatch was cut short.
func (d *Dispatcher) Run(ctx context.Context, seeds crawler.SeedList, onDispatch func(crawler.Seed) error) (int, error) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, w := range d.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	dispatched := 0
	var dispatchErr error
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			dispatchErr = fmt.Errorf("dispatch stopped: %w", err)
			break
		}
		if err := d.Enqueue(ctx, seed); err != nil {
			dispatchErr = err
			break
		}
		dispatched++
		if onDispatch == nil {
			continue
		}
		if err := onDispatch(seed); err != nil {
			d.logger.Error("dispatch hook failed",
				zap.Int("seed_position", seed.Position),
				zap.Error(err),
			)
		}
	}
	d.queue.Close()

	if err := g.Wait(); err != nil {
		return dispatched, fmt.Errorf("workers: %w", err)
	}
	return dispatched, dispatchErr
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, seed crawler.Seed) error {
	if err := d.queue.Enqueue(ctx, seed); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
