// Package pipeline runs seeds through discovery, extraction, normalization and
// enrichment, then persists, checkpoints and reports each one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/discovery"
	"github.com/JakeFAU/district-staff-crawler/internal/dispatcher"
	"github.com/JakeFAU/district-staff-crawler/internal/extract"
	"github.com/JakeFAU/district-staff-crawler/internal/metrics"
	"github.com/JakeFAU/district-staff-crawler/internal/normalize"
	queuememory "github.com/JakeFAU/district-staff-crawler/internal/queue/memory"
	"github.com/JakeFAU/district-staff-crawler/internal/storage"
	"github.com/JakeFAU/district-staff-crawler/internal/worker"
)

// DefaultWorkers is the pool size used in concurrent mode when none is configured.
const DefaultWorkers = 20

// TableExtractor pulls raw tables out of a directory page.
type TableExtractor interface {
	Tables(ctx context.Context, doc *crawler.Document) ([]crawler.RawTable, error)
}

// Enricher adds district context to a batch of records.
type Enricher interface {
	Enrich(ctx context.Context, seed crawler.Seed, records []crawler.Record) ([]crawler.Record, error)
}

// Deps are the collaborators a Pipeline drives. Publisher is optional.
type Deps struct {
	Fetcher    crawler.Fetcher
	Extractor  TableExtractor
	Enricher   Enricher
	Sink       crawler.Sink
	Checkpoint crawler.Checkpoint
	Errors     crawler.ErrorLog
	Publisher  crawler.Publisher
	Logger     *zap.Logger
}

// Config tunes a run.
type Config struct {
	// Save persists batches through the sink. When false the run is a dry run.
	Save bool
	// Topic receives one Notification per completed seed when a Publisher is set.
	Topic string
	// Workers bounds concurrent mode.
	Workers int
	// RunID tags notifications and log lines.
	RunID string
}

// SeedResult is the outcome of processing one seed.
type SeedResult struct {
	Seed crawler.Seed
	// Stage is StageDone or StageFailed once processing returns.
	Stage crawler.Stage
	// Batches holds one record batch per relevant directory table, in discovery order.
	Batches     [][]crawler.Record
	Directories int
	// Err is a *crawler.StageError when Stage is StageFailed.
	Err error
}

// Records counts the records across all batches.
func (r SeedResult) Records() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b)
	}
	return n
}

func (r *SeedResult) fail(stage crawler.Stage, err error) SeedResult {
	r.Stage = crawler.StageFailed
	r.Err = &crawler.StageError{Stage: stage, Err: err}
	return *r
}

// Notification is published after each seed completes.
type Notification struct {
	RunID       string        `json:"run_id,omitempty"`
	Position    int           `json:"position"`
	URL         string        `json:"url"`
	District    string        `json:"district,omitempty"`
	Stage       crawler.Stage `json:"stage"`
	FailedStage crawler.Stage `json:"failed_stage,omitempty"`
	Batches     int           `json:"batches"`
	Records     int           `json:"records"`
	Error       string        `json:"error,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Summary aggregates a run.
type Summary struct {
	Start     int `json:"start"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Records   int `json:"records"`
}

func (s *Summary) add(res SeedResult) {
	s.Processed++
	s.Records += res.Records()
	if res.Stage == crawler.StageFailed {
		s.Failed++
	}
}

// Stats is a point-in-time view of pipeline progress.
type Stats struct {
	Running   bool `json:"running"`
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
	Records   int  `json:"records"`
}

// Pipeline owns the seed list for a run and processes it sequentially or
// through a bounded worker pool.
type Pipeline struct {
	seeds      crawler.SeedList
	fetcher    crawler.Fetcher
	extractor  TableExtractor
	enricher   Enricher
	sink       crawler.Sink
	checkpoint crawler.Checkpoint
	errors     crawler.ErrorLog
	publisher  crawler.Publisher
	logger     *zap.Logger
	cfg        Config
	now        func() time.Time

	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
	records   atomic.Int64
}

// New constructs a Pipeline over seeds.
func New(seeds crawler.SeedList, deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Enricher == nil:
		return nil, fmt.Errorf("enricher is required")
	case deps.Checkpoint == nil:
		return nil, fmt.Errorf("checkpoint is required")
	case deps.Errors == nil:
		return nil, fmt.Errorf("error log is required")
	}
	sink := deps.Sink
	if sink == nil || !cfg.Save {
		sink = storage.NoopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Pipeline{
		seeds:      seeds,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		enricher:   deps.Enricher,
		sink:       sink,
		checkpoint: deps.Checkpoint,
		errors:     deps.Errors,
		publisher:  deps.Publisher,
		logger:     logger.Named("pipeline"),
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Seeds returns the run's seed list.
func (p *Pipeline) Seeds() crawler.SeedList {
	return p.seeds
}

// Stats reports progress counters since the Pipeline was built.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Running:   p.running.Load(),
		Processed: int(p.processed.Load()),
		Failed:    int(p.failed.Load()),
		Records:   int(p.records.Load()),
	}
}

// Run processes seeds one at a time in position order, starting from the
// checkpoint, and advances the checkpoint after each seed whatever its outcome.
// Cancelling ctx stops the run before the next seed; the seed in flight finishes.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start, err := p.start()
	if err != nil {
		return Summary{}, err
	}
	p.running.Store(true)
	defer p.running.Store(false)

	sum := Summary{Start: start}
	p.logger.Info("run started",
		zap.String("run_id", p.cfg.RunID),
		zap.Int("start", start),
		zap.Int("seeds", len(p.seeds)),
	)
	for _, seed := range p.seeds.From(start) {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("run stopped before seed %d: %w", seed.Position, err)
		}
		seedCtx := context.WithoutCancel(ctx)
		res := p.complete(seedCtx, p.ProcessSeed(seedCtx, seed))
		sum.add(res)
		if err := p.checkpoint.Advance(seed.Position); err != nil {
			return sum, fmt.Errorf("advance checkpoint past seed %d: %w", seed.Position, err)
		}
		metrics.SetCheckpoint(seed.Position + 1)
	}
	p.logger.Info("run finished",
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
		zap.Int("records", sum.Records),
	)
	return sum, nil
}

// RunConcurrent dispatches seeds to a pool of cfg.Workers workers. The
// checkpoint advances when a worker takes a seed, not when it finishes, so a
// crash can lose the results of seeds that were in flight. Cancelling ctx
// stops dispatch; seeds already dispatched run to completion.
func (p *Pipeline) RunConcurrent(ctx context.Context) (Summary, error) {
	start, err := p.start()
	if err != nil {
		return Summary{}, err
	}
	p.running.Store(true)
	defer p.running.Store(false)

	var (
		mu  sync.Mutex
		sum = Summary{Start: start}
	)
	handler := worker.HandlerFunc(func(ctx context.Context, seed crawler.Seed) {
		res := p.complete(ctx, p.ProcessSeed(ctx, seed))
		mu.Lock()
		sum.add(res)
		mu.Unlock()
	})

	// Unbuffered, so a seed counts as dispatched only once a worker has it.
	queue := queuememory.NewQueue(0)
	workers := make([]*worker.Worker, p.cfg.Workers)
	for i := range workers {
		workers[i] = worker.New(i+1, queue, handler, p.logger)
	}
	d := dispatcher.New(queue, workers, p.logger)

	p.logger.Info("concurrent run started",
		zap.String("run_id", p.cfg.RunID),
		zap.Int("start", start),
		zap.Int("workers", p.cfg.Workers),
	)
	dispatched, runErr := d.Run(ctx, p.seeds.From(start), func(seed crawler.Seed) error {
		if err := p.checkpoint.Advance(seed.Position); err != nil {
			return fmt.Errorf("advance checkpoint past seed %d: %w", seed.Position, err)
		}
		metrics.SetCheckpoint(seed.Position + 1)
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	p.logger.Info("concurrent run finished",
		zap.Int("dispatched", dispatched),
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
		zap.Int("records", sum.Records),
	)
	return sum, runErr
}

func (p *Pipeline) start() (int, error) {
	start, err := p.checkpoint.Load()
	switch {
	case errors.Is(err, crawler.ErrConfigMissing):
		p.logger.Info("no checkpoint found, starting from the first seed")
		start = 1
	case err != nil:
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	metrics.SetCheckpoint(start)
	return start, nil
}

// ProcessSeed walks one seed through every stage. Only root fetch and site
// discovery failures abort the seed outright; sub-site and directory failures
// are logged and skipped. An enrichment failure ends the seed as failed but
// keeps the batches of the directories completed before it.
func (p *Pipeline) ProcessSeed(ctx context.Context, seed crawler.Seed) SeedResult {
	log := p.logger.With(zap.Int("seed_position", seed.Position), zap.String("url", seed.URL))
	res := SeedResult{Seed: seed, Stage: crawler.StagePending}

	res.Stage = crawler.StageFetchingRoot
	page, err := p.fetcher.Fetch(ctx, seed.URL)
	if err != nil {
		return res.fail(crawler.StageFetchingRoot, err)
	}

	res.Stage = crawler.StageDiscoveringSites
	root, err := crawler.ParseDocument(seed.URL, page.Body)
	if err != nil {
		return res.fail(crawler.StageDiscoveringSites, err)
	}
	sites := discovery.SubSites(root)
	log.Debug("sub-sites discovered", zap.Int("count", len(sites)))

	res.Stage = crawler.StageDiscoveringDirectories
	dirs := p.directories(ctx, log, sites)
	res.Directories = len(dirs)
	if len(dirs) == 0 {
		log.Info("no directories found")
	}

	for _, dir := range dirs {
		res.Stage = crawler.StageExtracting
		tables, err := p.tables(ctx, dir)
		if err != nil {
			log.Warn("directory skipped", zap.String("directory", dir), zap.Error(err))
			continue
		}
		// Batches join the result only once their directory completes.
		var dirBatches [][]crawler.Record
		for _, table := range tables {
			if !extract.IsRelevant(table) {
				continue
			}
			res.Stage = crawler.StageNormalizing
			records := normalize.Table(table)
			if len(records) == 0 {
				continue
			}
			res.Stage = crawler.StageEnriching
			enriched, err := p.enricher.Enrich(ctx, seed, records)
			if err != nil {
				return res.fail(crawler.StageEnriching, err)
			}
			dirBatches = append(dirBatches, enriched)
		}
		res.Batches = append(res.Batches, dirBatches...)
	}
	res.Stage = crawler.StageDone
	return res
}

// directories fetches each sub-site and returns the resolved directory URLs,
// deduplicated across sub-sites in discovery order.
func (p *Pipeline) directories(ctx context.Context, log *zap.Logger, sites []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, site := range sites {
		page, err := p.fetcher.Fetch(ctx, site)
		if err != nil {
			log.Warn("sub-site skipped", zap.String("site", site), zap.Error(err))
			continue
		}
		doc, err := crawler.ParseDocument(site, page.Body)
		if err != nil {
			log.Warn("sub-site skipped", zap.String("site", site), zap.Error(err))
			continue
		}
		hrefs := discovery.Directories(doc)
		if len(hrefs) == 0 {
			log.Debug("no directories on sub-site", zap.String("site", site))
			continue
		}
		for _, dir := range discovery.ResolveDirectories(site, hrefs) {
			if _, ok := seen[dir]; ok {
				continue
			}
			seen[dir] = struct{}{}
			out = append(out, dir)
		}
	}
	return out
}

func (p *Pipeline) tables(ctx context.Context, dir string) ([]crawler.RawTable, error) {
	page, err := p.fetcher.Fetch(ctx, dir)
	if err != nil {
		return nil, err
	}
	doc, err := crawler.ParseDocument(dir, page.Body)
	if err != nil {
		return nil, err
	}
	tables, err := p.extractor.Tables(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract tables from %s: %w", dir, err)
	}
	return tables, nil
}

// complete persists, records and reports a finished seed and returns the final
// result. A persistence failure fails an otherwise successful seed; other
// failures here are logged and never stop the run.
func (p *Pipeline) complete(ctx context.Context, res SeedResult) SeedResult {
	log := p.logger.With(zap.Int("seed_position", res.Seed.Position), zap.String("url", res.Seed.URL))

	if p.cfg.Save && len(res.Batches) > 0 {
		if err := p.sink.Save(ctx, res.Seed, res.Batches); err != nil {
			if res.Err == nil {
				res.Stage = crawler.StageFailed
				res.Err = &crawler.StageError{Stage: crawler.StagePersisting, Err: err}
			} else {
				log.Error("persist failed", zap.Error(err))
			}
		}
	}

	failedStage, _ := crawler.FailedStage(res.Err)
	if res.Stage == crawler.StageFailed {
		if err := p.errors.Record(crawler.ErrorRecord{Position: res.Seed.Position, Message: res.Err.Error()}); err != nil {
			log.Error("error log write failed", zap.Error(err))
		}
		log.Warn("seed failed",
			zap.String("stage", string(failedStage)),
			zap.Int("batches", len(res.Batches)),
			zap.Error(res.Err),
		)
	} else {
		log.Info("seed done",
			zap.Int("directories", res.Directories),
			zap.Int("batches", len(res.Batches)),
			zap.Int("records", res.Records()),
		)
	}

	p.notify(ctx, log, res, failedStage)

	outcome, stage := "done", string(crawler.StageDone)
	if res.Stage == crawler.StageFailed {
		outcome, stage = "failed", string(failedStage)
		p.failed.Add(1)
	}
	p.processed.Add(1)
	p.records.Add(int64(res.Records()))
	metrics.ObserveSeed(outcome, stage, res.Records())
	return res
}

func (p *Pipeline) notify(ctx context.Context, log *zap.Logger, res SeedResult, failedStage crawler.Stage) {
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	n := Notification{
		RunID:       p.cfg.RunID,
		Position:    res.Seed.Position,
		URL:         res.Seed.URL,
		District:    res.Seed.District,
		Stage:       res.Stage,
		FailedStage: failedStage,
		Batches:     len(res.Batches),
		Records:     res.Records(),
		CompletedAt: p.now(),
	}
	if res.Err != nil {
		n.Error = res.Err.Error()
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, n); err != nil {
		log.Warn("notification publish failed", zap.Error(err))
	}
}
