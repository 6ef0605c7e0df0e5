// Package app builds and holds the long-lived services of a crawler process.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/api"
	"github.com/JakeFAU/district-staff-crawler/internal/checkpoint"
	"github.com/JakeFAU/district-staff-crawler/internal/config"
	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/enrich"
	"github.com/JakeFAU/district-staff-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/district-staff-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/district-staff-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/district-staff-crawler/internal/hash/sha256"
	"github.com/JakeFAU/district-staff-crawler/internal/headless/detector"
	"github.com/JakeFAU/district-staff-crawler/internal/id/uuid"
	"github.com/JakeFAU/district-staff-crawler/internal/pipeline"
	"github.com/JakeFAU/district-staff-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/district-staff-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/district-staff-crawler/internal/reference"
	"github.com/JakeFAU/district-staff-crawler/internal/storage"
	"github.com/JakeFAU/district-staff-crawler/internal/storage/gcs"
	"github.com/JakeFAU/district-staff-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/district-staff-crawler/internal/storage/memory"
	"github.com/JakeFAU/district-staff-crawler/internal/storage/postgres"
)

// App holds the shared services of one process. Run mode (save, concurrent)
// can be flipped between runs from the console.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string

	fetcher   crawler.Fetcher
	renderer  crawler.Renderer
	sink      crawler.Sink
	publisher crawler.Publisher
	cursor    *checkpoint.Cursor
	errors    *checkpoint.ErrorLog

	mu         sync.Mutex
	save       bool
	concurrent bool
	seeds      crawler.SeedList
	current    *pipeline.Pipeline
	closers    []func() error
}

// New builds every service cfg selects. It fails fast when a configured
// backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a := &App{
		cfg:        cfg,
		logger:     logger.With(zap.String("run_id", runID)),
		runID:      runID,
		cursor:     checkpoint.NewCursor(cfg.Checkpoint.Path),
		errors:     checkpoint.NewErrorLog(cfg.Checkpoint.ErrorsPath),
		save:       cfg.Crawler.Save,
		concurrent: cfg.Crawler.Concurrent,
	}

	a.fetcher = buildFetcher(cfg)
	if a.renderer, err = a.buildRenderer(cfg); err != nil {
		return nil, err
	}
	if a.sink, err = a.buildSink(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.publisher, err = a.buildPublisher(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("application services initialized",
		zap.String("sink", cfg.Output.Sink),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("save", a.save),
		zap.Bool("concurrent", a.concurrent),
	)
	return a, nil
}

func buildFetcher(cfg config.Config) crawler.Fetcher {
	f := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	if cfg.Crawler.RateLimitPerHost <= 0 {
		return f
	}
	return ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Crawler.RateLimitPerHost, DefaultBurst: 1}).Wrap(f)
}

func (a *App) buildRenderer(cfg config.Config) (crawler.Renderer, error) {
	if !cfg.Headless.Enabled {
		a.logger.Info("headless rendering disabled; embedded frames will be skipped")
		return headless.NewNoop(), nil
	}
	r, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Headless.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout(),
		SettleDelay:       cfg.SettleDelay(),
	})
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	a.closers = append(a.closers, func() error {
		r.Close()
		return nil
	})
	return r, nil
}

func (a *App) buildSink(ctx context.Context, cfg config.Config) (crawler.Sink, error) {
	switch cfg.Output.Sink {
	case config.SinkFile:
		sink, err := local.NewFileSink(cfg.Output.FilePath)
		if err != nil {
			return nil, fmt.Errorf("init file sink: %w", err)
		}
		return sink, nil
	case config.SinkPostgres:
		store, err := postgres.NewRecordStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		}, a.logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		return store, nil
	case config.SinkBlob:
		blobs, err := a.buildBlobStore(ctx, cfg.Output)
		if err != nil {
			return nil, err
		}
		sink, err := storage.NewBlobSink(blobs, sha256.New(), cfg.Output.Prefix, a.runID)
		if err != nil {
			return nil, fmt.Errorf("init blob sink: %w", err)
		}
		return sink, nil
	case config.SinkNone:
		return storage.NoopSink{}, nil
	default:
		return nil, fmt.Errorf("unknown output sink: %s", cfg.Output.Sink)
	}
}

func (a *App) buildBlobStore(ctx context.Context, out config.OutputConfig) (crawler.BlobStore, error) {
	switch out.BlobProvider {
	case config.BlobLocal:
		store, err := local.New(local.Config{BaseDir: out.BlobDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, nil
	case config.BlobMemory:
		return memorystorage.NewBlobStore(), nil
	case config.BlobGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: out.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob provider: %s", out.BlobProvider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, error) {
	if cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	pub, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{ProjectID: cfg.PubSub.ProjectID})
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunID identifies this process's run.
func (a *App) RunID() string { return a.runID }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Cursor returns the checkpoint cursor.
func (a *App) Cursor() *checkpoint.Cursor { return a.cursor }

// ErrorLog returns the per-seed error log.
func (a *App) ErrorLog() *checkpoint.ErrorLog { return a.errors }

// NextPosition returns the checkpoint position. When no checkpoint exists it
// returns 1 together with an error wrapping crawler.ErrConfigMissing.
func (a *App) NextPosition() (int, error) {
	next, err := a.cursor.Load()
	if err != nil && !errors.Is(err, crawler.ErrConfigMissing) {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	return next, err
}

// Errors lists the recorded seed failures by position.
func (a *App) Errors() ([]crawler.ErrorRecord, error) {
	records, err := a.errors.All()
	if err != nil {
		return nil, fmt.Errorf("read error log: %w", err)
	}
	return records, nil
}

// SetSave switches between default (persisting) and debug (dry-run) mode.
func (a *App) SetSave(save bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.save = save
}

// SetConcurrent switches between sequential and worker-pool mode.
func (a *App) SetConcurrent(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.concurrent = on
}

// Mode reports the current save and concurrent flags.
func (a *App) Mode() (save, concurrent bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.save, a.concurrent
}

// Seeds loads the reference dataset on first use and returns the same list afterwards.
func (a *App) Seeds() (crawler.SeedList, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seeds != nil {
		return a.seeds, nil
	}
	seeds, err := reference.Load(a.cfg.Reference.Path)
	if err != nil {
		return nil, fmt.Errorf("load reference dataset: %w", err)
	}
	a.seeds = seeds
	a.logger.Info("reference dataset loaded",
		zap.String("path", a.cfg.Reference.Path),
		zap.Int("seeds", len(seeds)),
	)
	return seeds, nil
}

// Pipeline builds a pipeline for the current mode over the loaded seeds.
func (a *App) Pipeline() (*pipeline.Pipeline, error) {
	seeds, err := a.Seeds()
	if err != nil {
		return nil, err
	}
	save, _ := a.Mode()
	extractor := extract.New(a.renderer, a.logger.Named("extract"))
	if a.cfg.Headless.Enabled && a.cfg.Headless.DetectShells {
		extractor.WithDetector(detector.NewHeuristic(0))
	}
	p, err := pipeline.New(seeds, pipeline.Deps{
		Fetcher:    a.fetcher,
		Extractor:  extractor,
		Enricher:   enrich.New(a.fetcher, a.cfg.Reference.State),
		Sink:       a.sink,
		Checkpoint: a.cursor,
		Errors:     a.errors,
		Publisher:  a.publisher,
		Logger:     a.logger,
	}, pipeline.Config{
		Save:    save,
		Topic:   a.cfg.PubSub.TopicName,
		Workers: a.cfg.Crawler.Workers,
		RunID:   a.runID,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return p, nil
}

// Start runs the pipeline in the current mode and returns its summary.
func (a *App) Start(ctx context.Context) (pipeline.Summary, error) {
	p, err := a.Pipeline()
	if err != nil {
		return pipeline.Summary{}, err
	}
	a.mu.Lock()
	a.current = p
	concurrent := a.concurrent
	a.mu.Unlock()

	if concurrent {
		return p.RunConcurrent(ctx)
	}
	return p.Run(ctx)
}

// Stats reports counters of the most recent run.
func (a *App) Stats() pipeline.Stats {
	a.mu.Lock()
	p := a.current
	a.mu.Unlock()
	if p == nil {
		return pipeline.Stats{}
	}
	return p.Stats()
}

// ResetPosition rewinds the checkpoint to the first seed.
func (a *App) ResetPosition() error {
	if err := a.cursor.Reset(); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}

// ResetErrors clears the error log.
func (a *App) ResetErrors() error {
	if err := a.errors.Reset(); err != nil {
		return fmt.Errorf("reset error log: %w", err)
	}
	return nil
}

// ErrResetUnsupported is returned by ResetData when the sink keeps no resettable output.
var ErrResetUnsupported = errors.New("output sink does not support reset")

// ResetData clears the accumulated output of sinks that support it.
func (a *App) ResetData(ctx context.Context) error {
	r, ok := a.sink.(crawler.Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	if err := r.Reset(ctx); err != nil {
		return fmt.Errorf("reset output: %w", err)
	}
	return nil
}

// StatusServer returns the operator HTTP server, or nil when metrics.addr is empty.
func (a *App) StatusServer() *api.Server {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	seeds := 0
	if list, err := a.Seeds(); err == nil {
		seeds = len(list)
	} else {
		a.logger.Warn("status server started without seed count", zap.Error(err))
	}
	return api.NewServer(a, a.cursor, a.errors, seeds, a.logger)
}

// StatusAddr is the listen address of the status server.
func (a *App) StatusAddr() string {
	return a.cfg.Metrics.Addr
}

// Close releases every backend in reverse order of construction.
func (a *App) Close() {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
