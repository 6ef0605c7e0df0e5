// Package postgres persists staff records into one Postgres table per seed URL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/hash/sha256"
)

// maxIdentifierLen is Postgres' NAMEDATALEN-1.
const maxIdentifierLen = 63

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes each seed's records into a table named after the seed
// URL. The table's TEXT columns come from the first record saved for it;
// later records carrying extra columns are logged and their inserts fail.
type RecordStore struct {
	pool   execCloser
	logger *zap.Logger

	mu      sync.Mutex
	columns map[string]map[string]struct{}
}

// NewRecordStore connects to Postgres using cfg.
func NewRecordStore(ctx context.Context, cfg Config, logger *zap.Logger) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewRecordStoreWithPool(pool, logger)
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, logger *zap.Logger) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		pool:    pool,
		logger:  logger,
		columns: make(map[string]map[string]struct{}),
	}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TableName maps a seed URL to a Postgres identifier of at most 63 bytes.
func TableName(seedURL string) string {
	return sha256.Shorten(seedURL, maxIdentifierLen)
}

// Save creates the seed's table if needed and inserts every record. Insert
// failures do not stop the remaining inserts; they are joined and returned.
func (s *RecordStore) Save(ctx context.Context, seed crawler.Seed, batches [][]crawler.Record) error {
	first, ok := firstRecord(batches)
	if !ok {
		return nil
	}
	table := pgx.Identifier{TableName(seed.URL)}.Sanitize()
	known, err := s.ensureTable(ctx, table, columns(first))
	if err != nil {
		return err
	}

	var errs []error
	for _, batch := range batches {
		for _, rec := range batch {
			if drift := missing(known, columns(rec)); len(drift) > 0 {
				s.logger.Warn("record has columns missing from table",
					zap.Int("seed_position", seed.Position),
					zap.String("table", table),
					zap.Strings("columns", drift),
				)
			}
			if err := s.insert(ctx, table, rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("insert records for seed %d: %w", seed.Position, err)
	}
	return nil
}

func (s *RecordStore) ensureTable(ctx context.Context, table string, keys []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if known, ok := s.columns[table]; ok {
		return known, nil
	}

	defs := make([]string, len(keys))
	known := make(map[string]struct{}, len(keys))
	for i, k := range keys {
		defs[i] = pgx.Identifier{k}.Sanitize() + " TEXT"
		known[k] = struct{}{}
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	s.columns[table] = known
	return known, nil
}

func (s *RecordStore) insert(ctx context.Context, table string, rec crawler.Record) error {
	keys := columns(rec)
	values := rec.Map()
	cols := make([]string, len(keys))
	params := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = pgx.Identifier{k}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[k]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(params, ", "))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// columns lists the record keys usable as column names. Postgres rejects
// zero-length identifiers, so blank keys are left out.
func columns(rec crawler.Record) []string {
	keys := rec.Keys()
	out := keys[:0]
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			out = append(out, k)
		}
	}
	return out
}

func firstRecord(batches [][]crawler.Record) (crawler.Record, bool) {
	for _, b := range batches {
		if len(b) > 0 {
			return b[0], true
		}
	}
	return crawler.Record{}, false
}

func missing(known map[string]struct{}, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
