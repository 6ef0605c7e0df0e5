// Package storage holds the output sinks that persist per-seed record batches.
// Concrete backends live in subpackages: local files, Postgres, GCS and memory.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// NoopSink discards every batch. It backs debug mode and the "none" sink.
type NoopSink struct{}

// Save does nothing and always returns nil.
func (NoopSink) Save(context.Context, crawler.Seed, [][]crawler.Record) error {
	return nil
}

// SeedDocument is the JSON object written per seed by BlobSink.
type SeedDocument struct {
	RunID   string             `json:"run_id,omitempty"`
	Seed    crawler.Seed       `json:"seed"`
	SavedAt time.Time          `json:"saved_at"`
	Batches [][]crawler.Record `json:"batches"`
}

// BlobSink writes one JSON object per seed to a blob store.
type BlobSink struct {
	store  crawler.BlobStore
	hasher crawler.Hasher
	prefix string
	runID  string
	now    func() time.Time
}

// NewBlobSink constructs a BlobSink. Objects are named
// <prefix>/<run id>/<position>-<url hash>.json.
func NewBlobSink(store crawler.BlobStore, hasher crawler.Hasher, prefix, runID string) (*BlobSink, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	return &BlobSink{
		store:  store,
		hasher: hasher,
		prefix: strings.Trim(prefix, "/"),
		runID:  runID,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Save uploads the seed's batches.
func (s *BlobSink) Save(ctx context.Context, seed crawler.Seed, batches [][]crawler.Record) error {
	data, err := json.Marshal(SeedDocument{
		RunID:   s.runID,
		Seed:    seed,
		SavedAt: s.now(),
		Batches: batches,
	})
	if err != nil {
		return fmt.Errorf("encode seed %d: %w", seed.Position, err)
	}
	key, err := s.objectPath(seed)
	if err != nil {
		return err
	}
	if _, err := s.store.PutObject(ctx, key, "application/json", data); err != nil {
		return fmt.Errorf("put seed %d: %w", seed.Position, err)
	}
	return nil
}

func (s *BlobSink) objectPath(seed crawler.Seed) (string, error) {
	digest, err := s.hasher.Hash([]byte(seed.URL))
	if err != nil {
		return "", fmt.Errorf("hash seed url: %w", err)
	}
	if len(digest) > 12 {
		digest = digest[:12]
	}
	name := fmt.Sprintf("%06d-%s.json", seed.Position, digest)
	return path.Join(s.prefix, s.runID, name), nil
}
