package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// FileSink accumulates every seed's batches into a single JSON object keyed
// by seed URL. The file is rewritten atomically on each Save.
type FileSink struct {
	path string

	mu      sync.Mutex
	loaded  bool
	results map[string]json.RawMessage
}

// NewFileSink returns a sink writing to path. The file is read lazily on first Save.
func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("results path is required")
	}
	return &FileSink{path: path}, nil
}

// Path returns the results file location.
func (s *FileSink) Path() string { return s.path }

// Save stores batches under seed.URL, replacing any earlier entry for it.
func (s *FileSink) Save(_ context.Context, seed crawler.Seed, batches [][]crawler.Record) error {
	if batches == nil {
		batches = [][]crawler.Record{}
	}
	encoded, err := json.Marshal(batches)
	if err != nil {
		return fmt.Errorf("encode seed %d: %w", seed.Position, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.results[seed.URL] = encoded
	return s.flushLocked()
}

// Results returns the raw batches stored per seed URL.
func (s *FileSink) Results() (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out, nil
}

// Reset truncates the results to an empty object.
func (s *FileSink) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]json.RawMessage)
	s.loaded = true
	return s.flushLocked()
}

func (s *FileSink) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.results = make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read results %s: %w", s.path, err)
	case len(strings.TrimSpace(string(data))) > 0:
		if err := json.Unmarshal(data, &s.results); err != nil {
			return fmt.Errorf("decode results %s: %w", s.path, err)
		}
	}
	s.loaded = true
	return nil
}

func (s *FileSink) flushLocked() error {
	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	return writeFileAtomic(s.path, data)
}
