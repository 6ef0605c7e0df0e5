package checkpoint

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// ErrorLog persists one failure message per seed position as a JSON object
// keyed by the decimal position. Recording the same position again replaces
// the previous message.
type ErrorLog struct {
	path string
	mu   sync.Mutex
}

// NewErrorLog returns an ErrorLog backed by path.
func NewErrorLog(path string) *ErrorLog {
	return &ErrorLog{path: path}
}

// Record stores rec, replacing any earlier entry for the same position.
func (l *ErrorLog) Record(rec crawler.ErrorRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	entries[strconv.Itoa(rec.Position)] = rec.Message
	if err := writeJSON(l.path, entries); err != nil {
		return fmt.Errorf("record error for seed %d: %w", rec.Position, err)
	}
	return nil
}

// All returns the recorded failures ordered by position. A missing file is
// an empty log.
func (l *ErrorLog) All() ([]crawler.ErrorRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	out := make([]crawler.ErrorRecord, 0, len(entries))
	for k, msg := range entries {
		pos, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out = append(out, crawler.ErrorRecord{Position: pos, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Reset clears the log.
func (l *ErrorLog) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := writeJSON(l.path, map[string]string{}); err != nil {
		return fmt.Errorf("reset error log: %w", err)
	}
	return nil
}

func (l *ErrorLog) read() (map[string]string, error) {
	entries := make(map[string]string)
	if err := readJSON(l.path, &entries); err != nil {
		if notExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("load error log: %w", err)
	}
	return entries, nil
}
