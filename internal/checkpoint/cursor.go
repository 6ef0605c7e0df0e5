package checkpoint

import (
	"fmt"
	"sync"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// StartPosition is the first seed position.
const StartPosition = 1

type cursorState struct {
	Cache int `json:"cache"`
}

// Cursor stores the next unprocessed seed position in a JSON file of the
// form {"cache": n}. It is safe for concurrent use.
type Cursor struct {
	path string

	mu   sync.Mutex
	next int
}

// NewCursor returns a Cursor backed by path. The file is not touched until
// Load, Advance or Reset is called.
func NewCursor(path string) *Cursor {
	return &Cursor{path: path}
}

// Path returns the backing file path.
func (c *Cursor) Path() string {
	return c.path
}

// Load returns the next position to process. It returns
// crawler.ErrConfigMissing when no checkpoint has been written yet.
func (c *Cursor) Load() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st cursorState
	if err := readJSON(c.path, &st); err != nil {
		if notExist(err) {
			return StartPosition, fmt.Errorf("checkpoint %s: %w", c.path, crawler.ErrConfigMissing)
		}
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if st.Cache < StartPosition {
		st.Cache = StartPosition
	}
	if st.Cache > c.next {
		c.next = st.Cache
	}
	return st.Cache, nil
}

// Advance records that position has been handled, so the next position is
// position+1. Calls that would not move the cursor forward are no-ops.
func (c *Cursor) Advance(position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := position + 1
	if next <= c.next {
		return nil
	}
	if err := writeJSON(c.path, cursorState{Cache: next}); err != nil {
		return fmt.Errorf("advance checkpoint to %d: %w", next, err)
	}
	c.next = next
	return nil
}

// Reset rewinds the cursor to the first position.
func (c *Cursor) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeJSON(c.path, cursorState{Cache: StartPosition}); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	c.next = StartPosition
	return nil
}
