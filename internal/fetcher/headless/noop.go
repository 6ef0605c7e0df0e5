package headless

import (
	"context"
	"fmt"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// Noop is the renderer used when headless browsing is disabled. Every call
// fails with crawler.ErrRender, so frame extraction falls back to inline tables.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render always fails.
func (Noop) Render(_ context.Context, url string) (crawler.Page, error) {
	return crawler.Page{}, fmt.Errorf("render %s: headless disabled: %w", url, crawler.ErrRender)
}
