// Package detector decides when a directory page needs a headless render
// before its tables can be read.
package detector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// DefaultTextThreshold is the visible-text length below which a page with
// heavy scripting is treated as an unrendered shell.
const DefaultTextThreshold = 2048

// mountSelectors match the mount points of common client-side frameworks.
var mountSelectors = "#__next, #root, #app, [data-reactroot], [ng-app], [data-v-app]"

// Heuristic flags static pages whose staff tables are probably built by script.
type Heuristic struct {
	TextThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultTextThreshold
	}
	return &Heuristic{TextThreshold: threshold}
}

// NeedsRender reports whether doc should be loaded in a browser. Pages that
// already contain a table never qualify.
func (h *Heuristic) NeedsRender(doc *crawler.Document) bool {
	if doc == nil || doc.Document == nil {
		return false
	}
	if doc.Find("table").Length() > 0 {
		return false
	}
	if doc.Find(mountSelectors).Length() > 0 {
		return true
	}
	text := visibleTextLen(doc.Selection)
	return text < h.TextThreshold && scriptHeavy(doc.Selection, text)
}

func visibleTextLen(sel *goquery.Selection) int {
	body := sel.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return len(strings.Join(strings.Fields(body.Text()), " "))
}

// scriptHeavy reports whether inline script outweighs visible text.
func scriptHeavy(sel *goquery.Selection, text int) bool {
	scripts := sel.Find("script")
	if scripts.Length() == 0 {
		return false
	}
	code := 0
	external := 0
	scripts.Each(func(_ int, s *goquery.Selection) {
		code += len(strings.TrimSpace(s.Text()))
		if _, ok := s.Attr("src"); ok {
			external++
		}
	})
	if text == 0 {
		return true
	}
	return code >= text || external*200 >= text
}
