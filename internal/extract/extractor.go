// Package extract pulls tabular data out of directory pages and decides which
// tables look like staff listings.
package extract

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/metrics"
)

// FrameDenylist holds src substrings of embeds that never carry directory data.
var FrameDenylist = []string{"googletag", "youtube", "canva"}

// Detector flags static documents whose tables are built by script.
type Detector interface {
	NeedsRender(doc *crawler.Document) bool
}

// Extractor yields the raw tables of a directory document.
type Extractor struct {
	renderer crawler.Renderer
	detector Detector
	logger   *zap.Logger
}

// New constructs an Extractor. renderer loads embedded frames.
func New(renderer crawler.Renderer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{renderer: renderer, logger: logger}
}

// WithDetector enables rendering the directory page itself when it has no
// tables and d judges it to be a script-built shell.
func (e *Extractor) WithDetector(d Detector) *Extractor {
	e.detector = d
	return e
}

// Tables returns the tables found in doc's embedded frames or, when the frames
// yield none, the tables inline in doc. With a detector configured, a tableless
// shell page is rendered and read again. A frame or page that fails to render
// is skipped. The error is non-nil only when ctx is done.
func (e *Extractor) Tables(ctx context.Context, doc *crawler.Document) ([]crawler.RawTable, error) {
	var tables []crawler.RawTable
	for _, src := range FrameSources(doc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frameTables, err := e.frameTables(ctx, src)
		if err != nil {
			e.logger.Warn("frame render failed",
				zap.String("url", doc.URL),
				zap.String("frame", src),
				zap.Error(err),
			)
			continue
		}
		tables = append(tables, frameTables...)
	}
	if len(tables) > 0 {
		metrics.ObserveTables("frame", len(tables))
		return tables, nil
	}
	tables = Inline(doc, e.logger)
	if len(tables) == 0 && e.detector != nil && e.detector.NeedsRender(doc) {
		rendered, err := e.frameTables(ctx, doc.URL)
		if err != nil {
			e.logger.Warn("page render failed", zap.String("url", doc.URL), zap.Error(err))
		}
		metrics.ObserveTables("rendered", len(rendered))
		return rendered, nil
	}
	metrics.ObserveTables("inline", len(tables))
	return tables, nil
}

func (e *Extractor) frameTables(ctx context.Context, src string) ([]crawler.RawTable, error) {
	if e.renderer == nil {
		return nil, crawler.ErrRender
	}
	page, err := e.renderer.Render(ctx, src)
	if err != nil {
		return nil, err
	}
	doc, err := crawler.ParseDocument(src, page.Body)
	if err != nil {
		return nil, err
	}
	return Inline(doc, e.logger), nil
}

// Inline converts every table in doc, skipping ones that cannot be parsed.
func Inline(doc *crawler.Document, logger *zap.Logger) []crawler.RawTable {
	if doc == nil || doc.Document == nil {
		return nil
	}
	var out []crawler.RawTable
	doc.Find("table").Each(func(i int, sel *goquery.Selection) {
		t, err := ParseTable(sel)
		if err != nil {
			if logger != nil && errors.Is(err, crawler.ErrParse) {
				logger.Debug("skip table", zap.String("url", doc.URL), zap.Int("index", i), zap.Error(err))
			}
			return
		}
		out = append(out, t)
	})
	return out
}

// FrameSources lists the iframe and frame sources of doc that are not
// denylisted, resolved against the document URL.
func FrameSources(doc *crawler.Document) []string {
	if doc == nil || doc.Document == nil {
		return nil
	}
	base, _ := url.Parse(doc.URL)
	seen := make(map[string]struct{})
	var out []string
	doc.Find("iframe[src], frame[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || denied(src) {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		out = append(out, src)
	})
	return out
}

func denied(src string) bool {
	for _, d := range FrameDenylist {
		if strings.Contains(src, d) {
			return true
		}
	}
	return false
}
