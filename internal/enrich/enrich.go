// Package enrich adds district context to normalized staff records.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// DefaultState is used when no state is configured.
const DefaultState = "Alabama"

// HeadingSelector locates the school name on a district reference page.
const HeadingSelector = "#firstHeading"

// Enricher sets School District, School Name and State on records. School
// names are fetched once per district URL and cached for the Enricher's lifetime.
type Enricher struct {
	fetcher crawler.Fetcher
	state   string

	mu    sync.Mutex
	names map[string]string
}

// New constructs an Enricher that looks up school names with fetcher.
func New(fetcher crawler.Fetcher, state string) *Enricher {
	if state == "" {
		state = DefaultState
	}
	return &Enricher{fetcher: fetcher, state: state, names: make(map[string]string)}
}

// Enrich returns copies of records carrying the seed's district context.
// An empty input performs no lookup. Failures wrap crawler.ErrReferenceLookup.
func (e *Enricher) Enrich(ctx context.Context, seed crawler.Seed, records []crawler.Record) ([]crawler.Record, error) {
	if len(records) == 0 {
		return records, nil
	}
	name, err := e.schoolName(ctx, seed.DistrictURL)
	if err != nil {
		return nil, fmt.Errorf("seed %d: %w", seed.Position, err)
	}
	out := make([]crawler.Record, len(records))
	for i, r := range records {
		r.SchoolDistrict = seed.District
		r.SchoolName = name
		r.State = e.state
		out[i] = r
	}
	return out, nil
}

func (e *Enricher) schoolName(ctx context.Context, districtURL string) (string, error) {
	if districtURL == "" {
		return "", fmt.Errorf("no district url: %w", crawler.ErrReferenceLookup)
	}
	e.mu.Lock()
	name, ok := e.names[districtURL]
	e.mu.Unlock()
	if ok {
		return name, nil
	}

	page, err := e.fetcher.Fetch(ctx, districtURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w: %w", districtURL, crawler.ErrReferenceLookup, err)
	}
	doc, err := crawler.ParseDocument(districtURL, page.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", crawler.ErrReferenceLookup, err)
	}
	name, err = SchoolName(doc)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.names[districtURL] = name
	e.mu.Unlock()
	return name, nil
}

// SchoolName returns the trimmed text of the reference page heading.
func SchoolName(doc *crawler.Document) (string, error) {
	sel := doc.Find(HeadingSelector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%s: heading %s not found: %w", doc.URL, HeadingSelector, crawler.ErrReferenceLookup)
	}
	name := strings.Join(strings.Fields(sel.Text()), " ")
	if name == "" {
		return "", fmt.Errorf("%s: empty heading: %w", doc.URL, crawler.ErrReferenceLookup)
	}
	return name, nil
}
