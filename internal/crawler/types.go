package crawler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Seed is one district homepage from the reference dataset.
type Seed struct {
	// Position is the 1-based ordinal across the flattened website columns.
	// It is stable across runs as long as the dataset is unchanged.
	Position    int    `json:"position"`
	URL         string `json:"url"`
	District    string `json:"district"`
	DistrictURL string `json:"district_url"`
}

// SeedList is the ordered, load-once list of seeds for a run.
type SeedList []Seed

// From returns the seeds whose position is >= start, preserving order.
func (l SeedList) From(start int) SeedList {
	for i, s := range l {
		if s.Position >= start {
			return l[i:]
		}
	}
	return nil
}

// Page is the raw result of a static or rendered fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Document is a parsed HTML tree together with the URL it was fetched from.
type Document struct {
	URL string
	*goquery.Document
}

// ParseDocument builds a Document from raw markup.
func ParseDocument(url string, body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", url, ErrParse, err)
	}
	return &Document{URL: url, Document: doc}, nil
}

// RawTable is a rectangular grid of cell text extracted from one HTML table.
// Every row in Rows has exactly len(Header) cells.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Width returns the number of columns.
func (t RawTable) Width() int {
	return len(t.Header)
}

// ErrorRecord is one entry of the per-seed error log.
type ErrorRecord struct {
	Position int    `json:"position"`
	Message  string `json:"message"`
}
