// Package reference loads the district reference dataset that seeds a crawl.
//
// The dataset is a single sheet (xlsx) or file (csv) whose header row names
// the columns website_1 through website_5, district_name and district_url.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// Column names recognized in the header row.
const (
	ColumnDistrictName = "district_name"
	ColumnDistrictURL  = "district_url"
)

// WebsiteColumns are read in order when flattening seeds.
var WebsiteColumns = []string{"website_1", "website_2", "website_3", "website_4", "website_5"}

// ErrNoWebsiteColumns is returned when the header names none of WebsiteColumns.
var ErrNoWebsiteColumns = errors.New("reference: no website columns")

// Load reads the dataset at path, choosing the decoder by extension.
func Load(path string) (crawler.SeedList, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reference %s: %w", path, crawler.ErrConfigMissing)
			}
			return nil, fmt.Errorf("open reference: %w", err)
		}
		defer func() { _ = f.Close() }()
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("reference %s: unsupported extension %q", path, filepath.Ext(path))
	}
}

// LoadXLSX reads the first sheet of an Excel workbook.
func LoadXLSX(path string) (crawler.SeedList, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reference %s: %w", path, crawler.ErrConfigMissing)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return FromRows(rows)
}

// LoadCSV reads a comma-separated dataset with a header row.
func LoadCSV(r io.Reader) (crawler.SeedList, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return FromRows(rows)
}

// FromRows builds the seed list from a header row followed by data rows.
// Seeds are the non-empty cells of website_1 top to bottom, then website_2,
// and so on, numbered from 1. District names and URLs are the non-empty
// cells of their columns; seed p takes entry p-1 of each list when present.
func FromRows(rows [][]string) (crawler.SeedList, error) {
	if len(rows) == 0 {
		return nil, ErrNoWebsiteColumns
	}
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var urls []string
	found := false
	for _, col := range WebsiteColumns {
		i, ok := index[col]
		if !ok {
			continue
		}
		found = true
		urls = append(urls, column(rows[1:], i)...)
	}
	if !found {
		return nil, ErrNoWebsiteColumns
	}

	var names, refs []string
	if i, ok := index[ColumnDistrictName]; ok {
		names = column(rows[1:], i)
	}
	if i, ok := index[ColumnDistrictURL]; ok {
		refs = column(rows[1:], i)
	}

	seeds := make(crawler.SeedList, 0, len(urls))
	for i, u := range urls {
		seeds = append(seeds, crawler.Seed{
			Position:    i + 1,
			URL:         u,
			District:    at(names, i),
			DistrictURL: at(refs, i),
		})
	}
	return seeds, nil
}

func column(rows [][]string, i int) []string {
	var out []string
	for _, row := range rows {
		if i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}
