package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// Span limits match what browsers accept.
const (
	maxColSpan = 1000
	maxRowSpan = 65534
)

type pendingCell struct {
	text string
	left int
}

// ParseTable converts a <table> selection into a rectangular RawTable.
// Spanned cells are duplicated into every slot they cover. The first non-blank
// row is the header; data rows shorter than the header are padded with empty
// cells and longer rows are truncated. Rows whose cells are all empty are dropped.
func ParseTable(table *goquery.Selection) (crawler.RawTable, error) {
	grid := expandGrid(table)

	var rows [][]string
	for _, row := range grid {
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return crawler.RawTable{}, fmt.Errorf("table has no rows: %w", crawler.ErrParse)
	}

	header := rows[0]
	width := len(header)
	out := crawler.RawTable{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		out.Rows = append(out.Rows, fit(row, width))
	}
	return out, nil
}

// expandGrid walks the rows owned directly by table, ignoring nested tables.
func expandGrid(table *goquery.Selection) [][]string {
	var grid [][]string
	pending := make(map[int]*pendingCell)

	consume := func(row []string, col int) ([]string, bool) {
		p, ok := pending[col]
		if !ok {
			return row, false
		}
		row = append(row, p.text)
		p.left--
		if p.left == 0 {
			delete(pending, col)
		}
		return row, true
	}

	table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	}).Each(func(_ int, tr *goquery.Selection) {
		var row []string
		col := 0
		tr.ChildrenFiltered("td,th").Each(func(_ int, cell *goquery.Selection) {
			for {
				var used bool
				if row, used = consume(row, col); !used {
					break
				}
				col++
			}
			text := cellText(cell)
			colspan := spanAttr(cell, "colspan", maxColSpan)
			rowspan := spanAttr(cell, "rowspan", maxRowSpan)
			for i := 0; i < colspan; i++ {
				row = append(row, text)
				if rowspan > 1 {
					pending[col] = &pendingCell{text: text, left: rowspan - 1}
				}
				col++
			}
		})
		last := -1
		for c := range pending {
			if c > last {
				last = c
			}
		}
		for ; col <= last; col++ {
			var used bool
			if row, used = consume(row, col); !used {
				row = append(row, "")
			}
		}
		grid = append(grid, row)
	})
	return grid
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}

func spanAttr(cell *goquery.Selection, name string, limit int) int {
	raw, ok := cell.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
