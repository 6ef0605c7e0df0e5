package extract

import (
	"strings"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// RelevanceKeywords mark a table as a likely staff listing.
var RelevanceKeywords = []string{"name", "grade", "title", "job", "city", "email", "position"}

// IsRelevant reports whether any cell of t, header included, contains a
// relevance keyword after lowercasing. Tables with unusual labels are missed.
func IsRelevant(t crawler.RawTable) bool {
	if matches(t.Header) {
		return true
	}
	for _, row := range t.Rows {
		if matches(row) {
			return true
		}
	}
	return false
}

func matches(cells []string) bool {
	for _, c := range cells {
		lc := strings.ToLower(c)
		for _, kw := range RelevanceKeywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}
