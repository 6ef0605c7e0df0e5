// Package discovery finds sub-sites and staff directory links on a district homepage.
package discovery

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

// DirectoryKeywords are the case-sensitive substrings that mark a link as a
// likely staff directory.
var DirectoryKeywords = []string{"staff", "faculty", "teachers", "board", "department"}

// maxSiteSlashes is the slash budget of an absolute URL with at most one path segment.
const maxSiteSlashes = 3

// SubSites returns the absolute links on doc with at most one path segment,
// in document order, without duplicates.
func SubSites(doc *crawler.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, href := range hrefs(doc) {
		if !strings.HasPrefix(href, "http") || strings.Count(href, "/") > maxSiteSlashes {
			continue
		}
		if _, ok := seen[href]; ok {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	return out
}

// Directories returns the distinct hrefs on doc containing a directory keyword,
// sorted lexically.
func Directories(doc *crawler.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, href := range hrefs(doc) {
		if !IsDirectory(href) {
			continue
		}
		if _, ok := seen[href]; ok {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	sort.Strings(out)
	return out
}

// IsDirectory reports whether href contains any directory keyword.
func IsDirectory(href string) bool {
	for _, kw := range DirectoryKeywords {
		if strings.Contains(href, kw) {
			return true
		}
	}
	return false
}

// ResolveDirectory turns a directory href into a fetchable URL. One leading and
// one trailing slash are trimmed from base and href; an href mentioning "http"
// or "www." is then used as-is, anything else is joined to base.
func ResolveDirectory(base, href string) string {
	href = trimSlash(href)
	if strings.Contains(href, "http") || strings.Contains(href, "www.") {
		return href
	}
	return trimSlash(base) + "/" + href
}

// ResolveDirectories applies ResolveDirectory to each href, dropping duplicates.
func ResolveDirectories(base string, hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		u := ResolveDirectory(base, h)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func trimSlash(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/")
	return strings.TrimPrefix(s, "/")
}

func hrefs(doc *crawler.Document) []string {
	if doc == nil || doc.Document == nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				out = append(out, href)
			}
		}
	})
	return out
}
