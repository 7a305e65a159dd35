// Package rank deduplicates and orders merged search results. Every function
// here is pure: results in, results out, no hidden state.
package rank

import (
	"sort"
	"strings"
	"time"

	"github.com/painscout/painscout/internal/models"
)

// SortKey selects a result ordering.
type SortKey string

const (
	SortEngagement SortKey = "engagement"
	SortComments   SortKey = "comments"
	SortDate       SortKey = "date"
	SortRelevance  SortKey = "relevance"
)

// ParseSortKey maps a client-supplied sort name to a key, defaulting to
// relevance order for anything unrecognized.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortEngagement, SortComments, SortDate:
		return SortKey(s)
	}
	return SortRelevance
}

// Deduplicate removes duplicate results, first by exact URL and then by
// case-insensitive trimmed title. The same discussion is sometimes indexed
// under two URLs, so the title check is independent of the URL check. First
// occurrence wins. Returns the survivors plus the URL- and title-duplicate
// counts for logging.
func Deduplicate(results []models.SearchResult) ([]models.SearchResult, int, int) {
	seenURLs := make(map[string]bool, len(results))
	seenTitles := make(map[string]bool, len(results))
	out := make([]models.SearchResult, 0, len(results))
	urlDupes, titleDupes := 0, 0

	for _, r := range results {
		if seenURLs[r.URL] {
			urlDupes++
			continue
		}
		title := strings.ToLower(strings.TrimSpace(r.Title))
		if seenTitles[title] {
			titleDupes++
			continue
		}
		seenURLs[r.URL] = true
		seenTitles[title] = true
		out = append(out, r)
	}
	return out, urlDupes, titleDupes
}

// Sort returns a copy of results in the requested order. All orders are
// stable with respect to the input, and SortRelevance preserves it entirely.
func Sort(results []models.SearchResult, key SortKey) []models.SearchResult {
	out := make([]models.SearchResult, len(results))
	copy(out, results)

	switch key {
	case SortEngagement:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].EngagementScore > out[j].EngagementScore
		})
	case SortComments:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Comments > out[j].Comments
		})
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool {
			ti, iok := parseDate(out[i].Date)
			tj, jok := parseDate(out[j].Date)
			if iok != jok {
				return iok // undated items sort last
			}
			return ti.After(tj)
		})
	}
	return out
}

// dateLayouts covers the formats search providers emit for result dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"2 Jan 2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
