// Package query synthesizes per-platform boolean search-engine queries from a
// search request. Output is deterministic: the same request and platform
// always produce byte-identical query strings, which the cache layer relies
// on.
package query

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/platforms"
)

const (
	googleSearchBase = "https://www.google.com/search"
	trendsBase       = "https://trends.google.com/trends/explore"
)

// timeFilterTokens maps a recency window to the engine's tbs parameter.
// TimeAny omits the parameter entirely.
var timeFilterTokens = map[models.TimeFilter]string{
	models.TimeHour:  "qdr:h",
	models.TimeDay:   "qdr:d",
	models.TimeWeek:  "qdr:w",
	models.TimeMonth: "qdr:m",
	models.TimeYear:  "qdr:y",
}

// TimeFilterToken returns the engine parameter for a time filter, including
// verbatim mode, or "" when neither applies.
func TimeFilterToken(tf models.TimeFilter, verbatim bool) string {
	token := timeFilterTokens[tf]
	if verbatim {
		if token == "" {
			return "li:1"
		}
		return token + ",li:1"
	}
	return token
}

// Build produces the final query for one platform. The main topic is always
// quoted as a required phrase; the site filter, phrase group, and keyword
// group share one parenthesized group; exclusions trail unwrapped:
//
//	"<topic>" (<site-filter> <phrase-group> <keyword-group>) <exclusions>
//
// Direct platforms (Google Trends) skip the engine template and deep-link.
// An empty topic is a programming error: handlers validate before calling.
func Build(req models.SearchRequest, d platforms.Descriptor) models.PlatformQuery {
	topic := strings.TrimSpace(req.MainTopic)
	if topic == "" {
		panic("query: Build called with empty main topic")
	}

	if d.Direct {
		return models.PlatformQuery{
			PlatformID: d.ID,
			Query:      topic,
			TargetURL:  trendsURL(topic, req.TrendsCategory),
			Direct:     true,
		}
	}

	parts := []string{d.SiteFilter}
	if token := phraseToken(req.PhraseGroup); token != "" {
		parts = append(parts, token)
	}
	if token := keywordToken(req.RequiredGroup); token != "" {
		parts = append(parts, token)
	}

	q := `"` + topic + `"`
	if combined := joinNonEmpty(parts); combined != "" {
		q += " (" + combined + ")"
	}
	if excl := FormatTerms(req.ExclusionGroup, ModeExclude); excl != "" {
		q += " " + excl
	}

	return models.PlatformQuery{
		PlatformID: d.ID,
		Query:      q,
		TargetURL:  searchURL(q, TimeFilterToken(req.TimeFilter, req.Verbatim)),
	}
}

// BuildAll builds one query per platform ID, skipping unknown identifiers.
func BuildAll(req models.SearchRequest, ids []string) []models.PlatformQuery {
	queries := make([]models.PlatformQuery, 0, len(ids))
	for _, id := range ids {
		d, ok := platforms.ByID(id)
		if !ok {
			continue
		}
		queries = append(queries, Build(req, d))
	}
	return queries
}

// phraseToken renders selected phrases as intext:("p1" OR "p2").
func phraseToken(phrases []string) string {
	var quoted []string
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.Trim(p, `"`)+`"`)
	}
	if len(quoted) == 0 {
		return ""
	}
	return "intext:(" + strings.Join(quoted, " OR ") + ")"
}

// keywordToken formats the secondary free-text keyword field and wraps it in
// an intext: constraint. A composed fragment gets parentheses, a single plain
// term gets quoted directly.
func keywordToken(raw string) string {
	kw := FormatTerms(raw, ModeOr)
	if kw == "" {
		return ""
	}
	if strings.Contains(kw, " OR ") || strings.Contains(kw, `"`) {
		return "intext:(" + kw + ")"
	}
	return `intext:"` + kw + `"`
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func searchURL(q, tbs string) string {
	u := googleSearchBase + "?q=" + url.QueryEscape(q)
	if tbs != "" {
		u += "&tbs=" + url.QueryEscape(tbs)
	}
	return u
}

func trendsURL(topic, category string) string {
	u := fmt.Sprintf("%s?date=all&q=%s", trendsBase, url.QueryEscape(topic))
	if category != "" && category != "0" {
		u += "&cat=" + url.QueryEscape(category)
	}
	return u + "&hl=en"
}
