// Package engagement normalizes heterogeneous per-platform engagement signals
// into a single comparable score. Metrics are parsed from snippet text via
// per-platform rule tables; adding a platform is a data change, not a new
// code branch.
package engagement

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/painscout/painscout/internal/models"
)

// Metric identifies one engagement signal class.
type Metric int

const (
	MetricUpvotes Metric = iota
	MetricComments
	MetricShares
	MetricViews
	MetricAwards
)

// Raw is one unprocessed search-API record. Structured counters, when the
// provider supplies them, take precedence over text parsing.
type Raw struct {
	Title         string
	URL           string
	Snippet       string
	DisplayedLink string
	Date          string

	HasStats bool
	Views    int
	Likes    int
	Comments int
}

// rule is an ordered pattern cascade for one metric; the first numeric match
// wins.
type rule struct {
	metric   Metric
	patterns []*regexp.Regexp
}

func rx(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

const num = `(\d+(?:[.,]\d+)*\s?[KkMmBb]?)`

// rulesByPlatform maps a platform identifier to its extraction rules. Counter
// vocabulary differs per platform: Twitter likes land in upvotes, retweets in
// shares, replies in comments; Quora answers count as comments; and so on.
var rulesByPlatform = map[string][]rule{
	"reddit": {
		{MetricUpvotes, rx(`(?i)` + num + `\s*(?:upvote|point|karma)`, `(?i)score:\s*` + num)},
		{MetricComments, rx(`(?i)`+num+`\s*comment`, `(?i)comments?:\s*`+num)},
		{MetricAwards, rx(`(?i)(\d+)\s*award`, `(?i)awards?:\s*(\d+)`)},
	},
	"facebook": {
		{MetricUpvotes, rx(`(?i)`+num+`\s*(?:reaction|like)`, `(?i)likes?:\s*`+num, `(?i)`+num+`\s*people\s+reacted`)},
		{MetricComments, rx(`(?i)`+num+`\+?\s*comment`, `(?i)comments?:\s*`+num)},
		{MetricShares, rx(`(?i)`+num+`\s*share`, `(?i)shares?:\s*`+num, `(?i)`+num+`\s*people\s+shared`)},
	},
	"youtube": {
		{MetricViews, rx(`(?i)` + num + `\s*view`)},
		{MetricUpvotes, rx(`(?i)` + num + `\s*like`)},
		{MetricComments, rx(`(?i)` + num + `\s*comment`)},
	},
	"twitter": {
		{MetricUpvotes, rx(`(?i)`+num+`\s*(?:like|heart)`, `(?i)likes?:\s*`+num)},
		{MetricShares, rx(`(?i)`+num+`\s*(?:retweet|repost)`, `(?i)retweets?:\s*`+num)},
		{MetricComments, rx(`(?i)`+num+`\s*repl(?:y|ies)`, `(?i)repl(?:y|ies):\s*`+num)},
	},
	"linkedin": {
		{MetricUpvotes, rx(`(?i)`+num+`\s*reaction`, `(?i)`+num+`\s*(?:like|celebrate|support|insightful)`, `(?i)reactions?:\s*`+num)},
		{MetricComments, rx(`(?i)`+num+`\s*comment`, `(?i)comments?:\s*`+num)},
	},
	"tiktok": {
		{MetricViews, rx(`(?i)`+num+`\s*(?:view|play)`, `(?i)views?:\s*`+num)},
		{MetricUpvotes, rx(`(?i)`+num+`\s*like`, `(?i)likes?:\s*`+num)},
		{MetricShares, rx(`(?i)`+num+`\s*share`, `(?i)shares?:\s*`+num)},
		{MetricComments, rx(`(?i)`+num+`\s*comment`, `(?i)comments?:\s*`+num)},
	},
	"discord": {
		{MetricUpvotes, rx(`(?i)`+num+`\s*reaction`, `(?i)reactions?:\s*`+num)},
		{MetricComments, rx(`(?i)`+num+`\s*repl(?:y|ies)`, `(?i)`+num+`\s*message`)},
	},
	"quora": {
		{MetricUpvotes, rx(`(?i)`+num+`\s*upvote`, `(?i)upvotes?:\s*`+num)},
		{MetricComments, rx(`(?i)`+num+`\s*answer`, `(?i)answers?:\s*`+num)},
	},
	"nextdoor": {
		{MetricUpvotes, rx(`(?i)`+num+`\s*recommend`, `(?i)`+num+`\s*thumbs?\s*up`)},
		{MetricComments, rx(`(?i)`+num+`\s*comment`, `(?i)`+num+`\s*repl(?:y|ies)`)},
	},
	"industry-forums": {
		{MetricUpvotes, rx(`(?i)` + num + `\s*(?:upvote|vote|point)`)},
		{MetricComments, rx(`(?i)` + num + `\s*(?:answer|comment|repl(?:y|ies))`)},
	},
	"instagram": {
		{MetricUpvotes, rx(`(?i)` + num + `\s*like`)},
		{MetricComments, rx(`(?i)` + num + `\s*comment`)},
	},
}

// Engagement score weighting. Comments and shares signal deeper engagement
// than passive views; awards are premium engagement. The exact weights must
// stay fixed so scores remain comparable across platforms and cache entries.
const (
	weightUpvotes  = 1.0
	weightComments = 3.0
	weightShares   = 5.0
	weightViews    = 0.01
	weightAwards   = 10.0
)

// Score computes the weighted engagement score.
func Score(upvotes, comments, shares, views, awards int) float64 {
	return float64(upvotes)*weightUpvotes +
		float64(comments)*weightComments +
		float64(shares)*weightShares +
		float64(views)*weightViews +
		float64(awards)*weightAwards
}

// Normalize converts one raw record into a SearchResult. rank is the
// zero-based position within the platform's result list and drives the
// positional fallback for discussion platforms where zero engagement is
// implausible.
func Normalize(platform string, raw Raw, rank int) models.SearchResult {
	res := models.SearchResult{
		ID:            ResultID(platform, raw.URL),
		Platform:      platform,
		Title:         raw.Title,
		URL:           raw.URL,
		Snippet:       raw.Snippet,
		DisplayedLink: raw.DisplayedLink,
		Date:          raw.Date,
	}

	if raw.HasStats {
		res.Views = raw.Views
		res.Upvotes = raw.Likes
		res.Comments = raw.Comments
	} else {
		combined := raw.Title + " " + raw.Snippet + " " + raw.DisplayedLink
		for _, r := range rulesByPlatform[platform] {
			v := firstMatch(r.patterns, combined)
			if v <= 0 {
				continue
			}
			switch r.metric {
			case MetricUpvotes:
				res.Upvotes = v
			case MetricComments:
				res.Comments = v
			case MetricShares:
				res.Shares = v
			case MetricViews:
				res.Views = v
			case MetricAwards:
				res.Awards = v
			}
		}
	}

	// Positional placeholder for discussion platforms with nothing parsed.
	// Marked estimated so ranking and reporting can tell it apart from
	// measured data.
	if platform == "reddit" && res.Upvotes == 0 && res.Comments == 0 {
		res.Upvotes = maxInt(50, 1000-rank*100)
		res.Comments = maxInt(5, 100-rank*10)
		res.Estimated = true
	}

	res.EngagementScore = Score(res.Upvotes, res.Comments, res.Shares, res.Views, res.Awards)
	return res
}

func firstMatch(patterns []*regexp.Regexp, text string) int {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return ParseCount(m[1])
		}
	}
	return 0
}

// ParseCount parses a human-abbreviated count: K/M/B suffixes expand to
// thousands, millions, billions; thousands separators are stripped.
func ParseCount(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'k':
		mult = 1e3
		s = strings.TrimSpace(s[:len(s)-1])
	case 'm':
		mult = 1e6
		s = strings.TrimSpace(s[:len(s)-1])
	case 'b':
		mult = 1e9
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if mult == 1.0 {
		// Plain integer, possibly with thousands separators.
		n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			return 0
		}
		return n
	}
	// Abbreviated values use either separator as a decimal point (1.2K, 3,4M).
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return int(math.Round(v * mult))
}

// ResultID derives a stable identifier from the source URL so repeated
// searches and cache hits agree on identity.
func ResultID(platform, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return platform + "-" + hex.EncodeToString(sum[:])[:16]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
