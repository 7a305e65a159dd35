package models

import "time"

// TimeFilter restricts search results to a recency window.
type TimeFilter string

const (
	TimeAny   TimeFilter = "any"
	TimeHour  TimeFilter = "hour"
	TimeDay   TimeFilter = "day"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
)

// Tier is a subscription level. Unknown values are treated as free.
type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierAgency       Tier = "agency"
	TierEnterprise   Tier = "enterprise"
	TierAdmin        Tier = "admin"
)

// SearchRequest is the payload accepted by the search endpoint.
// RequiredGroup and ExclusionGroup are comma-separated free text; the query
// package handles quoting and operator composition.
type SearchRequest struct {
	MainTopic      string     `json:"mainTopic"`
	Platforms      []string   `json:"platforms"`
	PhraseGroup    []string   `json:"phraseGroup,omitempty"`
	RequiredGroup  string     `json:"requiredGroup,omitempty"`
	ExclusionGroup string     `json:"exclusionGroup,omitempty"`
	TimeFilter     TimeFilter `json:"timeFilter,omitempty"`
	Verbatim       bool       `json:"verbatim,omitempty"`
	ResultCount    int        `json:"resultsPerPlatform,omitempty"`
	TrendsCategory string     `json:"trendsCategory,omitempty"`
	SortKey        string     `json:"sort,omitempty"`
}

// PlatformQuery is the final boolean query for one platform, plus the URL a
// user could open to run the same search manually.
type PlatformQuery struct {
	PlatformID string `json:"platform"`
	Query      string `json:"query"`
	TargetURL  string `json:"targetUrl"`
	Direct     bool   `json:"direct,omitempty"`
}

// SearchResult is one normalized result. Engagement fields are zero when the
// metric could not be determined. Estimated marks positional placeholder
// metrics that were not parsed from real data.
type SearchResult struct {
	ID              string  `json:"id"`
	Platform        string  `json:"platform"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	Snippet         string  `json:"snippet"`
	DisplayedLink   string  `json:"displayedLink"`
	Upvotes         int     `json:"upvotes,omitempty"`
	Comments        int     `json:"comments,omitempty"`
	Shares          int     `json:"shares,omitempty"`
	Views           int     `json:"views,omitempty"`
	Awards          int     `json:"awards,omitempty"`
	Date            string  `json:"date,omitempty"`
	EngagementScore float64 `json:"engagementScore,omitempty"`
	Estimated       bool    `json:"estimated,omitempty"`
}

// SearchResponse is returned by the search endpoint.
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Cached   bool           `json:"cached"`
	SearchID string         `json:"searchId,omitempty"`
}

// ReportType selects the prompt template for report generation.
type ReportType string

const (
	ReportSummary    ReportType = "summary"
	ReportMVPBuilder ReportType = "mvp_builder"
)

// Report is an LLM-generated markdown report over selected results.
// Immutable once created.
type Report struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	SearchID        string         `json:"search_result_id,omitempty"`
	ReportType      ReportType     `json:"report_type"`
	SelectedResults []SearchResult `json:"selected_results"`
	Markdown        string         `json:"markdown"`
	CreatedAt       time.Time      `json:"created_at"`
}

// CallerIdentity is the resolved identity context for one request. The
// identity collaborator supplies it with fresh values; core packages receive
// it explicitly and never read ambient state.
type CallerIdentity struct {
	// Anonymous callers have neither UserID nor SignupEmail. AnonKey
	// identifies the caller for the daily counter.
	UserID      string
	SignupEmail string
	AnonKey     string

	Tier         Tier
	MonthlyUsed  int
	MonthlyLimit int

	Credits int

	EmailSearchesUsed int

	DailyCount int
	DailyReset time.Time
}

// Anonymous reports whether the caller has no account and no signup email.
func (c CallerIdentity) Anonymous() bool {
	return c.UserID == "" && c.SignupEmail == ""
}

// EmailOnly reports whether the caller registered an email but has no account.
func (c CallerIdentity) EmailOnly() bool {
	return c.UserID == "" && c.SignupEmail != ""
}
