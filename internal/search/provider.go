package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/painscout/painscout/internal/engagement"
)

// Provider executes one search-engine query and returns raw records. The
// dispatcher treats every provider call as best-effort.
type Provider interface {
	Search(ctx context.Context, query string, count int, tbs string) ([]engagement.Raw, error)
}

// SerpClient talks to the SERP API.
type SerpClient struct {
	apiKey   string
	endpoint string
	client   *resty.Client
}

var _ Provider = (*SerpClient)(nil)

// NewSerpClient creates a SERP API client.
func NewSerpClient(apiKey, endpoint string, timeout time.Duration) *SerpClient {
	return &SerpClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "PainScout/1.0"),
	}
}

// Search runs one engine query. The response shape is loose, so fields are
// picked tolerantly: anything missing degrades to an empty string rather
// than a parse failure.
func (c *SerpClient) Search(ctx context.Context, query string, count int, tbs string) ([]engagement.Raw, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("engine", "google").
		SetQueryParam("q", query).
		SetQueryParam("num", strconv.Itoa(count)).
		SetQueryParam("api_key", c.apiKey)
	if tbs != "" {
		req.SetQueryParam("tbs", tbs)
	}

	resp, err := req.Get(c.endpoint)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode())
	}

	var results []engagement.Raw
	gjson.GetBytes(resp.Body(), "organic_results").ForEach(func(_, item gjson.Result) bool {
		link := item.Get("link").String()
		if link == "" {
			return true
		}
		displayed := item.Get("displayed_link").String()
		if displayed == "" {
			displayed = link
		}
		results = append(results, engagement.Raw{
			Title:         item.Get("title").String(),
			URL:           link,
			Snippet:       item.Get("snippet").String(),
			DisplayedLink: displayed,
			Date:          item.Get("date").String(),
		})
		return true
	})
	return results, nil
}
