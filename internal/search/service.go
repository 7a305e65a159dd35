// Package search orchestrates the full search pipeline: validation, platform
// re-filtering, quota gating, cache lookup, concurrent dispatch,
// normalization, deduplication, and ranking.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/painscout/painscout/internal/config"
	"github.com/painscout/painscout/internal/engagement"
	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/platforms"
	"github.com/painscout/painscout/internal/query"
	"github.com/painscout/painscout/internal/quota"
	"github.com/painscout/painscout/internal/rank"
)

// ValidationError rejects a malformed request before any dispatch.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// QuotaStore mutates durable quota counters. Implementations must make each
// mutation conditional so counters cannot pass their limits under concurrent
// requests.
type QuotaStore interface {
	IncrementMonthlyUsage(ctx context.Context, userID string) error
	DecrementCredit(ctx context.Context, userID string) error
	IncrementEmailSearches(ctx context.Context, email string) error
	IncrementAnonymousUsage(ctx context.Context, key string, now time.Time) error
}

// ResultCache stores deduplicated result sets keyed by request hash.
type ResultCache interface {
	CachedResults(ctx context.Context, hash string) ([]models.SearchResult, string, bool, error)
	SaveResults(ctx context.Context, hash, queryText, platformsCSV, timeFilter string, results []models.SearchResult, ttl time.Duration) (string, error)
}

// Metrics holds pipeline counters exposed on the metrics endpoint.
type Metrics struct {
	TotalSearches     int            `json:"total_searches"`
	TotalResults      int            `json:"total_results"`
	CacheHits         int            `json:"cache_hits"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	ErrorCount        int            `json:"error_count"`
	LastRun           time.Time      `json:"last_run"`
	LastRunDuration   string         `json:"last_run_duration"`
	PlatformCounts    map[string]int `json:"platform_counts"`
}

// Service runs the search pipeline.
type Service struct {
	cfg        *config.Config
	quotaStore QuotaStore
	cache      ResultCache
	dispatcher *Dispatcher
	metrics    *Metrics
	mu         sync.RWMutex
	now        func() time.Time
}

// NewService creates the search service.
func NewService(cfg *config.Config, quotaStore QuotaStore, cache ResultCache, dispatcher *Dispatcher) *Service {
	return &Service{
		cfg:        cfg,
		quotaStore: quotaStore,
		cache:      cache,
		dispatcher: dispatcher,
		metrics:    &Metrics{PlatformCounts: make(map[string]int)},
		now:        time.Now,
	}
}

// Run executes one search request for a resolved caller. Validation and
// quota rejections return before any external call; per-platform failures
// degrade to empty result lists and never fail the request.
func (s *Service) Run(ctx context.Context, req models.SearchRequest, caller models.CallerIdentity) (*models.SearchResponse, error) {
	start := s.now()

	if strings.TrimSpace(req.MainTopic) == "" {
		return nil, &ValidationError{Reason: "mainTopic is required"}
	}
	if len(req.Platforms) == 0 {
		return nil, &ValidationError{Reason: "at least one platform is required"}
	}

	permitted := platforms.Filter(req.Platforms, platforms.AllowedFor(caller))
	if dropped := len(req.Platforms) - len(permitted); dropped > 0 {
		logrus.Warnf("Dropped %d platform(s) outside the caller's tier", dropped)
	}
	if len(permitted) == 0 {
		return nil, &ValidationError{Reason: "no requested platform is available on the current plan"}
	}

	state := quota.Resolve(caller, start)
	if !state.CanSearch() {
		return nil, &quota.ExceededError{Remaining: state.Remaining(), Kind: state.Kind}
	}
	// Consume quota before dispatching. The durable mutation is conditional:
	// if a concurrent request exhausted the counter first, this fails closed
	// and the search never runs.
	if err := s.consume(ctx, state, caller); err != nil {
		return nil, err
	}

	queries := query.BuildAll(req, permitted)
	hash := RequestHash(queries, req.TimeFilter, req.Verbatim)

	if cached, searchID, ok, err := s.cache.CachedResults(ctx, hash); err != nil {
		logrus.Errorf("Cache lookup failed: %v", err)
	} else if ok {
		s.recordRun(cached, 0, 0, true, s.now().Sub(start))
		return &models.SearchResponse{Results: cached, Cached: true, SearchID: searchID}, nil
	}

	count := req.ResultCount
	if count <= 0 || count > 100 {
		count = s.cfg.ResultCount
	}
	tbs := query.TimeFilterToken(req.TimeFilter, req.Verbatim)

	rawByPlatform, errorCount := s.dispatcher.Dispatch(ctx, queries, count, tbs)

	var merged []models.SearchResult
	for _, q := range queries {
		for i, raw := range rawByPlatform[q.PlatformID] {
			merged = append(merged, engagement.Normalize(q.PlatformID, raw, i))
		}
	}

	deduped, urlDupes, titleDupes := rank.Deduplicate(merged)
	if urlDupes+titleDupes > 0 {
		logrus.Infof("Removed %d duplicate URLs and %d duplicate titles", urlDupes, titleDupes)
	}
	results := rank.Sort(deduped, rank.ParseSortKey(req.SortKey))

	searchID, err := s.cache.SaveResults(ctx, hash, queriesText(queries),
		strings.Join(permitted, ","), string(req.TimeFilter), results, s.cfg.CacheTTL)
	if err != nil {
		// Losing the cache entry is not worth failing a successful search.
		logrus.Errorf("Failed to persist search results: %v", err)
	}

	s.recordRun(results, urlDupes+titleDupes, errorCount, false, s.now().Sub(start))
	logrus.Infof("Search completed: %d results from %d platforms in %v",
		len(results), len(permitted), s.now().Sub(start))

	return &models.SearchResponse{Results: results, Cached: false, SearchID: searchID}, nil
}

// consume applies the single durable counter mutation for an accepted search.
// Unlimited tiers mutate nothing.
func (s *Service) consume(ctx context.Context, state quota.State, caller models.CallerIdentity) error {
	switch state.Kind {
	case quota.KindSubscribed:
		if state.MonthlyLimit == quota.Unlimited {
			return nil
		}
		return s.quotaStore.IncrementMonthlyUsage(ctx, caller.UserID)
	case quota.KindCreditHolder:
		return s.quotaStore.DecrementCredit(ctx, caller.UserID)
	case quota.KindEmailSignup:
		return s.quotaStore.IncrementEmailSearches(ctx, caller.SignupEmail)
	default:
		return s.quotaStore.IncrementAnonymousUsage(ctx, caller.AnonKey, s.now())
	}
}

func (s *Service) recordRun(results []models.SearchResult, dupes, errors int, cached bool, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalSearches++
	s.metrics.TotalResults += len(results)
	s.metrics.DuplicatesRemoved += dupes
	s.metrics.ErrorCount += errors
	if cached {
		s.metrics.CacheHits++
	}
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = took.String()
	for _, r := range results {
		s.metrics.PlatformCounts[r.Platform]++
	}
}

// GetMetrics returns current metrics as JSON.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// RequestHash derives the deterministic cache key for a set of platform
// queries. Queries are hashed in platform order so the client's platform
// ordering does not split the cache.
func RequestHash(queries []models.PlatformQuery, tf models.TimeFilter, verbatim bool) string {
	sorted := make([]models.PlatformQuery, len(queries))
	copy(sorted, queries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PlatformID < sorted[j].PlatformID })

	payload := struct {
		Queries  []models.PlatformQuery `json:"queries"`
		Time     models.TimeFilter      `json:"time"`
		Verbatim bool                   `json:"verbatim"`
	}{sorted, tf, verbatim}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func queriesText(queries []models.PlatformQuery) string {
	parts := make([]string, len(queries))
	for i, q := range queries {
		parts[i] = q.Query
	}
	return strings.Join(parts, "\n")
}
