package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/painscout/painscout/internal/engagement"
	"github.com/painscout/painscout/internal/models"
)

// Dispatcher fans one query per platform out to the search provider
// concurrently. Failures are isolated: a failing platform contributes an
// empty result list and the request as a whole still succeeds.
type Dispatcher struct {
	provider Provider
}

// NewDispatcher creates a dispatcher over a search provider.
func NewDispatcher(provider Provider) *Dispatcher {
	return &Dispatcher{provider: provider}
}

type platformResults struct {
	platform string
	results  []engagement.Raw
}

// Dispatch runs all platform queries in parallel and returns once every call
// has settled. Direct platforms skip the provider and synthesize a single
// deep-link record locally. The second return value counts failed platforms.
func (d *Dispatcher) Dispatch(ctx context.Context, queries []models.PlatformQuery, count int, tbs string) (map[string][]engagement.Raw, int) {
	var wg sync.WaitGroup
	resultsChan := make(chan platformResults, len(queries))
	errorsChan := make(chan error, len(queries))

	for _, q := range queries {
		if q.Direct {
			resultsChan <- platformResults{q.PlatformID, []engagement.Raw{directResult(q)}}
			continue
		}

		wg.Add(1)
		go func(q models.PlatformQuery) {
			defer wg.Done()

			logrus.Debugf("Searching %s with query: %s", q.PlatformID, q.Query)
			raw, err := d.provider.Search(ctx, q.Query, count, tbs)
			if err != nil {
				logrus.Errorf("Search failed for %s: %v", q.PlatformID, err)
				errorsChan <- err
				resultsChan <- platformResults{q.PlatformID, nil}
				return
			}

			logrus.Infof("Found %d results for %s", len(raw), q.PlatformID)
			resultsChan <- platformResults{q.PlatformID, raw}
		}(q)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	out := make(map[string][]engagement.Raw, len(queries))
	for pr := range resultsChan {
		out[pr.platform] = pr.results
	}
	errorCount := 0
	for range errorsChan {
		errorCount++
	}
	return out, errorCount
}

// directResult builds the synthetic record for platforms that deep-link
// instead of going through the search engine.
func directResult(q models.PlatformQuery) engagement.Raw {
	return engagement.Raw{
		Title:         fmt.Sprintf("%q - Search Interest Over Time", q.Query),
		URL:           q.TargetURL,
		Snippet:       fmt.Sprintf("Explore how search interest for %q has developed over time and where related opportunities are emerging.", q.Query),
		DisplayedLink: "trends.google.com",
	}
}
