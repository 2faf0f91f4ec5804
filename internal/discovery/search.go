package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/scholarship-tracker/finder/pkg/ratelimit"
)

// maxResultsPerQuery is the number of results requested per search call,
// which is also the Custom Search API's per-call ceiling.
const maxResultsPerQuery = 10

// ErrQuotaExhausted is returned once the session's search request budget is
// spent. Callers treat it as a signal to stop discovering, not as a failure.
var ErrQuotaExhausted = errors.New("search request quota exhausted")

// SearchResult is one organic result returned by the search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchClient wraps the Google Custom Search API with the session quota,
// the minimum call interval, and retry-with-backoff on rate limiting.
type SearchClient struct {
	service     *customsearch.Service
	cx          string
	throttle    *ratelimit.SearchThrottle
	backoffBase time.Duration
	maxRetries  int

	mu        sync.Mutex
	quota     int
	requested int
}

// NewSearchClient creates a search client. quota caps the total number of
// API calls for the session, shared across all categories. Extra client
// options are appended after the API key, so tests can point the service at
// a local endpoint.
func NewSearchClient(ctx context.Context, apiKey, cx string, quota int, minInterval, backoffBase time.Duration, maxRetries int, opts ...option.ClientOption) (*SearchClient, error) {
	service, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating custom search service: %w", err)
	}
	return &SearchClient{
		service:     service,
		cx:          cx,
		throttle:    ratelimit.NewSearchThrottle(minInterval),
		backoffBase: backoffBase,
		maxRetries:  maxRetries,
		quota:       quota,
	}, nil
}

// RequestsUsed returns how many API calls have been consumed so far.
func (sc *SearchClient) RequestsUsed() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.requested
}

// reserve consumes one unit of quota, failing once the budget is spent.
func (sc *SearchClient) reserve() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.requested >= sc.quota {
		return ErrQuotaExhausted
	}
	sc.requested++
	return nil
}

// Search runs one query against the search provider. Rate-limit responses
// are retried with exponential backoff, calling the provider at most
// maxRetries times; a query that still fails after the retry budget returns
// an empty result set rather than an error, so one bad query never aborts a
// discovery run.
func (sc *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if err := sc.reserve(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < sc.maxRetries; attempt++ {
		if err := sc.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		log.Debug().Str("query", query).Int("attempt", attempt).Msg("Executing search")

		resp, err := sc.service.Cse.List().
			Q(query).
			Cx(sc.cx).
			Num(maxResultsPerQuery).
			Context(ctx).
			Do()
		if err == nil {
			return collectResults(resp), nil
		}

		if !isRateLimited(err) {
			log.Warn().Err(err).Str("query", query).Msg("Search failed, skipping query")
			return nil, nil
		}
		if attempt == sc.maxRetries-1 {
			break
		}

		backoff := sc.backoffBase * (1 << attempt)
		log.Warn().
			Str("query", query).
			Dur("backoff", backoff).
			Msg("Search rate limited, backing off")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	log.Warn().Str("query", query).Msg("Search still rate limited after retries, skipping query")
	return nil, nil
}

func collectResults(resp *customsearch.Search) []SearchResult {
	var results []SearchResult
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, SearchResult{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code == 403
	}
	return false
}
