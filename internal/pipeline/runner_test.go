package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarship-tracker/finder/internal/config"
	"github.com/scholarship-tracker/finder/internal/crawler"
	"github.com/scholarship-tracker/finder/internal/dedup"
	"github.com/scholarship-tracker/finder/internal/discovery"
	"github.com/scholarship-tracker/finder/internal/extraction"
	"github.com/scholarship-tracker/finder/internal/storage"
	"github.com/scholarship-tracker/finder/pkg/ratelimit"
)

type scriptedSearcher struct {
	results []discovery.SearchResult
	err     error
}

func (s *scriptedSearcher) Search(context.Context, string) ([]discovery.SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.results
	s.results = nil
	return out, s.err
}

func scholarshipServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>Acme Foundation</title></head><body>
				<p>The Acme STEM Scholarship awards $2,000 to undergraduates each year.</p>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRunner(t *testing.T, store storage.Store, searcher discovery.Searcher) *Runner {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ConservativeRateLimiting = false
	cfg.CrawlDelay = time.Millisecond
	cfg.MaxScholarshipsPerSource = 3

	crawlConfig := crawler.DefaultCrawlConfig()
	crawlConfig.CrawlDelay = time.Millisecond

	discoverer := discovery.NewDiscoverer(
		discovery.NewQueryGenerator(nil),
		searcher,
		discovery.NewSourceVerifier(nil),
		cfg.MaxSourcesPerCategory,
	)

	return NewRunner(
		cfg,
		discoverer,
		nil,
		crawler.NewCrawler(crawlConfig, ratelimit.NewDomainLimiter(crawlConfig.CrawlDelay)),
		extraction.NewExtractor(nil),
		dedup.NewEngine(store),
		store,
		nil,
	)
}

func oneCategory() []config.Category {
	return []config.Category{{
		ID:       "stem",
		Name:     "STEM & Technology",
		Keywords: []string{"STEM"},
		Include:  true,
	}}
}

func TestRunPersistsDiscoveredScholarships(t *testing.T) {
	server := scholarshipServer(t)
	store := storage.NewMemoryStore()

	runner := newTestRunner(t, store, &scriptedSearcher{results: []discovery.SearchResult{
		{URL: server.URL + "/", Title: "Acme Foundation", Snippet: "We fund STEM students"},
	}})

	stats, err := runner.Run(context.Background(), oneCategory())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CategoriesProcessed)
	assert.Equal(t, 1, stats.SourcesDiscovered)
	assert.GreaterOrEqual(t, stats.PagesCrawled, 1)
	assert.Equal(t, 1, stats.NewScholarships)
	assert.Zero(t, stats.DuplicatesMerged)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRunMergesDuplicatesOnSecondPass(t *testing.T) {
	server := scholarshipServer(t)
	store := storage.NewMemoryStore()

	first := newTestRunner(t, store, &scriptedSearcher{results: []discovery.SearchResult{
		{URL: server.URL + "/", Title: "Acme Foundation"},
	}})
	_, err := first.Run(context.Background(), oneCategory())
	require.NoError(t, err)

	second := newTestRunner(t, store, &scriptedSearcher{results: []discovery.SearchResult{
		{URL: server.URL + "/", Title: "Acme Foundation"},
	}})
	stats, err := second.Run(context.Background(), oneCategory())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DuplicatesMerged, "the second pass recognizes the stored record")
	assert.Zero(t, stats.NewScholarships)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "no duplicate row is created")
}

func TestRunQuotaExhaustionIsNotAFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	runner := newTestRunner(t, store, &scriptedSearcher{err: discovery.ErrQuotaExhausted})

	stats, err := runner.Run(context.Background(), oneCategory())
	require.NoError(t, err, "quota exhaustion ends the run early but keeps partial results valid")
	assert.Equal(t, 1, stats.CategoriesProcessed)
	assert.Zero(t, stats.SourcesDiscovered)
}

func TestRunRecordsCrawlErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	runner := newTestRunner(t, store, &scriptedSearcher{results: []discovery.SearchResult{
		{URL: "http://127.0.0.1:1/", Title: "Unreachable"},
	}})

	stats, err := runner.Run(context.Background(), oneCategory())
	require.NoError(t, err)
	assert.NotEmpty(t, stats.Errors, "an unreachable source is recorded, not fatal")
	assert.Zero(t, stats.NewScholarships)
}

func TestRunHonorsCancellation(t *testing.T) {
	store := storage.NewMemoryStore()
	runner := newTestRunner(t, store, &scriptedSearcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, oneCategory())
	assert.Error(t, err)
}
