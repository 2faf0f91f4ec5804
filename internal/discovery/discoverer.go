package discovery

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/internal/config"
	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// Searcher is the search capability the discoverer depends on. SearchClient
// implements it; tests substitute a fake.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Discoverer finds candidate scholarship sources for a category by
// generating queries, searching, and verifying the results.
type Discoverer struct {
	queries  *QueryGenerator
	searcher Searcher
	verifier *SourceVerifier
	maxPer   int
}

// NewDiscoverer assembles the discovery stage. maxPerCategory caps how many
// verified sources a category may yield.
func NewDiscoverer(queries *QueryGenerator, searcher Searcher, verifier *SourceVerifier, maxPerCategory int) *Discoverer {
	return &Discoverer{
		queries:  queries,
		searcher: searcher,
		verifier: verifier,
		maxPer:   maxPerCategory,
	}
}

// DiscoverCategory returns verified sources for one category, best first.
// Quota exhaustion ends the search early and returns whatever was found so
// far along with ErrQuotaExhausted.
func (d *Discoverer) DiscoverCategory(ctx context.Context, category config.Category) ([]scholarship.DiscoverySource, error) {
	log.Info().Str("category", category.ID).Msg("Discovering scholarship sources")

	queries := d.queries.Generate(ctx, category)
	if len(queries) > topQueriesUsed {
		queries = queries[:topQueriesUsed]
	}

	seen := make(map[string]bool)
	var sources []scholarship.DiscoverySource
	var quotaErr error

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return sources, err
		}
		results, err := d.searcher.Search(ctx, query)
		if err != nil {
			if errors.Is(err, ErrQuotaExhausted) {
				log.Warn().Str("category", category.ID).Msg("Search quota exhausted, abandoning remaining queries")
				quotaErr = err
				break
			}
			return sources, err
		}

		for _, result := range results {
			if seen[result.URL] {
				continue
			}
			seen[result.URL] = true

			keep, confidence := d.verifier.Verify(ctx, result)
			if !keep {
				continue
			}
			sources = append(sources, scholarship.DiscoverySource{
				URL:          result.URL,
				Title:        result.Title,
				Description:  result.Snippet,
				Category:     category.ID,
				Confidence:   confidence,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Confidence > sources[j].Confidence
	})
	if d.maxPer > 0 && len(sources) > d.maxPer {
		sources = sources[:d.maxPer]
	}

	log.Info().
		Str("category", category.ID).
		Int("sources", len(sources)).
		Msg("Category discovery complete")

	return sources, quotaErr
}
