package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/scholarship-tracker/finder/internal/config"
	"github.com/scholarship-tracker/finder/internal/crawler"
	"github.com/scholarship-tracker/finder/internal/dedup"
	"github.com/scholarship-tracker/finder/internal/discovery"
	"github.com/scholarship-tracker/finder/internal/extraction"
	"github.com/scholarship-tracker/finder/internal/storage"
	"github.com/scholarship-tracker/finder/pkg/logging"
	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// Pacing spaces out the pipeline's work beyond per-domain crawl delays, so
// a run never hammers the search provider or a batch of sources at once.
type Pacing struct {
	CategoryStagger time.Duration
	SourcePause     time.Duration
	QueryPause      time.Duration
}

// ConservativePacing is the default operating profile.
func ConservativePacing() Pacing {
	return Pacing{
		CategoryStagger: 30 * time.Second,
		SourcePause:     10 * time.Second,
		QueryPause:      5 * time.Second,
	}
}

// StandardPacing trades some politeness for throughput.
func StandardPacing() Pacing {
	return Pacing{
		CategoryStagger: 15 * time.Second,
		SourcePause:     8 * time.Second,
		QueryPause:      3 * time.Second,
	}
}

// RunStats summarizes one pipeline run. Counters only grow; a cancelled run
// reports whatever completed before the cancellation.
type RunStats struct {
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration"`
	CategoriesProcessed int           `json:"categories_processed"`
	SourcesDiscovered   int           `json:"sources_discovered"`
	PagesCrawled        int           `json:"pages_crawled"`
	RecordsExtracted    int           `json:"records_extracted"`
	NewScholarships     int           `json:"new_scholarships"`
	UpdatedScholarships int           `json:"updated_scholarships"`
	DuplicatesMerged    int           `json:"duplicates_merged"`
	SearchRequestsUsed  int           `json:"search_requests_used"`
	Errors              []string      `json:"errors,omitempty"`
}

// Runner sequences the full discovery pipeline: search, verify, crawl,
// extract, dedupe, persist. Categories run concurrently but share one
// search quota, one search throttle, and one per-domain rate limiter.
type Runner struct {
	cfg        *config.Config
	discoverer *discovery.Discoverer
	searches   *discovery.SearchClient
	crawl      *crawler.Crawler
	extract    *extraction.Extractor
	engine     *dedup.Engine
	store      storage.Store
	bus        *EventBus
	pacing     Pacing

	mu    sync.Mutex
	stats RunStats
}

// NewRunner assembles a pipeline. searches may be nil when discovery is
// driven by a custom Searcher inside the discoverer; bus may be nil to
// disable event publication.
func NewRunner(cfg *config.Config, discoverer *discovery.Discoverer, searches *discovery.SearchClient, crawl *crawler.Crawler, extract *extraction.Extractor, engine *dedup.Engine, store storage.Store, bus *EventBus) *Runner {
	pacing := StandardPacing()
	if cfg.ConservativeRateLimiting {
		pacing = ConservativePacing()
	}
	return &Runner{
		cfg:        cfg,
		discoverer: discoverer,
		searches:   searches,
		crawl:      crawl,
		extract:    extract,
		engine:     engine,
		store:      store,
		bus:        bus,
		pacing:     pacing,
	}
}

// Run executes the pipeline over the given categories and returns run
// statistics. Partial results are valid: per-source and per-page failures
// are recorded and skipped, and search quota exhaustion stops discovery
// without discarding work already done.
func (r *Runner) Run(ctx context.Context, categories []config.Category) (*RunStats, error) {
	logger := logging.GetPipelineLogger("discovery", "runner")
	start := time.Now()

	r.mu.Lock()
	r.stats = RunStats{StartedAt: start.UTC()}
	r.mu.Unlock()

	logger.Info().Int("categories", len(categories)).Msg("Starting discovery run")

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		stagger := time.Duration(i) * r.pacing.CategoryStagger
		g.Go(func() error {
			if stagger > 0 {
				select {
				case <-time.After(stagger):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return r.runCategory(gctx, category)
		})
	}

	err := g.Wait()
	if errors.Is(err, discovery.ErrQuotaExhausted) {
		logger.Warn().Msg("Run ended early on search quota exhaustion")
		err = nil
	}

	r.mu.Lock()
	r.stats.Duration = time.Since(start)
	if r.searches != nil {
		r.stats.SearchRequestsUsed = r.searches.RequestsUsed()
	}
	stats := r.stats
	r.mu.Unlock()

	r.publish(func(e *Event) {
		e.Metadata["new"] = stats.NewScholarships
		e.Metadata["updated"] = stats.UpdatedScholarships
		e.Metadata["duplicates"] = stats.DuplicatesMerged
	}, EventRunCompleted, "", "")

	logger.Info().
		Int("sources", stats.SourcesDiscovered).
		Int("pages", stats.PagesCrawled).
		Int("new", stats.NewScholarships).
		Int("updated", stats.UpdatedScholarships).
		Int("duplicates", stats.DuplicatesMerged).
		Dur("duration", stats.Duration).
		Msg("Discovery run complete")

	return &stats, err
}

func (r *Runner) runCategory(ctx context.Context, category config.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sources, err := r.discoverer.DiscoverCategory(ctx, category)
	if err != nil && errors.Is(err, context.Canceled) {
		return err
	}

	r.mu.Lock()
	r.stats.CategoriesProcessed++
	r.stats.SourcesDiscovered += len(sources)
	r.mu.Unlock()

	quotaHit := errors.Is(err, discovery.ErrQuotaExhausted)
	if err != nil && !quotaHit {
		r.addError(fmt.Sprintf("discovering %s: %v", category.ID, err))
		return nil
	}

	for i, source := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 {
			select {
			case <-time.After(r.pacing.SourcePause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		r.publish(nil, EventSourceDiscovered, category.ID, source.URL)
		r.processSource(ctx, category, source)
	}

	if quotaHit {
		return discovery.ErrQuotaExhausted
	}
	return nil
}

// processSource crawls one verified source and runs extraction and
// persistence over every relevant page. Failures affect only this source.
func (r *Runner) processSource(ctx context.Context, category config.Category, source scholarship.DiscoverySource) {
	crawled, err := r.crawl.CrawlDomain(ctx, source.URL, 0)
	if err != nil {
		r.addError(fmt.Sprintf("crawling %s: %v", source.URL, err))
		r.publishError(EventStageFailed, category.ID, source.URL, err)
		return
	}
	for _, msg := range crawled.Errors {
		r.addError(msg)
	}

	r.mu.Lock()
	r.stats.PagesCrawled += crawled.PagesCrawled
	r.mu.Unlock()

	persisted := 0
	for _, page := range crawled.Pages {
		if ctx.Err() != nil {
			return
		}
		r.publish(nil, EventPageCrawled, category.ID, page.URL)

		records := r.extract.Extract(ctx, page.URL, page.Text, "organization", category.ID)
		for _, record := range records {
			if persisted >= r.cfg.MaxScholarshipsPerSource {
				return
			}
			if err := record.Validate(); err != nil {
				continue
			}
			r.mu.Lock()
			r.stats.RecordsExtracted++
			r.mu.Unlock()
			r.publish(nil, EventRecordExtracted, category.ID, record.URL)

			if err := r.persist(ctx, &record); err != nil {
				r.addError(fmt.Sprintf("persisting %q: %v", record.Title, err))
				continue
			}
			persisted++
		}
	}
}

// persist runs duplicate detection and stores either the new record or the
// merged duplicate.
func (r *Runner) persist(ctx context.Context, record *scholarship.ExtractedScholarship) error {
	candidate := scholarship.FromExtracted(record)

	match, err := r.engine.FindDuplicate(ctx, candidate)
	if err != nil {
		return err
	}

	if match.Existing != nil {
		merged := dedup.Merge(match.Existing, candidate)
		if _, err := r.store.Upsert(ctx, merged); err != nil {
			return err
		}
		r.mu.Lock()
		r.stats.DuplicatesMerged++
		r.stats.UpdatedScholarships++
		r.mu.Unlock()
		r.publish(func(e *Event) {
			e.Scholarship = merged
			e.Metadata["match"] = string(match.Kind)
		}, EventRecordDuplicate, candidate.Category, candidate.URL)
		return nil
	}

	stored, err := r.store.Upsert(ctx, candidate)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.stats.NewScholarships++
	r.mu.Unlock()
	r.publish(func(e *Event) { e.Scholarship = stored }, EventRecordPersisted, candidate.Category, candidate.URL)
	return nil
}

func (r *Runner) addError(msg string) {
	log.Warn().Str("error", msg).Msg("Pipeline stage error")
	r.mu.Lock()
	r.stats.Errors = append(r.stats.Errors, msg)
	r.mu.Unlock()
}

func (r *Runner) publish(decorate func(*Event), eventType EventType, category, url string) {
	if r.bus == nil {
		return
	}
	event := NewEvent(eventType, category, url)
	if decorate != nil {
		decorate(event)
	}
	_ = r.bus.Publish(event)
}

func (r *Runner) publishError(eventType EventType, category, url string, err error) {
	if r.bus == nil {
		return
	}
	event := NewEvent(eventType, category, url)
	event.Error = err.Error()
	_ = r.bus.Publish(event)
}

// Stats returns a snapshot of the current run counters.
func (r *Runner) Stats() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
