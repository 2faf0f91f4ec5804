// Package main provides the entry point for the scholarship finder.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/internal/api"
	"github.com/scholarship-tracker/finder/internal/config"
	"github.com/scholarship-tracker/finder/internal/crawler"
	"github.com/scholarship-tracker/finder/internal/dedup"
	"github.com/scholarship-tracker/finder/internal/discovery"
	"github.com/scholarship-tracker/finder/internal/extraction"
	"github.com/scholarship-tracker/finder/internal/pipeline"
	"github.com/scholarship-tracker/finder/internal/storage"
	"github.com/scholarship-tracker/finder/pkg/ai"
	"github.com/scholarship-tracker/finder/pkg/logging"
	"github.com/scholarship-tracker/finder/pkg/ratelimit"
)

func main() {
	categoriesPath := flag.String("categories", "", "path to a categories JSON file (defaults to the built-in set)")
	categoryIDs := flag.String("category", "", "comma-separated category IDs to run (defaults to all included)")
	serveAPI := flag.Bool("serve", false, "keep the status API running after the discovery run")
	dryRun := flag.Bool("dry-run", false, "use an in-memory store instead of PostgreSQL")
	flag.Parse()

	// Optional env files; absence is not an error.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := config.FromEnv()

	logConfig := logging.DefaultLogConfig()
	logConfig.Level = cfg.LogLevel
	logConfig.Format = cfg.LogFormat
	if err := logging.SetupLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	categories, err := loadCategories(*categoriesPath, *categoryIDs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load categories")
	}

	storeMetrics := storage.NewSimpleMetricsCollector()
	store, err := openStore(ctx, cfg, *dryRun, storeMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	generator := openGenerator(ctx, cfg)
	if generator != nil {
		defer generator.Close()
	}

	var searches *discovery.SearchClient
	var searcher discovery.Searcher
	if cfg.GoogleAPIKey != "" && cfg.GoogleCSEID != "" {
		searches, err = discovery.NewSearchClient(ctx, cfg.GoogleAPIKey, cfg.GoogleCSEID,
			cfg.MaxSearchRequests, cfg.SearchMinInterval, cfg.SearchBackoffBase, cfg.SearchMaxRetries)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create search client")
		}
		searcher = searches
	} else {
		log.Fatal().Msg("GOOGLE_API_KEY and GOOGLE_CUSTOM_SEARCH_CX are required for discovery")
	}

	limiter := ratelimit.NewDomainLimiter(cfg.CrawlDelay)
	crawlConfig := &crawler.CrawlConfig{
		UserAgent:         cfg.UserAgent,
		CrawlDelay:        cfg.CrawlDelay,
		MaxPagesPerDomain: cfg.MaxPagesPerDomain,
		MaxDepth:          cfg.MaxDepth,
		Timeout:           cfg.FetchTimeout,
		MaxRetries:        cfg.MaxRetries,
		RespectRobotsTxt:  cfg.RespectRobotsTxt,
		RespectSitemaps:   cfg.RespectSitemaps,
		FollowLinks:       cfg.FollowLinks,
		ExtractPDFs:       cfg.ExtractPDFs,
	}

	discoverer := discovery.NewDiscoverer(
		discovery.NewQueryGenerator(generator),
		searcher,
		discovery.NewSourceVerifier(generator),
		cfg.MaxSourcesPerCategory,
	)

	bus := pipeline.NewEventBus(256, 2)
	defer bus.Close()

	if _, err := bus.Subscribe(pipeline.AllEventTypes(), logEvent, 64); err != nil {
		log.Warn().Err(err).Msg("Failed to attach event logger")
	}

	runner := pipeline.NewRunner(
		cfg,
		discoverer,
		searches,
		crawler.NewCrawler(crawlConfig, limiter),
		extraction.NewExtractor(generator),
		dedup.NewEngine(store),
		store,
		bus,
	)

	app := api.NewServer(api.NewHandlers(store, runner, bus, storeMetrics))
	if *serveAPI {
		go func() {
			if err := api.Serve(app, cfg.ServerAddr); err != nil {
				log.Error().Err(err).Msg("Status API stopped")
			}
		}()
		defer func() { _ = app.Shutdown() }()
	}

	stats, err := runner.Run(ctx, categories)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Discovery run failed")
		os.Exit(1)
	}

	printSummary(stats)

	if *serveAPI {
		log.Info().Msg("Run complete, status API still serving; Ctrl-C to exit")
		<-ctx.Done()
	}
}

func loadCategories(path, ids string) ([]config.Category, error) {
	categories, err := config.LoadCategories(path)
	if err != nil {
		return nil, err
	}

	if ids == "" {
		return categories, nil
	}

	wanted := make(map[string]bool)
	for _, id := range strings.Split(ids, ",") {
		wanted[strings.TrimSpace(id)] = true
	}
	var filtered []config.Category
	for _, c := range categories {
		if wanted[c.ID] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no categories matched %q", ids)
	}
	return filtered, nil
}

func openStore(ctx context.Context, cfg *config.Config, dryRun bool, metrics storage.MetricsCollector) (storage.Store, error) {
	if dryRun || cfg.DatabaseURL == "" {
		log.Warn().Msg("No DATABASE_URL configured, using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewPostgresStore(ctx, cfg.DatabaseURL, metrics)
}

// openGenerator returns the AI client, or nil when no key is configured.
// The pipeline degrades to template queries and pattern extraction without it.
func openGenerator(ctx context.Context, cfg *config.Config) ai.TextGenerator {
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("No GEMINI_API_KEY configured, running without AI assistance")
		return nil
	}
	client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create Gemini client, running without AI assistance")
		return nil
	}
	return client
}

// logEvent mirrors pipeline events into the structured log at debug level.
func logEvent(_ context.Context, event *pipeline.Event) error {
	log.Debug().
		Str("event", string(event.Type)).
		Str("category", event.Category).
		Str("url", event.URL).
		Str("error", event.Error).
		Msg("Pipeline event")
	return nil
}

func printSummary(stats *pipeline.RunStats) {
	fmt.Printf("\nDiscovery run finished in %s\n", stats.Duration.Round(time.Second))
	fmt.Printf("  categories processed: %d\n", stats.CategoriesProcessed)
	fmt.Printf("  sources discovered:   %d\n", stats.SourcesDiscovered)
	fmt.Printf("  pages crawled:        %d\n", stats.PagesCrawled)
	fmt.Printf("  records extracted:    %d\n", stats.RecordsExtracted)
	fmt.Printf("  new scholarships:     %d\n", stats.NewScholarships)
	fmt.Printf("  updated/merged:       %d\n", stats.UpdatedScholarships)
	fmt.Printf("  search requests used: %d\n", stats.SearchRequestsUsed)
	if len(stats.Errors) > 0 {
		fmt.Printf("  errors:               %d\n", len(stats.Errors))
	}
}
