package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the settings consumed by the discovery pipeline. Values come
// from the environment with defaults matching conservative operation.
type Config struct {
	// Provider credentials
	GeminiAPIKey   string
	GeminiModel    string
	GoogleAPIKey   string
	GoogleCSEID    string
	DatabaseURL    string

	// Crawling
	UserAgent         string
	CrawlDelay        time.Duration
	MaxPagesPerDomain int
	MaxDepth          int
	FetchTimeout      time.Duration
	MaxRetries        int
	RespectRobotsTxt  bool
	RespectSitemaps   bool
	FollowLinks       bool
	ExtractPDFs       bool

	// Discovery
	MaxSourcesPerCategory     int
	MaxScholarshipsPerSource  int
	MaxSearchRequests         int
	SearchMinInterval         time.Duration
	SearchBackoffBase         time.Duration
	SearchMaxRetries          int
	ConservativeRateLimiting  bool

	// Status API
	ServerAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		GeminiModel:              "gemini-1.5-flash",
		UserAgent:                "ScholarshipTrackerBot/1.0 (+https://github.com/scholarship-tracker/finder)",
		CrawlDelay:               1 * time.Second,
		MaxPagesPerDomain:        50,
		MaxDepth:                 3,
		FetchTimeout:             30 * time.Second,
		MaxRetries:               3,
		RespectRobotsTxt:         true,
		RespectSitemaps:          true,
		FollowLinks:              true,
		ExtractPDFs:              true,
		MaxSourcesPerCategory:    5,
		MaxScholarshipsPerSource: 3,
		MaxSearchRequests:        20,
		SearchMinInterval:        3 * time.Second,
		SearchBackoffBase:        5 * time.Second,
		SearchMaxRetries:         3,
		ConservativeRateLimiting: true,
		ServerAddr:               ":8090",
		LogLevel:                 "info",
		LogFormat:                "pretty",
	}
}

// FromEnv builds a Config from the process environment on top of the
// defaults. Unset or malformed variables leave the default in place.
func FromEnv() *Config {
	cfg := DefaultConfig()

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.GoogleCSEID = os.Getenv("GOOGLE_CUSTOM_SEARCH_CX")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("CRAWLER_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.ServerAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	cfg.MaxPagesPerDomain = envInt("CRAWLER_MAX_PAGES_PER_DOMAIN", cfg.MaxPagesPerDomain)
	cfg.MaxDepth = envInt("CRAWLER_MAX_DEPTH", cfg.MaxDepth)
	cfg.MaxRetries = envInt("CRAWLER_MAX_RETRIES", cfg.MaxRetries)
	cfg.MaxSourcesPerCategory = envInt("AI_DISCOVERY_MAX_SOURCES_PER_CATEGORY", cfg.MaxSourcesPerCategory)
	cfg.MaxScholarshipsPerSource = envInt("AI_DISCOVERY_MAX_SCHOLARSHIPS_PER_SOURCE", cfg.MaxScholarshipsPerSource)
	cfg.MaxSearchRequests = envInt("AI_DISCOVERY_MAX_GOOGLE_REQUESTS", cfg.MaxSearchRequests)
	cfg.SearchMaxRetries = envInt("SEARCH_MAX_RETRIES", cfg.SearchMaxRetries)

	cfg.CrawlDelay = envSeconds("CRAWLER_DELAY_SEC", cfg.CrawlDelay)
	cfg.FetchTimeout = envSeconds("CRAWLER_TIMEOUT_SEC", cfg.FetchTimeout)
	cfg.SearchMinInterval = envSeconds("SEARCH_MIN_INTERVAL_SEC", cfg.SearchMinInterval)
	cfg.SearchBackoffBase = envSeconds("SEARCH_BACKOFF_BASE_SEC", cfg.SearchBackoffBase)

	cfg.RespectRobotsTxt = envBool("CRAWLER_RESPECT_ROBOTS", cfg.RespectRobotsTxt)
	cfg.RespectSitemaps = envBool("CRAWLER_RESPECT_SITEMAPS", cfg.RespectSitemaps)
	cfg.FollowLinks = envBool("CRAWLER_FOLLOW_LINKS", cfg.FollowLinks)
	cfg.ExtractPDFs = envBool("CRAWLER_EXTRACT_PDFS", cfg.ExtractPDFs)
	cfg.ConservativeRateLimiting = envBool("AI_DISCOVERY_CONSERVATIVE", cfg.ConservativeRateLimiting)

	return cfg
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
