package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/pkg/logging"
	"github.com/scholarship-tracker/finder/pkg/ratelimit"
)

// CrawlConfig is the session-wide crawl policy. It is immutable once the
// crawler is constructed.
type CrawlConfig struct {
	UserAgent         string        `json:"user_agent"`
	CrawlDelay        time.Duration `json:"crawl_delay"`
	MaxPagesPerDomain int           `json:"max_pages_per_domain"`
	MaxDepth          int           `json:"max_depth"`
	Timeout           time.Duration `json:"timeout"`
	MaxRetries        int           `json:"max_retries"`
	RespectRobotsTxt  bool          `json:"respect_robots_txt"`
	RespectSitemaps   bool          `json:"respect_sitemaps"`
	FollowLinks       bool          `json:"follow_links"`
	ExtractPDFs       bool          `json:"extract_pdfs"`
}

// DefaultCrawlConfig returns the default crawl policy.
func DefaultCrawlConfig() *CrawlConfig {
	return &CrawlConfig{
		UserAgent:         "ScholarshipTrackerBot/1.0 (+https://github.com/scholarship-tracker/finder)",
		CrawlDelay:        1 * time.Second,
		MaxPagesPerDomain: 50,
		MaxDepth:          3,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RespectRobotsTxt:  true,
		RespectSitemaps:   true,
		FollowLinks:       true,
		ExtractPDFs:       true,
	}
}

// FetchResult is the outcome of fetching a single URL.
type FetchResult struct {
	Success bool         `json:"success"`
	Reason  string       `json:"reason,omitempty"`
	Page    *PageContent `json:"page,omitempty"`
}

// DomainCrawl summarizes one breadth-first crawl of a domain.
type DomainCrawl struct {
	Domain       string         `json:"domain"`
	PagesCrawled int            `json:"pages_crawled"`
	Pages        []*PageContent `json:"pages"`
	Errors       []string       `json:"errors,omitempty"`
}

// Crawler fetches pages while honoring robots.txt rules, per-domain crawl
// delays, and page budgets. Robots rules are cached per domain for the
// crawler's lifetime; frontier state is per crawl invocation.
type Crawler struct {
	config   *CrawlConfig
	robots   *RobotsPolicy
	sitemaps func() *SitemapIndex
	limiter  *ratelimit.DomainLimiter
	client   *http.Client

	rulesMu sync.Mutex
	rules   map[string]RobotsRules
}

// maxLinksPerPage caps how many discovered links one page may contribute to
// the frontier.
const maxLinksPerPage = 20

const maxBodySize = 10 * 1024 * 1024

// NewCrawler creates a crawler. The domain limiter may be shared with other
// components so that all traffic to a domain observes one crawl-delay.
func NewCrawler(config *CrawlConfig, limiter *ratelimit.DomainLimiter) *Crawler {
	if config == nil {
		config = DefaultCrawlConfig()
	}
	if limiter == nil {
		limiter = ratelimit.NewDomainLimiter(config.CrawlDelay)
	}
	return &Crawler{
		config:   config,
		robots:   NewRobotsPolicy(config.UserAgent),
		sitemaps: NewSitemapIndex,
		limiter:  limiter,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		rules: make(map[string]RobotsRules),
	}
}

// rulesFor returns the cached robots rules for a domain, fetching them on
// first use. One crawler is shared across concurrent category workers, so
// the cache is mutex-guarded; holding the lock across the fetch also keeps
// a domain's robots.txt from being requested twice.
func (c *Crawler) rulesFor(ctx context.Context, domain string) RobotsRules {
	c.rulesMu.Lock()
	defer c.rulesMu.Unlock()

	if rules, ok := c.rules[domain]; ok {
		return rules
	}
	rules := c.robots.Fetch(ctx, domain)
	c.rules[domain] = rules
	return rules
}

// CrawlURL fetches exactly one URL, applying the robots check and the
// domain's crawl delay first. No link expansion happens in this mode.
func (c *Crawler) CrawlURL(ctx context.Context, rawURL string) *FetchResult {
	log.Info().Str("url", rawURL).Msg("Crawling single URL")

	domain, err := domainOf(rawURL)
	if err != nil {
		return &FetchResult{Success: false, Reason: err.Error()}
	}

	var rules RobotsRules
	if c.config.RespectRobotsTxt {
		rules = c.rulesFor(ctx, domain)
		if !c.robots.CanFetch(rawURL, rules) {
			log.Warn().Str("url", rawURL).Msg("robots.txt disallows crawling")
			return &FetchResult{Success: false, Reason: "robots_txt_disallows"}
		}
	}

	if err := c.limiter.Wait(ctx, domain, rules.CrawlDelay); err != nil {
		return &FetchResult{Success: false, Reason: err.Error()}
	}

	page, err := c.fetchPage(ctx, rawURL)
	if err != nil {
		log.Error().Err(err).Str("url", rawURL).Msg("Error crawling URL")
		return &FetchResult{Success: false, Reason: err.Error()}
	}
	return &FetchResult{Success: true, Page: page}
}

// CrawlDomain crawls a domain breadth-first, seeding the frontier from
// sitemaps when available, up to maxPages pages. maxPages <= 0 uses the
// configured per-domain budget.
func (c *Crawler) CrawlDomain(ctx context.Context, startURL string, maxPages int) (*DomainCrawl, error) {
	if maxPages <= 0 {
		maxPages = c.config.MaxPagesPerDomain
	}

	domain, err := domainOf(startURL)
	if err != nil {
		return nil, err
	}

	clog := logging.GetCrawlLogger(domain)
	clog.Info().
		Str("start_url", startURL).
		Int("max_pages", maxPages).
		Msg("Starting ethical domain crawl")

	result := &DomainCrawl{Domain: domain}

	var rules RobotsRules
	if c.config.RespectRobotsTxt {
		rules = c.rulesFor(ctx, domain)
		if !c.robots.CanFetch(startURL, rules) {
			return nil, fmt.Errorf("robots.txt disallows crawling %s", startURL)
		}
	}

	// Session frontier state: FIFO queue plus visited set. A URL enters the
	// visited set exactly once, whether the fetch succeeded or not.
	var frontier []string
	visited := make(map[string]bool)

	if c.config.RespectSitemaps && len(rules.Sitemaps) > 0 {
		seeded := c.sitemaps().Expand(ctx, rules.Sitemaps, domain)
		for _, u := range seeded {
			if c.config.RespectRobotsTxt && !c.robots.CanFetch(u, rules) {
				continue
			}
			frontier = append(frontier, u)
		}
	}
	if len(frontier) == 0 {
		frontier = append(frontier, startURL)
	}

	for len(frontier) > 0 && result.PagesCrawled < maxPages {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		u := frontier[0]
		frontier = frontier[1:]

		if visited[u] {
			continue
		}

		if c.config.RespectRobotsTxt && !c.robots.CanFetch(u, rules) {
			clog.Info().Str("url", u).Msg("Skipping URL disallowed by robots.txt")
			visited[u] = true
			continue
		}

		if err := c.limiter.Wait(ctx, domain, rules.CrawlDelay); err != nil {
			return result, err
		}

		page, err := c.fetchPage(ctx, u)
		visited[u] = true
		if err != nil {
			// A failed fetch stays in the visited set so it is never
			// retried within this session.
			msg := fmt.Sprintf("error crawling %s: %v", u, err)
			clog.Error().Err(err).Str("url", u).Msg("Fetch failed")
			result.Errors = append(result.Errors, msg)
			continue
		}

		result.PagesCrawled++
		result.Pages = append(result.Pages, page)

		if c.config.FollowLinks {
			frontier = append(frontier, filterNewLinks(page.Links, domain, visited)...)
		}
	}

	clog.Info().
		Int("pages_crawled", result.PagesCrawled).
		Int("errors", len(result.Errors)).
		Msg("Domain crawl complete")

	return result, nil
}

// fetchPage performs the HTTP GET and dispatches on content type. HTML and
// (optionally) PDF bodies produce page content; other types are skipped with
// an empty page rather than an error.
func (c *Crawler) fetchPage(ctx context.Context, rawURL string) (*PageContent, error) {
	log.Debug().Str("url", rawURL).Msg("Fetching page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "text/html"):
		return parseHTMLPage(rawURL, string(body), c.config.FollowLinks, c.config.ExtractPDFs)
	case strings.Contains(contentType, "application/pdf") && c.config.ExtractPDFs:
		text, err := extractPDFText(body)
		if err != nil {
			return nil, err
		}
		return &PageContent{URL: rawURL, Text: text, ContentType: "application/pdf"}, nil
	default:
		log.Debug().Str("url", rawURL).Str("content_type", contentType).Msg("Skipping unsupported content type")
		return &PageContent{URL: rawURL, ContentType: contentType}, nil
	}
}

// filterNewLinks keeps same-domain links not yet visited, capped per page to
// avoid frontier explosion.
func filterNewLinks(links []string, domain string, visited map[string]bool) []string {
	base, err := url.Parse(domain)
	if err != nil {
		return nil
	}

	var filtered []string
	for _, link := range links {
		parsed, err := url.Parse(link)
		if err != nil {
			continue
		}
		if parsed.Host != base.Host {
			continue
		}
		if visited[link] {
			continue
		}
		filtered = append(filtered, link)
		if len(filtered) >= maxLinksPerPage {
			break
		}
	}
	return filtered
}
