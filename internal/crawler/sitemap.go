package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SitemapIndex expands sitemap and sitemap-index XML into a filtered list of
// content URLs worth crawling. Failures on individual sitemaps are logged and
// skipped so one broken file never loses the rest.
type SitemapIndex struct {
	client  *http.Client
	visited map[string]bool
}

// relevantKeywords mark URLs whose path suggests scholarship content.
var relevantKeywords = []string{
	"scholarship", "award", "grant", "financial-aid", "student",
	"education", "academic", "tuition", "funding", "opportunity",
}

// structuralKeywords mark pages that often link to scholarship content even
// when the path itself does not mention it.
var structuralKeywords = []string{"about", "programs", "services", "community"}

const maxSitemapSize = 10 * 1024 * 1024

// NewSitemapIndex creates a sitemap processor. Each crawl session should use
// its own instance; the visited set guards against sitemap reference cycles.
func NewSitemapIndex() *SitemapIndex {
	return &SitemapIndex{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		visited: make(map[string]bool),
	}
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

type sitemapXML struct {
	URLs     []sitemapEntry `xml:"url"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

// Expand recursively resolves the given sitemap URLs into content URLs,
// filtered down to those likely to carry scholarship content.
func (si *SitemapIndex) Expand(ctx context.Context, sitemapURLs []string, domain string) []string {
	var all []string
	for _, sitemapURL := range sitemapURLs {
		all = append(all, si.expandOne(ctx, sitemapURL, domain)...)
	}

	seen := make(map[string]bool, len(all))
	var relevant []string
	for _, u := range all {
		if seen[u] {
			continue
		}
		seen[u] = true
		if isRelevantURL(u) {
			relevant = append(relevant, u)
		}
	}

	log.Info().
		Str("domain", domain).
		Int("total_urls", len(all)).
		Int("relevant_urls", len(relevant)).
		Msg("Expanded sitemaps")

	return relevant
}

func (si *SitemapIndex) expandOne(ctx context.Context, sitemapURL, domain string) []string {
	if si.visited[sitemapURL] {
		return nil
	}
	si.visited[sitemapURL] = true

	log.Debug().Str("sitemap_url", sitemapURL).Msg("Processing sitemap")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		log.Error().Err(err).Str("sitemap_url", sitemapURL).Msg("Invalid sitemap URL")
		return nil
	}

	resp, err := si.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("sitemap_url", sitemapURL).Msg("Error fetching sitemap")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("sitemap_url", sitemapURL).Msg("Sitemap fetch failed")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapSize))
	if err != nil {
		log.Error().Err(err).Str("sitemap_url", sitemapURL).Msg("Error reading sitemap")
		return nil
	}

	var doc sitemapXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		log.Error().Err(err).Str("sitemap_url", sitemapURL).Msg("Error parsing sitemap XML")
		return nil
	}

	var urls []string
	for _, entry := range append(doc.URLs, doc.Sitemaps...) {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		// Nested sitemap references are detected by name and expanded
		// recursively; the visited set breaks self-references.
		if strings.Contains(strings.ToLower(loc), "sitemap") {
			urls = append(urls, si.expandOne(ctx, loc, domain)...)
		} else {
			urls = append(urls, loc)
		}
	}

	return urls
}

func isRelevantURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, keyword := range relevantKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	for _, keyword := range structuralKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
