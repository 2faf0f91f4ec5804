package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RobotsRules holds the parsed robots.txt directives for one domain. The
// zero value is fully permissive: everything allowed, no crawl delay, no
// sitemaps.
type RobotsRules struct {
	Allowed    []string
	Disallowed []string
	CrawlDelay time.Duration
	Sitemaps   []string
}

// RobotsPolicy fetches and parses robots.txt files. Only directive groups
// addressed to "*" or the configured user agent are honored; rules from all
// matching groups are unioned rather than replaced.
type RobotsPolicy struct {
	userAgent string
	client    *http.Client
}

// robots.txt responses larger than this are truncated.
const maxRobotsSize = 64 * 1024

// NewRobotsPolicy creates a policy parser for the given crawler user agent.
func NewRobotsPolicy(userAgent string) *RobotsPolicy {
	return &RobotsPolicy{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch retrieves and parses robots.txt for a domain. Network failures,
// non-200 responses, and malformed content all yield permissive empty rules,
// never an error: an unreachable robots.txt must not block a crawl.
func (rp *RobotsPolicy) Fetch(ctx context.Context, domain string) RobotsRules {
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	robotsURL := strings.TrimSuffix(domain, "/") + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return RobotsRules{}
	}
	req.Header.Set("User-Agent", rp.userAgent)

	resp, err := rp.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("robots_url", robotsURL).Msg("Could not fetch robots.txt, assuming allowed")
		return RobotsRules{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Info().Int("status", resp.StatusCode).Str("robots_url", robotsURL).Msg("No robots.txt found")
		return RobotsRules{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return RobotsRules{}
	}

	rules := rp.parse(string(body))
	log.Info().
		Str("robots_url", robotsURL).
		Int("disallowed", len(rules.Disallowed)).
		Int("allowed", len(rules.Allowed)).
		Dur("crawl_delay", rules.CrawlDelay).
		Int("sitemaps", len(rules.Sitemaps)).
		Msg("Parsed robots.txt")

	return rules
}

// parse extracts the rules addressed to this crawler. Directives are grouped
// by the most recently seen User-agent line; Sitemap directives apply to the
// whole file.
func (rp *RobotsPolicy) parse(content string) RobotsRules {
	var rules RobotsRules
	currentAgent := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "user-agent":
			currentAgent = value
		case "disallow":
			if rp.agentMatches(currentAgent) && value != "" {
				rules.Disallowed = append(rules.Disallowed, value)
			}
		case "allow":
			if rp.agentMatches(currentAgent) && value != "" {
				rules.Allowed = append(rules.Allowed, value)
			}
		case "crawl-delay":
			if rp.agentMatches(currentAgent) {
				if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
					rules.CrawlDelay = time.Duration(seconds * float64(time.Second))
				}
			}
		case "sitemap":
			rules.Sitemaps = append(rules.Sitemaps, value)
		}
	}

	return rules
}

func (rp *RobotsPolicy) agentMatches(agent string) bool {
	return agent == "*" || strings.EqualFold(agent, rp.userAgent)
}

// CanFetch reports whether the rules permit fetching the URL. A path
// matching a Disallow prefix is blocked unless an Allow prefix rescues it.
// When the rules carry any Allow directives, they scope the crawl: paths
// matching no Allow prefix are blocked too.
func (rp *RobotsPolicy) CanFetch(rawURL string, rules RobotsRules) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	for _, disallowed := range rules.Disallowed {
		if strings.HasPrefix(path, disallowed) {
			return prefixMatches(path, rules.Allowed)
		}
	}
	if len(rules.Allowed) > 0 {
		return prefixMatches(path, rules.Allowed)
	}
	return true
}

func prefixMatches(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// domainOf returns the scheme://host base for a URL.
func domainOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
