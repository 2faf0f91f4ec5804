package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAgent = "ScholarshipTrackerBot/1.0"

func TestParseRobotsGroups(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)

	rules := rp.parse(`# robots for example.org
User-agent: *
Disallow: /admin/
Crawl-delay: 2

User-agent: ScholarshipTrackerBot/1.0
Disallow: /drafts/
Allow: /drafts/published/

User-agent: OtherBot
Disallow: /

Sitemap: https://example.org/sitemap.xml
`)

	assert.ElementsMatch(t, []string{"/admin/", "/drafts/"}, rules.Disallowed,
		"rules from wildcard and named groups are unioned")
	assert.Equal(t, []string{"/drafts/published/"}, rules.Allowed)
	assert.Equal(t, 2*time.Second, rules.CrawlDelay)
	assert.Equal(t, []string{"https://example.org/sitemap.xml"}, rules.Sitemaps)
}

func TestParseRobotsIgnoresOtherAgents(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)

	rules := rp.parse(`User-agent: Googlebot
Disallow: /
Crawl-delay: 30
`)

	assert.Empty(t, rules.Disallowed)
	assert.Zero(t, rules.CrawlDelay)
}

func TestCanFetchDisallowPrefix(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)
	rules := RobotsRules{Disallowed: []string{"/private/"}}

	assert.False(t, rp.CanFetch("https://example.org/private/page", rules))
	assert.True(t, rp.CanFetch("https://example.org/public/page", rules))
	assert.True(t, rp.CanFetch("https://example.org/", rules))
}

func TestCanFetchAllowOverridesDisallow(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)
	rules := RobotsRules{
		Allowed:    []string{"/private/ok"},
		Disallowed: []string{"/private/"},
	}

	assert.True(t, rp.CanFetch("https://example.org/private/ok", rules),
		"an Allow prefix rescues a path a Disallow would block")
	assert.True(t, rp.CanFetch("https://example.org/private/ok/deeper", rules))
	assert.False(t, rp.CanFetch("https://example.org/private/other", rules))
	assert.False(t, rp.CanFetch("https://example.org/other", rules),
		"Allow directives scope the crawl to their prefixes")
}

func TestCanFetchAllowListScoping(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)
	rules := RobotsRules{Allowed: []string{"/scholarships/"}}

	assert.True(t, rp.CanFetch("https://example.org/scholarships/stem", rules))
	assert.False(t, rp.CanFetch("https://example.org/careers/jobs", rules),
		"with Allow rules present, unlisted paths are not fetched")
	assert.True(t, rp.CanFetch("https://example.org/anything",
		RobotsRules{Disallowed: []string{"/private/"}}),
		"without Allow rules, only Disallow prefixes block")
}

func TestCanFetchEmptyRulesPermissive(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)
	assert.True(t, rp.CanFetch("https://example.org/anything", RobotsRules{}))
}

func TestFetchRobotsFromServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/robots.txt", r.URL.Path)
		w.Write([]byte("User-agent: *\nDisallow: /secret/\nCrawl-delay: 1.5\n"))
	}))
	defer server.Close()

	rp := NewRobotsPolicy(testAgent)
	rules := rp.Fetch(context.Background(), server.URL)

	assert.Equal(t, []string{"/secret/"}, rules.Disallowed)
	assert.Equal(t, 1500*time.Millisecond, rules.CrawlDelay)
}

func TestFetchRobotsMissingIsPermissive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	rp := NewRobotsPolicy(testAgent)
	rules := rp.Fetch(context.Background(), server.URL)

	assert.Empty(t, rules.Disallowed)
	assert.Empty(t, rules.Allowed)
	assert.Zero(t, rules.CrawlDelay)
}

func TestFetchRobotsUnreachableIsPermissive(t *testing.T) {
	rp := NewRobotsPolicy(testAgent)
	rules := rp.Fetch(context.Background(), "http://127.0.0.1:1")

	assert.Empty(t, rules.Disallowed)
	assert.True(t, rp.CanFetch("http://127.0.0.1:1/anything", rules))
}
