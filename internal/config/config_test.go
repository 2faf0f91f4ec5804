package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1*time.Second, cfg.CrawlDelay)
	assert.Equal(t, 50, cfg.MaxPagesPerDomain)
	assert.Equal(t, 20, cfg.MaxSearchRequests)
	assert.Equal(t, 3*time.Second, cfg.SearchMinInterval)
	assert.True(t, cfg.RespectRobotsTxt)
	assert.True(t, cfg.ConservativeRateLimiting)
	assert.Contains(t, cfg.UserAgent, "ScholarshipTrackerBot")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CRAWLER_MAX_PAGES_PER_DOMAIN", "10")
	t.Setenv("CRAWLER_DELAY_SEC", "2.5")
	t.Setenv("AI_DISCOVERY_MAX_GOOGLE_REQUESTS", "5")
	t.Setenv("AI_DISCOVERY_CONSERVATIVE", "false")
	t.Setenv("CRAWLER_EXTRACT_PDFS", "false")

	cfg := FromEnv()

	assert.Equal(t, "test-key", cfg.GeminiAPIKey)
	assert.Equal(t, 10, cfg.MaxPagesPerDomain)
	assert.Equal(t, 2500*time.Millisecond, cfg.CrawlDelay)
	assert.Equal(t, 5, cfg.MaxSearchRequests)
	assert.False(t, cfg.ConservativeRateLimiting)
	assert.False(t, cfg.ExtractPDFs)
}

func TestFromEnvMalformedValuesKeepDefaults(t *testing.T) {
	t.Setenv("CRAWLER_MAX_PAGES_PER_DOMAIN", "lots")
	t.Setenv("CRAWLER_DELAY_SEC", "-1")
	t.Setenv("AI_DISCOVERY_CONSERVATIVE", "maybe")

	cfg := FromEnv()

	assert.Equal(t, 50, cfg.MaxPagesPerDomain)
	assert.Equal(t, 1*time.Second, cfg.CrawlDelay)
	assert.True(t, cfg.ConservativeRateLimiting)
}

func TestDefaultCategoriesIncludeFlag(t *testing.T) {
	categories := DefaultCategories()

	ids := make(map[string]bool)
	for _, c := range categories {
		ids[c.ID] = c.Include
	}

	assert.True(t, ids["stem"])
	assert.True(t, ids["healthcare"])
	assert.False(t, ids["arts"], "arts ships disabled by default")
}

func TestLoadCategoriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"categories": [
			{"id": "custom", "name": "Custom", "keywords": ["kw"], "include": true},
			{"id": "off", "name": "Off", "keywords": [], "include": false}
		]
	}`), 0644))

	categories, err := LoadCategories(path)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "custom", categories[0].ID)
}

func TestLoadCategoriesEmptyPathUsesDefaults(t *testing.T) {
	categories, err := LoadCategories("")
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	for _, c := range categories {
		assert.True(t, c.Include)
	}
}

func TestLoadCategoriesMissingFile(t *testing.T) {
	_, err := LoadCategories("/does/not/exist.json")
	assert.Error(t, err)
}

func TestCategoryByID(t *testing.T) {
	categories := DefaultCategories()

	c, ok := CategoryByID(categories, "stem")
	require.True(t, ok)
	assert.Equal(t, "STEM & Technology", c.Name)

	_, ok = CategoryByID(categories, "nope")
	assert.False(t, ok)
}
