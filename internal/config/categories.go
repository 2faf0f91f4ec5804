package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Category describes one topical area to search for scholarship providers.
// Categories with Include=false stay configured but are skipped by discovery.
type Category struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Include  bool     `json:"include"`
}

type categoryFile struct {
	Categories []Category `json:"categories"`
}

// DefaultCategories returns the built-in category set used when no category
// file is configured.
func DefaultCategories() []Category {
	return []Category{
		{
			ID:       "stem",
			Name:     "STEM & Technology",
			Keywords: []string{"STEM", "engineering", "computer science", "technology", "mathematics"},
			Include:  true,
		},
		{
			ID:       "healthcare",
			Name:     "Healthcare & Medical",
			Keywords: []string{"medical", "nursing", "healthcare", "pre-med", "public health"},
			Include:  true,
		},
		{
			ID:       "business",
			Name:     "Business & Finance",
			Keywords: []string{"business", "finance", "accounting", "entrepreneurship", "economics"},
			Include:  true,
		},
		{
			ID:       "trades",
			Name:     "Skilled Trades",
			Keywords: []string{"trade school", "vocational", "apprenticeship", "construction", "manufacturing"},
			Include:  true,
		},
		{
			ID:       "arts",
			Name:     "Arts & Humanities",
			Keywords: []string{"arts", "humanities", "music", "design", "creative writing"},
			Include:  false,
		},
	}
}

// LoadCategories reads a category file, keeping only entries with
// Include=true. A missing path falls back to the built-in defaults.
func LoadCategories(path string) ([]Category, error) {
	if path == "" {
		return includedOnly(DefaultCategories()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading category file: %w", err)
	}

	var file categoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing category file: %w", err)
	}

	return includedOnly(file.Categories), nil
}

func includedOnly(categories []Category) []Category {
	included := make([]Category, 0, len(categories))
	for _, c := range categories {
		if c.Include {
			included = append(included, c)
		}
	}
	return included
}

// CategoryByID finds a category in the given set.
func CategoryByID(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
