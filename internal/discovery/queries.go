package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/internal/config"
	"github.com/scholarship-tracker/finder/pkg/ai"
)

// queriesPerCategory is how many search queries the model is asked to
// produce per category.
const queriesPerCategory = 5

// topQueriesUsed is how many of the generated queries are actually executed.
const topQueriesUsed = 3

const queryPromptTemplate = `Generate %d effective Google search queries to find organizations that offer scholarships for students in the "%s" field.

Focus keywords: %s

The queries should target organization websites that directly offer scholarships, not scholarship listing aggregators.

Respond with a JSON array of query strings only, for example:
["query one", "query two"]`

// QueryGenerator produces search queries for a category, using the AI model
// when one is available and deterministic templates otherwise.
type QueryGenerator struct {
	generator ai.TextGenerator
}

// NewQueryGenerator creates a query generator. generator may be nil, in which
// case only the fallback templates are used.
func NewQueryGenerator(generator ai.TextGenerator) *QueryGenerator {
	return &QueryGenerator{generator: generator}
}

// Generate returns search queries for the category, most promising first.
// AI failures degrade to the fallback templates rather than erroring.
func (qg *QueryGenerator) Generate(ctx context.Context, category config.Category) []string {
	if qg.generator == nil {
		return fallbackQueries(category)
	}

	prompt := fmt.Sprintf(queryPromptTemplate, queriesPerCategory, category.Name, strings.Join(category.Keywords, ", "))

	raw, err := qg.generator.GenerateJSON(ctx, prompt, 512)
	if err != nil {
		log.Warn().Err(err).Str("category", category.ID).Msg("AI query generation failed, using fallback queries")
		return fallbackQueries(category)
	}

	var queries []string
	if err := json.Unmarshal([]byte(ai.CleanJSONBlock(raw)), &queries); err != nil {
		log.Warn().Err(err).Str("category", category.ID).Msg("AI query response was not a JSON array, using fallback queries")
		return fallbackQueries(category)
	}

	var cleaned []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return fallbackQueries(category)
	}

	log.Debug().Str("category", category.ID).Int("queries", len(cleaned)).Msg("Generated search queries")
	return cleaned
}

// fallbackQueries builds three template queries from the category keywords.
func fallbackQueries(category config.Category) []string {
	keyword := category.Name
	if len(category.Keywords) > 0 {
		keyword = category.Keywords[0]
	}
	return []string{
		fmt.Sprintf("%s scholarships for students", keyword),
		fmt.Sprintf("%s scholarship program apply", keyword),
		fmt.Sprintf("organizations offering %s scholarships", keyword),
	}
}
