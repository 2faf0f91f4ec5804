package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/pkg/ai"
)

// minVerificationConfidence is the confidence floor a source must clear
// before it is kept for crawling.
const minVerificationConfidence = 0.6

const verifyPromptTemplate = `Evaluate whether this website is an organization that directly offers scholarships to students.

Title: %s
URL: %s
Description: %s

Respond with JSON only, in exactly this shape:
{"offers_scholarships": true, "relevance_score": 0.0, "confidence": 0.0, "reasoning": "one sentence"}`

// verdict is the model's judgment of one search result.
type verdict struct {
	OffersScholarships bool    `json:"offers_scholarships"`
	RelevanceScore     float64 `json:"relevance_score"`
	Confidence         float64 `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
}

// SourceVerifier filters raw search results down to sources worth crawling.
type SourceVerifier struct {
	generator ai.TextGenerator
}

// NewSourceVerifier creates a verifier. generator may be nil, in which case
// all results pass with a neutral confidence.
func NewSourceVerifier(generator ai.TextGenerator) *SourceVerifier {
	return &SourceVerifier{generator: generator}
}

// Verify judges one search result. It returns whether the source should be
// kept and the model's confidence. Any AI or parse failure rejects the
// source; an unverifiable result is never crawled on trust.
func (sv *SourceVerifier) Verify(ctx context.Context, result SearchResult) (bool, float64) {
	if sv.generator == nil {
		return true, minVerificationConfidence
	}

	prompt := fmt.Sprintf(verifyPromptTemplate, result.Title, result.URL, result.Snippet)

	raw, err := sv.generator.GenerateJSON(ctx, prompt, 256)
	if err != nil {
		log.Warn().Err(err).Str("url", result.URL).Msg("Source verification failed, rejecting")
		return false, 0
	}

	var v verdict
	if err := json.Unmarshal([]byte(ai.CleanJSONBlock(raw)), &v); err != nil {
		log.Warn().Err(err).Str("url", result.URL).Msg("Unparseable verification response, rejecting")
		return false, 0
	}

	keep := v.OffersScholarships && v.Confidence > minVerificationConfidence
	log.Debug().
		Str("url", result.URL).
		Bool("keep", keep).
		Float64("confidence", v.Confidence).
		Str("reasoning", v.Reasoning).
		Msg("Verified discovery source")

	return keep, v.Confidence
}
