package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/pkg/ai"
	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// maxPromptChars bounds how much page text is sent to the model.
const maxPromptChars = 3000

// fallbackConfidence is assigned to records produced by the pattern
// fallback, below any AI-verified record.
const fallbackConfidence = 0.6

// relevanceKeywords gate extraction: pages mentioning none of these are
// skipped without spending a model call.
var relevanceKeywords = []string{
	"scholarship",
	"award",
	"grant",
	"financial aid",
	"student funding",
	"educational opportunity",
	"tuition assistance",
	"academic award",
}

const extractPromptTemplate = `Extract scholarship opportunities from this web page text. The page belongs to an organization that may offer scholarships directly.

Page URL: %s
Page text:
%s

Respond with a JSON array only. Each element must have this shape (omit unknown fields):
[{"title": "", "organization": "", "description": "", "award_amount": "", "deadline": "", "eligibility": "", "requirements": [], "academic_level": "", "geographic_restrictions": "", "contact_info": "", "application_url": ""}]

Return [] if the page describes no specific scholarship.`

// fieldLimits clamp model output so a runaway response cannot bloat records.
const (
	maxTitleLen       = 200
	maxOrgLen         = 100
	maxEligibilityLen = 500
	maxDescriptionLen = 500
	maxDeadlineLen    = 50
)

// aiRecord is the shape the extraction prompt asks the model for.
type aiRecord struct {
	Title                  string   `json:"title"`
	Organization           string   `json:"organization"`
	Description            string   `json:"description"`
	AwardAmount            string   `json:"award_amount"`
	Deadline               string   `json:"deadline"`
	Eligibility            string   `json:"eligibility"`
	Requirements           []string `json:"requirements"`
	AcademicLevel          string   `json:"academic_level"`
	GeographicRestrictions string   `json:"geographic_restrictions"`
	ContactInfo            string   `json:"contact_info"`
	ApplicationURL         string   `json:"application_url"`
}

// Extractor turns crawled page text into candidate scholarship records. The
// AI path is preferred; a pattern heuristic covers model outages.
type Extractor struct {
	generator ai.TextGenerator
}

// NewExtractor creates an extractor. generator may be nil, forcing the
// pattern fallback for every page.
func NewExtractor(generator ai.TextGenerator) *Extractor {
	return &Extractor{generator: generator}
}

// Relevant reports whether the page text mentions scholarship vocabulary at
// all. Irrelevant pages are skipped before any model call.
func Relevant(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range relevanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Extract returns candidate records for one page. The page is pre-filtered
// by keyword; AI failures degrade to the pattern fallback rather than
// erroring. Records without a title are dropped.
func (ex *Extractor) Extract(ctx context.Context, pageURL, text, sourceType, category string) []scholarship.ExtractedScholarship {
	if !Relevant(text) {
		log.Debug().Str("url", pageURL).Msg("Page has no scholarship vocabulary, skipping extraction")
		return nil
	}

	if ex.generator != nil {
		records, err := ex.extractWithAI(ctx, pageURL, text, sourceType, category)
		if err == nil {
			return records
		}
		log.Warn().Err(err).Str("url", pageURL).Msg("AI extraction failed, using pattern fallback")
	}

	return ex.extractWithPatterns(pageURL, text, sourceType, category)
}

func (ex *Extractor) extractWithAI(ctx context.Context, pageURL, text, sourceType, category string) ([]scholarship.ExtractedScholarship, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	prompt := fmt.Sprintf(extractPromptTemplate, pageURL, text)

	raw, err := ex.generator.GenerateJSON(ctx, prompt, 2048)
	if err != nil {
		return nil, err
	}

	var parsed []aiRecord
	if err := json.Unmarshal([]byte(ai.CleanJSONBlock(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing extraction response: %w", err)
	}

	var records []scholarship.ExtractedScholarship
	for _, r := range parsed {
		title := clamp(strings.TrimSpace(r.Title), maxTitleLen)
		if title == "" {
			continue
		}
		min, max := ParseAmount(r.AwardAmount)
		rec := scholarship.ExtractedScholarship{
			Title:                  title,
			Organization:           clamp(strings.TrimSpace(r.Organization), maxOrgLen),
			Description:            clamp(strings.TrimSpace(r.Description), maxDescriptionLen),
			URL:                    pageURL,
			SourceType:             sourceType,
			AwardAmount:            strings.TrimSpace(r.AwardAmount),
			MinAward:               min,
			MaxAward:               max,
			Deadline:               clamp(strings.TrimSpace(r.Deadline), maxDeadlineLen),
			Eligibility:            clamp(strings.TrimSpace(r.Eligibility), maxEligibilityLen),
			Requirements:           r.Requirements,
			AcademicLevel:          strings.TrimSpace(r.AcademicLevel),
			GeographicRestrictions: strings.TrimSpace(r.GeographicRestrictions),
			ContactInfo:            strings.TrimSpace(r.ContactInfo),
			ApplicationURL:         strings.TrimSpace(r.ApplicationURL),
			Category:               category,
			Confidence:             0.9,
			ExtractedAt:            time.Now().UTC(),
			Metadata:               map[string]string{"extraction_method": "ai"},
		}
		records = append(records, rec)
	}

	log.Debug().Str("url", pageURL).Int("records", len(records)).Msg("AI extraction complete")
	return records, nil
}

// Fallback patterns applied when no model is available. Page text is
// whitespace-collapsed, so open-ended captures are clamped rather than
// line-bounded.
var (
	deadlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:deadline|due date|apply by|application deadline)[:\s]+([A-Za-z]+\s+\d{1,2},?\s+\d{4})`),
		regexp.MustCompile(`(?i)(?:deadline|due date|apply by|application deadline)[:\s]+(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)(?:deadline|due date|apply by|application deadline)[:\s]+(\d{1,2}-\d{1,2}-\d{4})`),
		regexp.MustCompile(`(?i)([A-Za-z]+\s+\d{1,2},?\s+\d{4})\s*(?:deadline|due date)`),
		regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2}/\d{4})\s*(?:deadline|due date)`),
	}
	eligibilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:eligibility|requirements|qualifications)[:\s]+(.+)`),
		regexp.MustCompile(`(?i)(?:must be|should be|applicants must)\s+(.+)`),
		regexp.MustCompile(`(?i)(?:open to|available to)\s+(.+)`),
	}
	academicLevelPattern = regexp.MustCompile(`undergraduate|graduate|high school|college|university|phd|masters?|freshman|sophomore|junior|senior|bachelor|master|doctorate|associate`)
	contactPatterns      = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:contact|email|phone)[:\s]+(.+)`),
		regexp.MustCompile(`(?i)(?:for more information|questions)[:\s]+(.+)`),
	}
)

const (
	maxFallbackEligibilityLen = 200
	maxFallbackContactLen     = 100
)

// extractWithPatterns is the degraded path: one coarse record assembled from
// the page's visible amount, deadline, eligibility, academic-level, and
// contact tokens. The organization falls back to the page's domain so the
// record still carries a usable fingerprint and dedup key.
func (ex *Extractor) extractWithPatterns(pageURL, text, sourceType, category string) []scholarship.ExtractedScholarship {
	organization := organizationFromURL(pageURL)
	title := findPatternTitle(text)
	if title == "" {
		if organization == "" {
			return nil
		}
		title = "Scholarship from " + organization
	}

	var description string
	if organization != "" {
		description = "Scholarship opportunity from " + organization
	}

	awardToken := findAmountToken(text)
	min, max := ParseAmount(awardToken)

	rec := scholarship.ExtractedScholarship{
		Title:         clamp(title, maxTitleLen),
		Organization:  clamp(organization, maxOrgLen),
		Description:   description,
		URL:           pageURL,
		SourceType:    sourceType,
		AwardAmount:   awardToken,
		MinAward:      min,
		MaxAward:      max,
		Deadline:      clamp(firstCapture(deadlinePatterns, text), maxDeadlineLen),
		Eligibility:   clamp(firstCapture(eligibilityPatterns, text), maxFallbackEligibilityLen),
		AcademicLevel: findAcademicLevel(text),
		ContactInfo:   clamp(firstCapture(contactPatterns, text), maxFallbackContactLen),
		Category:      category,
		Confidence:    fallbackConfidence,
		ExtractedAt:   time.Now().UTC(),
		Metadata:      map[string]string{"extraction_method": "pattern"},
	}
	log.Debug().Str("url", pageURL).Str("title", rec.Title).Msg("Pattern extraction produced a record")
	return []scholarship.ExtractedScholarship{rec}
}

// organizationFromURL derives an organization name from the page's host,
// e.g. "https://www.acme-foundation.org/x" becomes "Acme Foundation".
func organizationFromURL(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	if i := strings.LastIndex(host, "."); i > 0 {
		host = host[:i]
	}
	words := strings.FieldsFunc(host, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstCapture(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func findAcademicLevel(text string) string {
	m := academicLevelPattern.FindString(strings.ToLower(text))
	if m == "" {
		return ""
	}
	return strings.ToUpper(m[:1]) + m[1:]
}

// titlePattern matches a capitalized phrase ending in "Scholarship", e.g.
// "The Jane Doe Memorial Scholarship". Page text is whitespace-collapsed, so
// the phrase is bounded by word count rather than line breaks.
var titlePattern = regexp.MustCompile(`(?:[A-Z][\w'&.-]*\s+){1,7}Scholarship(?:s| Program| Fund| Award)?`)

// findPatternTitle looks for a phrase that names a scholarship.
func findPatternTitle(text string) string {
	return strings.TrimSpace(titlePattern.FindString(text))
}

func clamp(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
