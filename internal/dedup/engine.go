package dedup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// Fuzzy-match policy: titles dominate, organizations break ties, and only
// recent records are considered so long-dead entries never absorb new ones.
const (
	titleWeight     = 0.7
	orgWeight       = 0.3
	fuzzyThreshold  = 0.85
	candidateWindow = 6 * 30 * 24 * time.Hour
	candidateLimit  = 50
)

// Lookup is the subset of the store the engine queries. The storage package
// satisfies it; tests use an in-memory implementation.
type Lookup interface {
	FindByChecksum(ctx context.Context, checksum string) (*scholarship.Scholarship, error)
	FindByURL(ctx context.Context, url string) (*scholarship.Scholarship, error)
	FindSimilar(ctx context.Context, organization string, since time.Time, limit int) ([]*scholarship.Scholarship, error)
}

// MatchKind records which stage identified a duplicate.
type MatchKind string

const (
	MatchNone     MatchKind = ""
	MatchChecksum MatchKind = "checksum"
	MatchURL      MatchKind = "url"
	MatchFuzzy    MatchKind = "fuzzy"
)

// Match is the engine's verdict for one candidate.
type Match struct {
	Kind     MatchKind
	Existing *scholarship.Scholarship
}

// Engine detects duplicates with three escalating stages: exact checksum,
// URL equality, then weighted fuzzy similarity over recent records.
type Engine struct {
	store Lookup
	now   func() time.Time
}

// NewEngine creates a duplicate-detection engine over the given store.
func NewEngine(store Lookup) *Engine {
	return &Engine{store: store, now: time.Now}
}

// FindDuplicate returns the existing record the candidate duplicates, if
// any. Store errors propagate; a nil Match.Existing means the candidate is
// new.
func (e *Engine) FindDuplicate(ctx context.Context, candidate *scholarship.Scholarship) (Match, error) {
	if candidate.Checksum == "" {
		candidate.Checksum = candidate.Fingerprint()
	}

	existing, err := e.store.FindByChecksum(ctx, candidate.Checksum)
	if err != nil {
		return Match{}, err
	}
	if existing != nil {
		return Match{Kind: MatchChecksum, Existing: existing}, nil
	}

	existing, err = e.store.FindByURL(ctx, candidate.URL)
	if err != nil {
		return Match{}, err
	}
	if existing != nil {
		return Match{Kind: MatchURL, Existing: existing}, nil
	}

	since := e.now().Add(-candidateWindow)
	candidates, err := e.store.FindSimilar(ctx, candidate.Organization, since, candidateLimit)
	if err != nil {
		return Match{}, err
	}
	for _, other := range candidates {
		score := titleWeight*Ratio(candidate.Title, other.Title) +
			orgWeight*Ratio(candidate.Organization, other.Organization)
		if score >= fuzzyThreshold {
			log.Debug().
				Str("title", candidate.Title).
				Str("existing_title", other.Title).
				Float64("score", score).
				Msg("Fuzzy duplicate detected")
			return Match{Kind: MatchFuzzy, Existing: other}, nil
		}
	}

	return Match{}, nil
}

// Merge folds a duplicate candidate into the existing record. Descriptive
// fields keep whichever value is longer, award bounds fill in only when
// missing, and the deadline moves forward when the candidate's parsed
// deadline is later. Merging a record into itself changes nothing except
// the verification timestamp. The merged record's checksum is recomputed.
func Merge(existing *scholarship.Scholarship, candidate *scholarship.Scholarship) *scholarship.Scholarship {
	merged := *existing

	merged.Title = longerOf(existing.Title, candidate.Title)
	merged.Organization = longerOf(existing.Organization, candidate.Organization)
	merged.Description = longerOf(existing.Description, candidate.Description)
	merged.Eligibility = longerOf(existing.Eligibility, candidate.Eligibility)
	merged.AcademicLevel = longerOf(existing.AcademicLevel, candidate.AcademicLevel)
	merged.GeographicRestrictions = longerOf(existing.GeographicRestrictions, candidate.GeographicRestrictions)
	merged.ContactInfo = longerOf(existing.ContactInfo, candidate.ContactInfo)
	merged.ApplicationURL = longerOf(existing.ApplicationURL, candidate.ApplicationURL)

	if len(candidate.Requirements) > len(merged.Requirements) {
		merged.Requirements = candidate.Requirements
	}

	if merged.MinAward == nil {
		merged.MinAward = candidate.MinAward
	}
	if merged.MaxAward == nil {
		merged.MaxAward = candidate.MaxAward
	}

	if candidate.Deadline != nil {
		if merged.Deadline == nil || candidate.Deadline.After(*merged.Deadline) {
			merged.Deadline = candidate.Deadline
		}
	}

	if candidate.Confidence > merged.Confidence {
		merged.Confidence = candidate.Confidence
	}

	now := time.Now().UTC()
	merged.LastVerifiedAt = now
	merged.UpdatedAt = now
	merged.Checksum = merged.Fingerprint()

	return &merged
}

func longerOf(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}
