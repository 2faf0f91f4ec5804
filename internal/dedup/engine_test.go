package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarship-tracker/finder/internal/storage"
	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

func seed(t *testing.T, store storage.Store, s *scholarship.Scholarship) *scholarship.Scholarship {
	t.Helper()
	stored, err := store.Upsert(context.Background(), s)
	require.NoError(t, err)
	return stored
}

func sampleScholarship() *scholarship.Scholarship {
	amount := 5000.0
	deadline := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &scholarship.Scholarship{
		Title:        "Acme STEM Scholarship",
		Organization: "Acme Foundation",
		URL:          "https://acme.org/scholarships/stem",
		MinAward:     &amount,
		Deadline:     &deadline,
		Status:       scholarship.StatusActive,
		Confidence:   0.9,
	}
}

func TestFindDuplicateByChecksum(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, sampleScholarship())

	candidate := sampleScholarship()
	candidate.URL = "https://mirror.example.com/acme-stem"

	match, err := NewEngine(store).FindDuplicate(context.Background(), candidate)
	require.NoError(t, err)
	require.NotNil(t, match.Existing)
	assert.Equal(t, MatchChecksum, match.Kind, "identical identity tuple matches despite a different URL")
}

func TestFindDuplicateByURL(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, sampleScholarship())

	candidate := sampleScholarship()
	candidate.Title = "Acme STEM Scholarship 2026 Edition Completely Renamed"
	candidate.Checksum = ""

	match, err := NewEngine(store).FindDuplicate(context.Background(), candidate)
	require.NoError(t, err)
	require.NotNil(t, match.Existing)
	assert.Equal(t, MatchURL, match.Kind)
}

func TestFindDuplicateFuzzy(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, sampleScholarship())

	candidate := sampleScholarship()
	candidate.URL = "https://acme.org/awards/stem-2026"
	candidate.Title = "Acme STEM Scholarships"
	candidate.Checksum = ""

	match, err := NewEngine(store).FindDuplicate(context.Background(), candidate)
	require.NoError(t, err)
	require.NotNil(t, match.Existing)
	assert.Equal(t, MatchFuzzy, match.Kind)
}

func TestFindDuplicateBelowThresholdIsNew(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, sampleScholarship())

	candidate := &scholarship.Scholarship{
		Title:        "Rural Nursing Excellence Grant",
		Organization: "Acme Foundation",
		URL:          "https://acme.org/awards/nursing",
	}

	match, err := NewEngine(store).FindDuplicate(context.Background(), candidate)
	require.NoError(t, err)
	assert.Nil(t, match.Existing, "a different title from the same org is a new record")
}

func TestFindDuplicateIgnoresOldRecords(t *testing.T) {
	store := storage.NewMemoryStore()
	old := sampleScholarship()
	old.DiscoveredAt = time.Now().Add(-8 * 30 * 24 * time.Hour)
	seed(t, store, old)

	candidate := sampleScholarship()
	candidate.URL = "https://acme.org/awards/stem-new"
	candidate.Title = "Acme STEM Scholarships"
	// Different amount keeps the checksum distinct.
	other := 2500.0
	candidate.MinAward = &other
	candidate.Checksum = ""

	match, err := NewEngine(store).FindDuplicate(context.Background(), candidate)
	require.NoError(t, err)
	assert.Nil(t, match.Existing, "records outside the recency window are not fuzzy candidates")
}

func TestMergeLongerDescriptiveFieldsWin(t *testing.T) {
	existing := sampleScholarship()
	existing.Description = "Short"
	existing.Eligibility = "A much longer and more detailed eligibility statement"

	candidate := sampleScholarship()
	candidate.Description = "A considerably more detailed description of the award"
	candidate.Eligibility = "Brief"

	merged := Merge(existing, candidate)
	assert.Equal(t, candidate.Description, merged.Description)
	assert.Equal(t, existing.Eligibility, merged.Eligibility)
}

func TestMergeAwardsFillOnly(t *testing.T) {
	existing := sampleScholarship()
	existingMin := *existing.MinAward

	candidate := sampleScholarship()
	higher := 9999.0
	candidate.MinAward = &higher
	candidate.MaxAward = &higher

	merged := Merge(existing, candidate)
	assert.Equal(t, existingMin, *merged.MinAward, "a present award is never overwritten")
	require.NotNil(t, merged.MaxAward)
	assert.Equal(t, higher, *merged.MaxAward, "a missing award is filled in")
}

func TestMergeDeadlineMovesForwardOnly(t *testing.T) {
	existing := sampleScholarship()

	earlier := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candidate := sampleScholarship()
	candidate.Deadline = &earlier

	merged := Merge(existing, candidate)
	assert.Equal(t, *existing.Deadline, *merged.Deadline, "an older deadline never replaces a newer one")

	later := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	candidate.Deadline = &later
	merged = Merge(existing, candidate)
	assert.Equal(t, later, *merged.Deadline)
}

func TestMergeRefreshesVerification(t *testing.T) {
	existing := sampleScholarship()
	existing.LastVerifiedAt = time.Now().Add(-48 * time.Hour)

	merged := Merge(existing, sampleScholarship())
	assert.WithinDuration(t, time.Now(), merged.LastVerifiedAt, 5*time.Second)
	assert.Equal(t, merged.Fingerprint(), merged.Checksum, "checksum is recomputed after merging")
}

func TestMergeIdempotent(t *testing.T) {
	existing := sampleScholarship()

	once := Merge(existing, existing)
	twice := Merge(once, existing)

	assert.Equal(t, once.Title, twice.Title)
	assert.Equal(t, once.Description, twice.Description)
	assert.Equal(t, *once.MinAward, *twice.MinAward)
	assert.Equal(t, *once.Deadline, *twice.Deadline)
	assert.Equal(t, once.Checksum, twice.Checksum)
}

func TestRatioIdenticalAndDisjoint(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("Acme Scholarship", "acme   scholarship"), 0.001,
		"case and whitespace are normalized before comparison")
	assert.InDelta(t, 1.0, Ratio("", ""), 0.001)
	assert.Less(t, Ratio("xyz", "qrs"), 0.1)
}

func TestRatioNearMatches(t *testing.T) {
	assert.Greater(t, Ratio("Acme STEM Scholarship", "Acme STEM Scholarships"), 0.9)
	assert.Less(t, Ratio("Acme STEM Scholarship", "Rural Nursing Grant"), 0.5)
}
