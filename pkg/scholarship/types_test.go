package scholarship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumDeterministic(t *testing.T) {
	amount := 5000.0
	deadline := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	a := ChecksumOf("Acme Foundation", "Acme STEM Scholarship", &amount, &deadline)
	b := ChecksumOf("Acme Foundation", "Acme STEM Scholarship", &amount, &deadline)
	assert.Equal(t, a, b, "identical inputs must produce identical checksums")
	assert.Len(t, a, 64)
}

func TestChecksumNormalizesCaseAndWhitespace(t *testing.T) {
	amount := 5000.0

	a := ChecksumOf("Acme Foundation", "Acme STEM Scholarship", &amount, nil)
	b := ChecksumOf("  acme   FOUNDATION ", "ACME stem   scholarship", &amount, nil)
	assert.Equal(t, a, b, "case and whitespace differences must not change identity")
}

func TestChecksumDistinguishesFields(t *testing.T) {
	amount := 5000.0
	other := 2500.0

	base := ChecksumOf("Acme Foundation", "Acme STEM Scholarship", &amount, nil)
	assert.NotEqual(t, base, ChecksumOf("Other Foundation", "Acme STEM Scholarship", &amount, nil))
	assert.NotEqual(t, base, ChecksumOf("Acme Foundation", "Acme Arts Scholarship", &amount, nil))
	assert.NotEqual(t, base, ChecksumOf("Acme Foundation", "Acme STEM Scholarship", &other, nil))

	deadline := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, base, ChecksumOf("Acme Foundation", "Acme STEM Scholarship", &amount, &deadline))
}

func TestChecksumMissingAmountIsZero(t *testing.T) {
	zero := 0.0
	assert.Equal(t,
		ChecksumOf("Acme", "Scholarship", nil, nil),
		ChecksumOf("Acme", "Scholarship", &zero, nil),
		"a missing amount is fingerprinted as zero")
}

func TestFingerprintMatchesChecksumOf(t *testing.T) {
	amount := 1000.0
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &Scholarship{
		Title:        "Future Nurses Award",
		Organization: "Health Careers Fund",
		MinAward:     &amount,
		Deadline:     &deadline,
	}
	assert.Equal(t, ChecksumOf("Health Careers Fund", "Future Nurses Award", &amount, &deadline), s.Fingerprint())
}

func TestExtractedFingerprintParsesDeadline(t *testing.T) {
	e := &ExtractedScholarship{
		Title:        "Future Nurses Award",
		Organization: "Health Careers Fund",
		Deadline:     "2026-06-01",
	}
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ChecksumOf("Health Careers Fund", "Future Nurses Award", nil, &deadline), e.Fingerprint())
}

func TestValidateRequiresTitleAndURL(t *testing.T) {
	e := &ExtractedScholarship{Title: "Award", URL: "https://example.org/award"}
	require.NoError(t, e.Validate())

	assert.Error(t, (&ExtractedScholarship{URL: "https://example.org"}).Validate())
	assert.Error(t, (&ExtractedScholarship{Title: "Award"}).Validate())
	assert.Error(t, (&ExtractedScholarship{Title: "   ", URL: "https://example.org"}).Validate())
}

func TestFromExtractedNormalizesDeadline(t *testing.T) {
	min := 1000.0
	e := &ExtractedScholarship{
		Title:        "Trades Apprenticeship Grant",
		Organization: "Builders Guild",
		URL:          "https://example.org/grant",
		Deadline:     "March 15, 2030",
		MinAward:     &min,
		Confidence:   0.9,
	}

	s := FromExtracted(e)
	require.NotNil(t, s.Deadline)
	assert.Equal(t, time.Date(2030, 3, 15, 0, 0, 0, 0, time.UTC), *s.Deadline)
	assert.Equal(t, StatusActive, s.Status)
	assert.NotEmpty(t, s.Checksum)
	assert.Equal(t, s.Fingerprint(), s.Checksum)
}

func TestFromExtractedExpiredDeadline(t *testing.T) {
	e := &ExtractedScholarship{
		Title:    "Old Award",
		URL:      "https://example.org/old",
		Deadline: "2019-01-01",
	}
	s := FromExtracted(e)
	assert.Equal(t, StatusExpired, s.Status)
}
