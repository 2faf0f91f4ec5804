package scholarship

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status describes the lifecycle state of a persisted scholarship.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusArchived Status = "archived"
	StatusInvalid  Status = "invalid"
)

// Scholarship is the persisted representation of a single opportunity.
// The URL is the natural key; Checksum is the identity fingerprint used
// for exact-duplicate detection.
type Scholarship struct {
	ID                     int64      `json:"id,omitempty"`
	Title                  string     `json:"title"`
	Organization           string     `json:"organization"`
	Description            string     `json:"description,omitempty"`
	URL                    string     `json:"url"`
	ApplicationURL         string     `json:"application_url,omitempty"`
	MinAward               *float64   `json:"min_award,omitempty"`
	MaxAward               *float64   `json:"max_award,omitempty"`
	Deadline               *time.Time `json:"deadline,omitempty"`
	Eligibility            string     `json:"eligibility,omitempty"`
	Requirements           []string   `json:"requirements,omitempty"`
	AcademicLevel          string     `json:"academic_level,omitempty"`
	GeographicRestrictions string     `json:"geographic_restrictions,omitempty"`
	ContactInfo            string     `json:"contact_info,omitempty"`
	Category               string     `json:"category,omitempty"`
	Source                 string     `json:"source,omitempty"`
	Checksum               string     `json:"checksum,omitempty"`
	Status                 Status     `json:"status"`
	Verified               bool       `json:"verified"`
	Confidence             float64    `json:"confidence"`
	DiscoveredAt           time.Time  `json:"discovered_at"`
	LastVerifiedAt         time.Time  `json:"last_verified_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// ExtractedScholarship is a candidate record produced by the extraction
// pipeline. It is immutable once created; re-extraction produces a new value.
type ExtractedScholarship struct {
	Title                  string            `json:"title"`
	Organization           string            `json:"organization"`
	Description            string            `json:"description"`
	URL                    string            `json:"url"`
	SourceType             string            `json:"source_type"`
	AwardAmount            string            `json:"award_amount,omitempty"`
	MinAward               *float64          `json:"min_award,omitempty"`
	MaxAward               *float64          `json:"max_award,omitempty"`
	Deadline               string            `json:"deadline,omitempty"`
	Eligibility            string            `json:"eligibility,omitempty"`
	Requirements           []string          `json:"requirements,omitempty"`
	AcademicLevel          string            `json:"academic_level,omitempty"`
	GeographicRestrictions string            `json:"geographic_restrictions,omitempty"`
	ContactInfo            string            `json:"contact_info,omitempty"`
	ApplicationURL         string            `json:"application_url,omitempty"`
	Category               string            `json:"category,omitempty"`
	Confidence             float64           `json:"confidence"`
	ExtractedAt            time.Time         `json:"extracted_at"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

// DiscoverySource is a candidate provider page that survived AI verification.
type DiscoverySource struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Confidence   float64   `json:"confidence"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Validate checks that a candidate record carries the fields the rest of the
// pipeline depends on.
func (e *ExtractedScholarship) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("scholarship title cannot be empty")
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("scholarship URL cannot be empty")
	}
	return nil
}

// normalizeField lower-cases and collapses internal whitespace so that
// cosmetic differences never change a record's fingerprint.
func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// amountComponent renders the award amount the way the fingerprint expects:
// the minimum award when present, otherwise "0".
func amountComponent(min *float64) string {
	if min == nil {
		return "0"
	}
	return strconv.FormatFloat(*min, 'f', -1, 64)
}

// deadlineComponent renders the deadline for fingerprinting; empty when unset.
func deadlineComponent(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}

// ChecksumOf computes the SHA-256 identity fingerprint over the normalized
// (organization, title, amount, deadline) tuple. Identical inputs always
// yield identical fingerprints.
func ChecksumOf(organization, title string, minAward *float64, deadline *time.Time) string {
	components := []string{
		normalizeField(organization),
		normalizeField(title),
		amountComponent(minAward),
		deadlineComponent(deadline),
	}
	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])
}

// Fingerprint computes the record's identity checksum from its own fields.
func (s *Scholarship) Fingerprint() string {
	return ChecksumOf(s.Organization, s.Title, s.MinAward, s.Deadline)
}

// Fingerprint computes the candidate's identity checksum. The deadline string
// is incorporated as-is after normalization when it cannot be parsed; callers
// that normalized the deadline should convert to Scholarship first.
func (e *ExtractedScholarship) Fingerprint() string {
	var deadline *time.Time
	if t, err := ParseDeadline(e.Deadline); err == nil && t != nil {
		deadline = t
	}
	return ChecksumOf(e.Organization, e.Title, e.MinAward, deadline)
}
