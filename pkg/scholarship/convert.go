package scholarship

import "time"

// FromExtracted converts a candidate record into its persisted form. The
// deadline string is normalized to a date; unparseable deadlines are
// dropped rather than stored raw.
func FromExtracted(e *ExtractedScholarship) *Scholarship {
	deadline, _ := ParseDeadline(e.Deadline)

	now := time.Now().UTC()
	s := &Scholarship{
		Title:                  e.Title,
		Organization:           e.Organization,
		Description:            e.Description,
		URL:                    e.URL,
		ApplicationURL:         e.ApplicationURL,
		MinAward:               e.MinAward,
		MaxAward:               e.MaxAward,
		Deadline:               deadline,
		Eligibility:            e.Eligibility,
		Requirements:           e.Requirements,
		AcademicLevel:          e.AcademicLevel,
		GeographicRestrictions: e.GeographicRestrictions,
		ContactInfo:            e.ContactInfo,
		Category:               e.Category,
		Source:                 e.SourceType,
		Status:                 StatusActive,
		Confidence:             e.Confidence,
		DiscoveredAt:           now,
		LastVerifiedAt:         now,
		UpdatedAt:              now,
	}
	if deadline != nil && deadline.Before(now) {
		s.Status = StatusExpired
	}
	s.Checksum = s.Fingerprint()
	return s
}
