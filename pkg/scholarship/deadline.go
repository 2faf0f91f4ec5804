package scholarship

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// deadlineLayouts are tried in order for inputs that carry a full date.
var deadlineLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"2006/01/02",
	"2 January 2006",
}

// monthYearLayouts cover "month and year only" inputs, resolved to the first
// of the month.
var monthYearLayouts = []string{
	"January 2006",
	"Jan 2006",
	"1/2006",
	"01/2006",
}

// noYearLayouts cover inputs that omit the year entirely.
var noYearLayouts = []string{
	"January 2",
	"Jan 2",
	"1/2",
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// ParseDeadline normalizes a free-form deadline string into a date. Inputs
// without a year resolve to the current year, or the next year when the date
// has already passed. Empty input yields (nil, nil); input that cannot be
// parsed yields an error so callers can decide whether to keep the raw text.
func ParseDeadline(raw string) (*time.Time, error) {
	return parseDeadlineAt(raw, time.Now())
}

func parseDeadlineAt(raw string, now time.Time) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	// Strip trailing punctuation that pattern extraction tends to leave
	// behind ("June 1, 2026." etc).
	s = strings.Trim(s, ".,;")

	if yearPattern.MatchString(s) {
		for _, layout := range deadlineLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				d := t
				return &d, nil
			}
		}
		for _, layout := range monthYearLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				d := t
				return &d, nil
			}
		}
		return nil, fmt.Errorf("unrecognized deadline format: %q", raw)
	}

	// No year present: assume the current year, rolling to the next year
	// when the resulting date is already in the past.
	for _, layout := range noYearLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if d.Before(now.Truncate(24 * time.Hour)) {
			d = d.AddDate(1, 0, 0)
		}
		return &d, nil
	}

	return nil, fmt.Errorf("unrecognized deadline format: %q", raw)
}
