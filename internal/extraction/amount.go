package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// amountTokenPatterns locate an award amount in free text. A number only
// counts as an amount when it carries a dollar sign or a "dollars" suffix,
// so years and phone numbers never become award bounds.
var amountTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\s*[\d,]+(?:\.\d+)?(?:\s*(?:-|to)\s*\$?\s*[\d,]+(?:\.\d+)?)?`),
	regexp.MustCompile(`(?i)[\d,]+(?:\.\d+)?(?:\s*(?:-|to)\s*[\d,]+(?:\.\d+)?)?\s*dollars?\b`),
}

var amountNumberPattern = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// findAmountToken returns the first dollar-denominated amount phrase in the
// text, or "" when none is present.
func findAmountToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, p := range amountTokenPatterns {
		if m := p.FindString(raw); m != "" {
			return m
		}
	}
	return ""
}

// ParseAmount turns a free-text award description into numeric bounds.
// Ranges like "$1,000-$5,000" or "$500 to $2,500" yield distinct min and
// max; a single amount fills both. Text with no dollar token returns
// (nil, nil), never an error.
func ParseAmount(raw string) (min, max *float64) {
	token := findAmountToken(raw)
	if token == "" {
		return nil, nil
	}

	var values []float64
	for _, m := range amountNumberPattern.FindAllString(token, 2) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}

	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		v := values[0]
		return &v, &v
	default:
		lo, hi := values[0], values[1]
		if hi < lo {
			lo, hi = hi, lo
		}
		return &lo, &hi
	}
}
