package listing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var postedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

var salaryNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k)?`)

// ParsePostedAt parses a posting date in one of the formats adapters commonly see.
// Values without a zone are taken as UTC. Anything unparseable degrades to now.
func ParsePostedAt(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC()
	}

	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}

	return now.UTC()
}

// ParseSalary extracts an annual amount from strings like "$120,000", "120k" or "95000.50".
// Unknown or malformed values degrade to 0.
func ParseSalary(raw string) int {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	if cleaned == "" {
		return 0
	}

	match := salaryNumber.FindStringSubmatch(cleaned)
	if match == nil {
		return 0
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil || math.IsNaN(value) || value < 0 {
		return 0
	}

	if match[2] == "k" {
		value *= 1000
	}

	return int(value)
}
