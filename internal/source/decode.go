package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/jobscout/internal/listing"
)

// rawListing mirrors the loosely typed JSON shape boards and dumps use.
// Salary and dates stay strings so malformed values degrade instead of failing.
type rawListing struct {
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	URL         string         `json:"url"`
	Source      string         `json:"source"`
	Description string         `json:"description"`
	SalaryMin   string         `json:"salary_min"`
	SalaryMax   string         `json:"salary_max"`
	Location    string         `json:"location"`
	IsRemote    bool           `json:"is_remote"`
	PostedAt    string         `json:"posted_date"`
	Raw         map[string]any `json:"raw_data"`
}

// document accepts both a bare array and an object with an items key.
type document struct {
	Items []map[string]any `json:"items"`
	Page  int              `json:"page"`
	Pages int              `json:"pages"`
}

func decodeItems(items []map[string]any, name string, now time.Time) ([]*listing.Listing, error) {
	out := make([]*listing.Listing, 0, len(items))

	for i, item := range items {
		var raw rawListing
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &raw,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		l := normalize(raw, name, now)
		if l.Title == "" || l.URL == "" {
			continue
		}
		out = append(out, l)
	}

	return out, nil
}

func normalize(raw rawListing, name string, now time.Time) *listing.Listing {
	source := strings.TrimSpace(raw.Source)
	if name != "" {
		source = name
	}

	location := strings.TrimSpace(raw.Location)

	return &listing.Listing{
		Title:       strings.TrimSpace(raw.Title),
		Company:     strings.TrimSpace(raw.Company),
		URL:         strings.TrimSpace(raw.URL),
		Source:      source,
		Description: raw.Description,
		SalaryMin:   listing.ParseSalary(raw.SalaryMin),
		SalaryMax:   listing.ParseSalary(raw.SalaryMax),
		Location:    location,
		IsRemote:    raw.IsRemote || strings.Contains(strings.ToLower(location), "remote"),
		PostedAt:    listing.ParsePostedAt(raw.PostedAt, now),
		Raw:         raw.Raw,
	}
}
