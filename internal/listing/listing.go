package listing

import (
	"encoding/json"
	"os"
	"time"
)

// Listing is a single job posting normalized by a source adapter.
// The pipeline only reads listings; adapters own their construction.
type Listing struct {
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	URL         string         `json:"url"`
	Source      string         `json:"source"`
	Description string         `json:"description,omitempty"`
	SalaryMin   int            `json:"salary_min,omitempty"`
	SalaryMax   int            `json:"salary_max,omitempty"`
	Location    string         `json:"location,omitempty"`
	IsRemote    bool           `json:"is_remote,omitempty"`
	PostedAt    time.Time      `json:"posted_date"`
	Raw         map[string]any `json:"raw_data,omitempty"`
}

// Listings is an ordered batch of listings.
type Listings struct {
	Items []*Listing
}

// New wraps the given listings into a batch.
func New(items ...*Listing) *Listings {
	return &Listings{Items: items}
}

func (l *Listings) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Append adds listings to the end of the batch, preserving order.
func (l *Listings) Append(items ...*Listing) {
	l.Items = append(l.Items, items...)
}

// Keep retains only listings accepted by the predicate and returns how many were dropped.
// Relative order of the kept listings is unchanged.
func (l *Listings) Keep(accept func(*Listing) bool) int {
	kept := l.Items[:0]
	dropped := 0
	for _, item := range l.Items {
		if accept(item) {
			kept = append(kept, item)
			continue
		}
		dropped++
	}
	// release references held by the tail of the backing array
	for i := len(kept); i < len(l.Items); i++ {
		l.Items[i] = nil
	}
	l.Items = kept
	return dropped
}

// Age returns how long ago the listing was posted. A zero posting time counts as posted now.
func (l *Listing) Age(now time.Time) time.Duration {
	if l.PostedAt.IsZero() {
		return 0
	}
	return now.Sub(l.PostedAt.UTC())
}

// DumpToTmpFile writes the batch as indented JSON into a new temporary file.
func (l *Listings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "listings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}
