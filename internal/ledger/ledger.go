// Package ledger records which listings were already delivered so later runs skip them.
//
// A listing counts as delivered when an entry has the same url, or the same
// company together with the same title fingerprint. Both keys are unique, and
// recording an entry that matches either of them is a silent no-op.
package ledger

import (
	"context"
	"time"

	"github.com/spigell/jobscout/internal/dedup"
	"github.com/spigell/jobscout/internal/listing"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"

	StatusNew = "new"
)

// Store is the persisted delivery ledger.
type Store interface {
	// EnsureSchema prepares storage and is safe to call on every start.
	EnsureSchema(ctx context.Context) error
	WasDelivered(ctx context.Context, l *listing.Listing) (bool, error)
	// RecordAll stores every entry or none of them. Entries already covered
	// by either unique key are skipped.
	RecordAll(ctx context.Context, entries []Entry) error
}

// Entry is one delivered listing.
type Entry struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	TitleHash string    `json:"title_hash"`
	Company   string    `json:"company"`
	Source    string    `json:"source"`
	FirstSeen time.Time `json:"first_seen"`
	Score     float64   `json:"score"`
	Status    string    `json:"status"`
}

// NewEntry builds the ledger entry for a delivered listing.
func NewEntry(l *listing.Listing, score float64, now time.Time) Entry {
	return Entry{
		URL:       l.URL,
		Title:     l.Title,
		TitleHash: dedup.Fingerprint(l.Title),
		Company:   l.Company,
		Source:    l.Source,
		FirstSeen: now.UTC().Truncate(24 * time.Hour),
		Score:     score,
		Status:    StatusNew,
	}
}

// Matches reports whether the entry already covers the listing.
func (e Entry) Matches(l *listing.Listing) bool {
	if e.URL == l.URL {
		return true
	}
	return e.Company == l.Company && e.TitleHash == dedup.Fingerprint(l.Title)
}

// Covers reports whether e and other collide on either unique key.
func (e Entry) Covers(other Entry) bool {
	if e.URL == other.URL {
		return true
	}
	return e.Company == other.Company && e.TitleHash == other.TitleHash
}
