// Package dedup collapses near-identical listings inside one batch and computes
// the title fingerprint used by the delivery ledger.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
)

const (
	// DefaultThreshold is the similarity both title and company must exceed.
	DefaultThreshold = 85

	fingerprintLength = 16
)

// IsDuplicate reports whether candidate matches any accepted listing on both
// title and company with a similarity strictly above threshold.
func IsDuplicate(candidate *listing.Listing, accepted []*listing.Listing, threshold int) bool {
	for _, seen := range accepted {
		if TokenSortRatio(candidate.Title, seen.Title) <= threshold {
			continue
		}
		if TokenSortRatio(candidate.Company, seen.Company) > threshold {
			return true
		}
	}
	return false
}

// Reconcile keeps the first occurrence of every near-duplicate group in encounter
// order and returns how many listings were dropped.
func Reconcile(batch *listing.Listings, threshold int) int {
	if batch.Len() == 0 {
		return 0
	}

	accepted := make([]*listing.Listing, 0, batch.Len())
	return batch.Keep(func(l *listing.Listing) bool {
		if IsDuplicate(l, accepted, threshold) {
			return false
		}
		accepted = append(accepted, l)
		return true
	})
}

// Fingerprint returns a short stable hash of a title, insensitive to case and
// surrounding whitespace.
func Fingerprint(title string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title))))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
