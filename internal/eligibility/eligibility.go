// Package eligibility decides whether a listing is worth scoring at all.
//
// The decision is a chain of gates evaluated in a fixed order, stopping at the
// first failure:
//  1. Role: the title contains a configured role keyword.
//  2. Seniority: the title carries no junior signal.
//  3. Salary: a known salary_max is not below the configured floor.
//  4. Age: the posting is not older than max_job_age_days.
//  5. Location: foreign is rejected, the preferred metro and nation-wide remote are accepted, the rest is denied.
package eligibility

import (
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
)

// Reason names the gate that rejected a listing. Eligible means every gate passed.
type Reason string

const (
	Eligible        Reason = ""
	RejectRole      Reason = "role"
	RejectSeniority Reason = "seniority"
	RejectSalary    Reason = "salary"
	RejectStale     Reason = "stale"
	RejectLocation  Reason = "location"
)

const day = 24 * time.Hour

// IsEligible reports whether the listing passes every gate for the given profile.
func IsEligible(l *listing.Listing, p *profile.Profile, now time.Time) bool {
	return Evaluate(l, p, now) == Eligible
}

// Evaluate runs the gates in order and returns the first one that failed.
func Evaluate(l *listing.Listing, p *profile.Profile, now time.Time) Reason {
	if l == nil || p == nil {
		return RejectRole
	}

	title := strings.ToLower(l.Title)

	if !containsAny(title, profile.Lower(p.RoleTags)) {
		return RejectRole
	}

	if containsAny(title, juniorSignals) {
		return RejectSeniority
	}

	if l.SalaryMax > 0 && l.SalaryMax < p.SalaryRange.Floor {
		return RejectSalary
	}

	if isStale(l, p.MaxJobAgeDays, now) {
		return RejectStale
	}

	if !locationAccepted(l) {
		return RejectLocation
	}

	return Eligible
}

// isStale compares whole elapsed days, so a posting exactly max days old still passes.
func isStale(l *listing.Listing, maxAgeDays int, now time.Time) bool {
	if maxAgeDays <= 0 {
		return false
	}
	days := int(l.Age(now) / day)
	return days > maxAgeDays
}

func locationAccepted(l *listing.Listing) bool {
	original := strings.TrimSpace(l.Location)
	loc := strings.ToLower(original)
	title := strings.ToLower(l.Title)

	if isForeign(loc) || isForeign(title) {
		return false
	}

	if isMetro(loc) || isMetro(title) {
		return true
	}

	remote := l.IsRemote || strings.Contains(loc, "remote") || strings.Contains(title, "remote")
	if !remote {
		return false
	}

	return isNationwideRemote(loc, original, strings.ToLower(l.Description))
}

func isNationwideRemote(loc, original, desc string) bool {
	if _, ok := unqualifiedRemote[loc]; ok {
		return true
	}

	// "2 Locations" style placeholders carry no restriction
	if multiLocation.MatchString(loc) {
		return true
	}

	if isPinned(loc, original) {
		return false
	}

	if containsAny(loc, nationwidePhrases) {
		return true
	}

	for _, phrase := range restrictionPhrases {
		idx := strings.Index(desc, phrase)
		if idx < 0 {
			continue
		}
		end := min(idx+restrictionWindow, len(desc))
		return isMetro(desc[idx:end])
	}

	return false
}

// isPinned reports whether the location names a specific state or city outside the preferred metro.
// State codes are matched on the original casing so "in" or "or" in prose do not count.
func isPinned(loc, original string) bool {
	if containsAny(loc, pinnedStates) || containsAny(loc, pinnedCities) {
		return true
	}
	for _, re := range stateCodePattern {
		if re.MatchString(original) {
			return true
		}
	}
	return false
}

func isMetro(text string) bool {
	return containsAny(text, metroSignals)
}

func isForeign(text string) bool {
	for _, re := range foreignShort {
		if re.MatchString(text) {
			return true
		}
	}
	for _, sig := range foreignSignals {
		if len(sig) <= shortSignalLength {
			continue
		}
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
