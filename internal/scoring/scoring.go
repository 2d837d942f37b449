// Package scoring ranks eligible listings.
//
// Every listing gets a deterministic rule score between 5 and 50. The best
// ranked listings may additionally receive an AI opinion, whose fit score is
// added on top and whose priority replaces the rule derived one.
package scoring

import (
	"cmp"
	"encoding/json"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/utils"
)

const (
	DefaultTopN = 15

	primaryTitlePoints   = 15
	secondaryTitlePoints = 10
	baseTitlePoints      = 5
	companyPoints        = 10
	industryPoints       = 2.5
	industryCap          = 10
	salaryTargetPoints   = 10
	salaryNearPoints     = 5
	salaryNearRatio      = 0.85
	skillPoints          = 1
	skillCap             = 5

	highThreshold   = 30
	mediumThreshold = 20

	maxDescriptionRunes = 3000
)

// RuleScore computes the deterministic score of a listing for the profile.
func RuleScore(l *listing.Listing, p *profile.Profile) float64 {
	title := strings.ToLower(l.Title)
	company := strings.ToLower(l.Company)
	desc := strings.ToLower(l.Description)

	score := 0.0

	switch {
	case containsAny(title, profile.Lower(p.Scoring.PrimaryRoleTags)):
		score += primaryTitlePoints
	case containsAny(title, profile.Lower(p.Scoring.SecondaryRoleTags)):
		score += secondaryTitlePoints
	default:
		score += baseTitlePoints
	}

	if containsAny(company, profile.Lower(p.PriorityCompanies)) {
		score += companyPoints
	}

	score += min(float64(countContained(desc, profile.Lower(p.IndustryTags)))*industryPoints, industryCap)

	target := p.SalaryRange.Min
	acceptable := int(float64(target) * salaryNearRatio)
	switch {
	case l.SalaryMin >= target:
		score += salaryTargetPoints
	case l.SalaryMin >= acceptable:
		score += salaryNearPoints
	}

	score += min(float64(countContained(desc, profile.Lower(p.Skills))*skillPoints), skillCap)

	return score
}

// PriorityFromRule buckets a rule score when no AI opinion is available.
func PriorityFromRule(score float64) ai.Priority {
	switch {
	case score >= highThreshold:
		return ai.PriorityHigh
	case score >= mediumThreshold:
		return ai.PriorityMedium
	default:
		return ai.PriorityLow
	}
}

// SelectTop returns the indexes of the n highest scores. Equal scores keep their input order.
func SelectTop(scores []float64, n int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}

	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	if n < 0 {
		n = 0
	}
	if n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

// Result is a scored listing ready for delivery.
type Result struct {
	Title       string      `json:"title"`
	Company     string      `json:"company"`
	URL         string      `json:"url"`
	Source      string      `json:"source"`
	Score       float64     `json:"score"`
	RuleScore   float64     `json:"rule_score"`
	AIScore     int         `json:"ai_score"`
	Priority    ai.Priority `json:"priority"`
	SalaryMin   int         `json:"salary_min"`
	SalaryMax   int         `json:"salary_max"`
	Location    string      `json:"location"`
	PostedAt    time.Time   `json:"posted_date"`
	Description string      `json:"description"`
	Summary     string      `json:"summary"`
	KeyMatches  []string    `json:"key_matches"`
	Gaps        []string    `json:"gaps"`
}

// Blend combines the rule score with an optional opinion. An empty opinion,
// including one with a zero fit score, leaves the rule-only path in place.
func Blend(l *listing.Listing, ruleScore float64, opinion *ai.Opinion) Result {
	r := Result{
		Title:       l.Title,
		Company:     l.Company,
		URL:         l.URL,
		Source:      l.Source,
		Score:       ruleScore,
		RuleScore:   ruleScore,
		Priority:    PriorityFromRule(ruleScore),
		SalaryMin:   l.SalaryMin,
		SalaryMax:   l.SalaryMax,
		Location:    l.Location,
		PostedAt:    l.PostedAt,
		Description: utils.Truncate(l.Description, maxDescriptionRunes),
		KeyMatches:  []string{},
		Gaps:        []string{},
	}

	if opinion.Empty() {
		return r
	}

	r.Score = ruleScore + float64(opinion.FitScore)
	r.AIScore = opinion.FitScore
	r.Priority = ai.ParsePriority(string(opinion.Priority))
	r.Summary = opinion.Summary
	if opinion.KeyMatches != nil {
		r.KeyMatches = opinion.KeyMatches
	}
	if opinion.Gaps != nil {
		r.Gaps = opinion.Gaps
	}
	return r
}

// Rank sorts results by total score, highest first. Ties keep their order.
func Rank(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// CountByPriority returns how many results fall into each priority bucket.
func CountByPriority(results []Result) map[ai.Priority]int {
	counts := map[ai.Priority]int{}
	for _, r := range results {
		counts[r.Priority]++
	}
	return counts
}

// ReportByPriority groups results by priority in rank order, for display.
func ReportByPriority(results []Result) map[ai.Priority][]map[string]string {
	report := make(map[ai.Priority][]map[string]string)
	for _, r := range results {
		report[r.Priority] = append(report[r.Priority], map[string]string{
			"title":    r.Title,
			"company":  r.Company,
			"url":      r.URL,
			"location": r.Location,
			"score":    FormatScore(r.Score),
			"summary":  r.Summary,
		})
	}
	return report
}

// DumpToTmpFile writes the results as indented JSON into a new temporary file.
func DumpToTmpFile(results []Result) (string, error) {
	file, err := os.CreateTemp("", "jobscout_results_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// FormatScore renders a score without trailing zeros.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func countContained(text string, needles []string) int {
	seen := make(map[string]struct{}, len(needles))
	count := 0
	for _, n := range needles {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if strings.Contains(text, n) {
			count++
		}
	}
	return count
}
