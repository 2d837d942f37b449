package ai

import (
	"context"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
)

// MaxFitScore is the upper bound of an opinion's fit score.
const MaxFitScore = 50

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps a free-form label onto a known priority, defaulting to low.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Opinion is a model's judgement of how well a listing fits the searcher.
type Opinion struct {
	FitScore   int      `json:"fit_score"`
	Summary    string   `json:"summary"`
	KeyMatches []string `json:"key_matches"`
	Gaps       []string `json:"gaps"`
	Priority   Priority `json:"priority"`
	Raw        string   `json:"-"`
}

// Empty reports whether the opinion carries no usable fit score.
func (o *Opinion) Empty() bool {
	return o == nil || o.FitScore == 0
}

// ZeroOpinion is returned when a model reply cannot be understood at all.
func ZeroOpinion() *Opinion {
	return &Opinion{KeyMatches: []string{}, Gaps: []string{}, Priority: PriorityLow}
}

// Scorer asks an external model for an opinion about one listing.
type Scorer interface {
	Score(ctx context.Context, l *listing.Listing, p *profile.Profile) (*Opinion, error)
}
