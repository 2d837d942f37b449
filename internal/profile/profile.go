// Package profile holds the searcher profile the decision pipeline runs against.
//
// A Profile is an immutable snapshot: pure functions receive it whole and never
// modify it. Profile changes are applied by installing a new snapshot into a
// Context with Replace.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultSalaryFloor   = 100000
	DefaultMaxJobAgeDays = 30

	maxListItems  = 50
	maxTextLength = 10000
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid profile")

type SalaryRange struct {
	Min   int `mapstructure:"min" json:"min"`
	Max   int `mapstructure:"max" json:"max"`
	Floor int `mapstructure:"floor" json:"floor"`
}

type Scoring struct {
	PrimaryRoleTags   []string `mapstructure:"primary_role_tags" json:"primary_role_tags"`
	SecondaryRoleTags []string `mapstructure:"secondary_role_tags" json:"secondary_role_tags"`
}

// Profile is the searcher's configuration snapshot.
type Profile struct {
	RoleTags          []string    `mapstructure:"role_tags" json:"role_tags"`
	PriorityCompanies []string    `mapstructure:"priority_companies" json:"priority_companies"`
	IndustryTags      []string    `mapstructure:"industry_tags" json:"industry_tags"`
	Skills            []string    `mapstructure:"skills" json:"skills"`
	SalaryRange       SalaryRange `mapstructure:"salary_range" json:"salary_range"`
	// MaxJobAgeDays <= 0 disables the staleness gate.
	MaxJobAgeDays    int     `mapstructure:"max_job_age_days" json:"max_job_age_days"`
	ResumeSummary    string  `mapstructure:"resume_summary" json:"resume_summary"`
	AIPromptTemplate string  `mapstructure:"ai_prompt_template" json:"ai_prompt_template,omitempty"`
	Scoring          Scoring `mapstructure:"scoring" json:"scoring"`
}

// Default returns a profile with only the documented defaults set.
func Default() *Profile {
	return &Profile{
		SalaryRange:   SalaryRange{Floor: DefaultSalaryFloor},
		MaxJobAgeDays: DefaultMaxJobAgeDays,
	}
}

// FromMap decodes a loosely typed document (viper settings, a JSON request body)
// on top of the defaults and validates the result.
func FromMap(raw map[string]any) (*Profile, error) {
	p := Default()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks the structural rules a snapshot must satisfy before it is installed.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalid)
	}

	if len(nonEmpty(p.RoleTags)) == 0 {
		return fmt.Errorf("%w: role_tags must contain at least one keyword", ErrInvalid)
	}

	lists := map[string][]string{
		"role_tags":                   p.RoleTags,
		"industry_tags":               p.IndustryTags,
		"skills":                      p.Skills,
		"priority_companies":          p.PriorityCompanies,
		"scoring.primary_role_tags":   p.Scoring.PrimaryRoleTags,
		"scoring.secondary_role_tags": p.Scoring.SecondaryRoleTags,
	}
	for name, items := range lists {
		if len(items) > maxListItems {
			return fmt.Errorf("%w: %s has %d items, at most %d allowed", ErrInvalid, name, len(items), maxListItems)
		}
	}

	if utf8.RuneCountInString(p.ResumeSummary) > maxTextLength {
		return fmt.Errorf("%w: resume_summary is longer than %d characters", ErrInvalid, maxTextLength)
	}
	if utf8.RuneCountInString(p.AIPromptTemplate) > maxTextLength {
		return fmt.Errorf("%w: ai_prompt_template is longer than %d characters", ErrInvalid, maxTextLength)
	}

	if p.SalaryRange.Min < 0 || p.SalaryRange.Max < 0 || p.SalaryRange.Floor < 0 {
		return fmt.Errorf("%w: salary_range values must not be negative", ErrInvalid)
	}

	return nil
}

// Clone returns a deep copy so callers can never alias an installed snapshot.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.RoleTags = slices.Clone(p.RoleTags)
	c.PriorityCompanies = slices.Clone(p.PriorityCompanies)
	c.IndustryTags = slices.Clone(p.IndustryTags)
	c.Skills = slices.Clone(p.Skills)
	c.Scoring.PrimaryRoleTags = slices.Clone(p.Scoring.PrimaryRoleTags)
	c.Scoring.SecondaryRoleTags = slices.Clone(p.Scoring.SecondaryRoleTags)
	return &c
}

// Lower returns the non-empty entries of items, lowercased.
func Lower(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(item)
		if strings.TrimSpace(item) == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}
