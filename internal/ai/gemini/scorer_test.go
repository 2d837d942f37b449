package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
)

type stubGenerator struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, prompt string) (string, error) {
	s.lastSystem = system
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func testListing() *listing.Listing {
	return &listing.Listing{
		Title:       "Customer Success Manager",
		Company:     "SentinelOne",
		URL:         "https://example.com/job/1",
		Source:      "test",
		Description: "Own onboarding and renewals for cybersecurity saas customers.",
		SalaryMin:   140000,
		SalaryMax:   175000,
		Location:    "Remote - US",
		IsRemote:    true,
	}
}

func testProfile() *profile.Profile {
	p := profile.Default()
	p.RoleTags = []string{"customer success"}
	p.ResumeSummary = "Ten years in customer success."
	return p
}

func TestScorerScore(t *testing.T) {
	stub := &stubGenerator{response: `{"fit_score": 30, "summary": "Strong match", "key_matches": ["renewals", "onboarding"], "gaps": [], "priority": "High"}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	opinion, err := scorer.Score(context.Background(), testListing(), testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opinion.FitScore != 30 {
		t.Fatalf("expected fit score 30, got %d", opinion.FitScore)
	}
	if opinion.Priority != ai.PriorityHigh {
		t.Fatalf("expected high priority, got %q", opinion.Priority)
	}
	if len(opinion.KeyMatches) != 2 || opinion.KeyMatches[0] != "renewals" {
		t.Fatalf("unexpected key matches: %v", opinion.KeyMatches)
	}
	if opinion.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}

	if stub.lastSystem != systemInstruction {
		t.Fatalf("expected embedded system instruction to be sent")
	}
	for _, want := range []string{
		"Ten years in customer success.",
		"Title: Customer Success Manager",
		"Company: SentinelOne",
		"Salary: $140,000–$175,000",
		"Location: Remote - US",
	} {
		if !strings.Contains(stub.lastPrompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, stub.lastPrompt)
		}
	}
}

func TestScorerUsesProfileTemplate(t *testing.T) {
	stub := &stubGenerator{response: `{"fit_score": 10}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	p := testProfile()
	p.AIPromptTemplate = "Rate $title at ${company} for $$5 ($unknown)"

	if _, err := scorer.Score(context.Background(), testListing(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "Rate Customer Success Manager at SentinelOne for $5 ($unknown)"
	if stub.lastPrompt != expected {
		t.Fatalf("expected %q, got %q", expected, stub.lastPrompt)
	}
}

func TestScorerMalformedResponse(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	stub := &stubGenerator{response: "I think this is a great fit!"}
	scorer := NewScorer(stub, zap.New(core), 0)

	opinion, err := scorer.Score(context.Background(), testListing(), testProfile())
	if err != nil {
		t.Fatalf("malformed output must not be an error, got %v", err)
	}

	if opinion.FitScore != 0 || opinion.Priority != ai.PriorityLow || opinion.Summary != "" {
		t.Fatalf("expected zero opinion, got %+v", opinion)
	}
	if !opinion.Empty() {
		t.Fatalf("zero opinion must be empty")
	}

	if observed.FilterMessage("failed to parse gemini response").Len() != 1 {
		t.Fatalf("expected parse failure to be logged")
	}
}

func TestScorerPropagatesGeneratorError(t *testing.T) {
	boom := errors.New("deadline exceeded")
	scorer := NewScorer(&stubGenerator{err: boom}, nil, 0)

	if _, err := scorer.Score(context.Background(), testListing(), testProfile()); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		score    int
		priority ai.Priority
		wantErr  bool
	}{
		{name: "code fence", raw: "```json\n{\"fit_score\": 42, \"priority\": \"medium\"}\n```", score: 42, priority: ai.PriorityMedium},
		{name: "bare fence", raw: "```\n{\"fit_score\": 12}\n```", score: 12, priority: ai.PriorityLow},
		{name: "clamped high", raw: `{"fit_score": 75}`, score: 50, priority: ai.PriorityLow},
		{name: "clamped low", raw: `{"fit_score": -10}`, score: 0, priority: ai.PriorityLow},
		{name: "string score", raw: `{"fit_score": "35"}`, score: 35, priority: ai.PriorityLow},
		{name: "fraction truncated", raw: `{"fit_score": 35.9}`, score: 35, priority: ai.PriorityLow},
		{name: "unknown priority", raw: `{"fit_score": 20, "priority": "urgent"}`, score: 20, priority: ai.PriorityLow},
		{name: "defaults", raw: `{}`, score: 0, priority: ai.PriorityLow},
		{name: "not json", raw: "nope", wantErr: true},
		{name: "not an object", raw: "null", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opinion, err := parseResponse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opinion.FitScore != tt.score {
				t.Fatalf("expected score %d, got %d", tt.score, opinion.FitScore)
			}
			if opinion.Priority != tt.priority {
				t.Fatalf("expected priority %q, got %q", tt.priority, opinion.Priority)
			}
			if opinion.KeyMatches == nil || opinion.Gaps == nil {
				t.Fatalf("lists must default to empty, got %+v", opinion)
			}
		})
	}
}

func TestFormatSalary(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		0:       "$0",
		950:     "$950",
		140000:  "$140,000",
		1250000: "$1,250,000",
		-5000:   "$-5,000",
	}

	for amount, expect := range tests {
		if got := formatSalary(amount); got != expect {
			t.Fatalf("formatSalary(%d) = %q, expected %q", amount, got, expect)
		}
	}
}

func TestBuildPromptTruncatesDescription(t *testing.T) {
	l := testListing()
	l.Description = strings.Repeat("é", maxDescriptionRunes+100)

	p := testProfile()
	p.AIPromptTemplate = "$description"

	if got := buildPrompt(l, p); len([]rune(got)) != maxDescriptionRunes {
		t.Fatalf("expected description cut to %d runes, got %d", maxDescriptionRunes, len([]rune(got)))
	}
}
