package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Scorer asks Gemini for an opinion about a listing.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Scorer = (*Scorer)(nil)

const defaultMaxLogLength = 200

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

// Score renders the prompt for l and parses the reply. A reply that cannot be
// parsed yields the zero opinion; only transport failures return an error.
func (s *Scorer) Score(ctx context.Context, l *listing.Listing, p *profile.Profile) (*ai.Opinion, error) {
	if l == nil {
		return nil, errors.New("listing is required")
	}

	prompt := buildPrompt(l, p)
	log := s.logger.With(logger.ListingFields(l.Title, l.Company, l.Source)...)

	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	opinion, err := parseResponse(raw)
	if err != nil {
		log.Warn("failed to parse gemini response", zap.Error(err))
		opinion = ai.ZeroOpinion()
	}

	opinion.Raw = raw
	return opinion, nil
}

func parseResponse(raw string) (*ai.Opinion, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	if data == nil {
		return nil, errors.New("parse gemini response: not a json object")
	}

	score := coerceFloat(data["fit_score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.Opinion{
		FitScore:   clampScore(score),
		Summary:    coerceString(data["summary"]),
		KeyMatches: coerceStrings(data["key_matches"]),
		Gaps:       coerceStrings(data["gaps"]),
		Priority:   ai.ParsePriority(coerceString(data["priority"])),
	}, nil
}

// clampScore bounds the score to [0, MaxFitScore] and drops the fraction.
func clampScore(score float64) int {
	return int(math.Max(0, math.Min(ai.MaxFitScore, score)))
}

// extractJSON drops a surrounding markdown code fence, including its language tag line.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw, "\n"); idx != -1 {
			raw = raw[idx+1:]
		} else {
			raw = strings.TrimPrefix(raw, "```")
		}
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
