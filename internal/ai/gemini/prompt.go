package gemini

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

//go:embed system.md
var systemInstruction string

const maxDescriptionRunes = 3000

// placeholder matches $$, $name and ${name}.
var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

// buildPrompt renders the profile's template, or the embedded default when the
// profile has none, for one listing.
func buildPrompt(l *listing.Listing, p *profile.Profile) string {
	tmpl := promptTemplate
	if p != nil && strings.TrimSpace(p.AIPromptTemplate) != "" {
		tmpl = p.AIPromptTemplate
	}

	summary := ""
	if p != nil {
		summary = p.ResumeSummary
	}

	return substitute(tmpl, map[string]string{
		"resume_summary": summary,
		"title":          l.Title,
		"company":        l.Company,
		"description":    utils.Truncate(l.Description, maxDescriptionRunes),
		"salary_min":     formatSalary(l.SalaryMin),
		"salary_max":     formatSalary(l.SalaryMax),
		"location":       l.Location,
	})
}

// substitute replaces known placeholders and leaves unknown ones untouched.
// "$$" renders as a single "$".
func substitute(tmpl string, values map[string]string) string {
	matches := placeholder.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	last := 0
	for _, m := range matches {
		b.WriteString(tmpl[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0:
			writeValue(&b, tmpl[m[0]:m[1]], tmpl[m[4]:m[5]], values)
		default:
			writeValue(&b, tmpl[m[0]:m[1]], tmpl[m[6]:m[7]], values)
		}
	}
	b.WriteString(tmpl[last:])
	return b.String()
}

func writeValue(b *strings.Builder, original, name string, values map[string]string) {
	if v, ok := values[name]; ok {
		b.WriteString(v)
		return
	}
	b.WriteString(original)
}

// formatSalary renders 140000 as "$140,000".
func formatSalary(amount int) string {
	digits := strconv.Itoa(amount)
	sign := ""
	if amount < 0 {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + sign + b.String()
}
