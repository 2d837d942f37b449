package dedup

import (
	"math"
	"slices"
	"strings"
)

// TokenSortRatio returns the similarity of a and b on a 0..100 scale after
// normalizing both strings and sorting their tokens, so word order does not
// affect the result. Either side normalizing to an empty string scores 0.
func TokenSortRatio(a, b string) int {
	sa := sortTokens(normalize(a))
	sb := sortTokens(normalize(b))
	if sa == "" || sb == "" {
		return 0
	}
	return ratio(sa, sb)
}

// normalize lowercases ASCII letters and digits, drops non-ASCII characters and
// turns every other character into a token separator.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r > 127:
			continue
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

// ratio is the indel similarity 2*LCS/(len(a)+len(b)) scaled to 100 and
// rounded half to even.
func ratio(a, b string) int {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	score := 200 * float64(lcsLength(a, b)) / float64(total)
	return int(math.RoundToEven(score))
}

// lcsLength computes the longest common subsequence over bytes; inputs are ASCII after normalize.
func lcsLength(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				continue
			}
			curr[j] = max(prev[j], curr[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
