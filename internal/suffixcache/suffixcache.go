// Package suffixcache keeps the rendered suffix stable across small edits
// after the cursor.
//
// A downstream completion cache keyed on the exact prompt text misses on
// every keystroke past the cursor. The cache compares the leading tokens of
// a new suffix with the previous one and keeps the previous text while the
// two stay within a similarity threshold.
package suffixcache

import (
	"strings"
	"unicode/utf8"

	"promptkit/internal/tokenizer"
)

const (
	// CompareTokens is how many leading tokens take part in the comparison.
	CompareTokens = 50

	// DefaultThreshold is the percentage of differing tokens still treated
	// as the same suffix.
	DefaultThreshold = 10
)

// Candidate derives the raw suffix from the text after the cursor: the rest
// of the cursor line is skipped and the result is capped at maxChars
// characters. A non-positive maxChars means no cap.
func Candidate(afterCursor string, maxChars int) string {
	i := strings.IndexByte(afterCursor, '\n')
	if i < 0 {
		return ""
	}
	text := afterCursor[i+1:]
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars])
}

// Cache holds the last suffix handed out by one render session. It is not
// safe for concurrent use.
type Cache struct {
	tok    tokenizer.Tokenizer
	suffix string
}

// New creates an empty cache comparing tokens produced by tok.
func New(tok tokenizer.Tokenizer) *Cache {
	return &Cache{tok: tok}
}

// Suffix returns the cached suffix.
func (c *Cache) Suffix() string {
	return c.suffix
}

// Seed replaces the cached suffix, e.g. with one persisted by an earlier
// process.
func (c *Cache) Seed(suffix string) {
	c.suffix = suffix
}

// Stabilize returns the suffix to render for candidate and whether the
// cached one was kept. The cache is reused when
// 100*distance < threshold*candidateTokens over the first CompareTokens
// tokens; otherwise candidate replaces it.
func (c *Cache) Stabilize(candidate string, threshold int) (string, bool) {
	if candidate == "" {
		return "", false
	}
	if candidate == c.suffix {
		return c.suffix, true
	}
	if c.suffix != "" {
		want := c.leading(candidate)
		have := c.leading(c.suffix)
		score := Distance(want, have, len(want))
		if 100*score < threshold*len(want) {
			return c.suffix, true
		}
	}
	c.suffix = candidate
	return candidate, false
}

func (c *Cache) leading(text string) []int {
	ids := c.tok.Encode(c.tok.TakeFirst(text, CompareTokens).Text)
	if len(ids) > CompareTokens {
		ids = ids[:CompareTokens]
	}
	return ids
}

// Distance is the Levenshtein distance between two token sequences. Once
// every cell of a row exceeds limit the computation stops and limit+1 is
// returned. A negative limit disables the bound.
func Distance(a, b []int, limit int) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if limit >= 0 && rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
