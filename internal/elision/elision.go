// Package elision fits weighted prompt blocks into prefix and suffix token
// budgets.
//
// Fitting runs in four phases:
//
//  1. Rebalance budgets between prefix and suffix and cut the suffix.
//  2. Drop whole blocks, lowest weight first, until the prefix fits. Blocks
//     in a chunk are dropped together with every block nested in that chunk.
//  3. Keep the lines nearest the cursor that fit the prefix budget.
//  4. Reattach surviving lines to their blocks and reinstate dropped blocks
//     that fit in the leftover budget, in document order.
//
// A block whose effective weight is exactly 1 is pinned and never dropped.
package elision

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"promptkit/internal/tokenizer"
	"promptkit/internal/walker"
	"promptkit/pkg/logger"
)

// Elision errors.
var (
	// ErrInvalidBudget indicates a non-positive prefix budget.
	ErrInvalidBudget = errors.New("elision: prefix budget must be positive")

	// ErrPrefixTooLarge indicates that not even a tail of the prefix fits.
	ErrPrefixTooLarge = errors.New("elision: cannot fit prefix within limit")

	// ErrDuplicatePath indicates two prefix blocks sharing a component path.
	ErrDuplicatePath = errors.New("elision: duplicate component path")
)

// Line is one newline-terminated piece of a block.
type Line struct {
	Text          string
	TokenCount    int
	ComponentPath string
}

// Elided is a block after fitting.
type Elided struct {
	walker.Block
	OriginalTokenCount int
	FinalText          string
	FinalTokenCount    int
}

// Result is the output of Fit.
type Result struct {
	Suffix Elided
	Prefix []Elided

	// Effective budgets after rebalancing.
	PrefixBudget int
	SuffixBudget int
}

// PrefixTokens sums the final token counts of the prefix blocks.
func (r *Result) PrefixTokens() int {
	total := 0
	for _, b := range r.Prefix {
		total += b.FinalTokenCount
	}
	return total
}

type elidable struct {
	walker.Block
	tokenCount    int
	removed       bool
	originalIndex int
	lines         []Line
}

// Fit selects which prefix blocks and lines survive prefixBudget and cuts
// the suffix to suffixBudget. Budget left unused on one side is handed to
// the other.
func Fit(prefix []walker.Block, prefixBudget int, suffix walker.Block, suffixBudget int, tok tokenizer.Tokenizer) (*Result, error) {
	if prefixBudget <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, prefixBudget)
	}

	blocks, maxPrefixTokens, err := prepare(prefix, tok)
	if err != nil {
		return nil, err
	}

	elidedSuffix, prefixBudget, suffixBudget := fitSuffix(suffix, maxPrefixTokens, prefixBudget, suffixBudget, tok)

	removedCount := removeBlocks(blocks, maxPrefixTokens, prefixBudget)

	lines, total, err := trimLines(blocks, prefixBudget, tok)
	if err != nil {
		return nil, err
	}

	out := reattach(blocks, lines, total, prefixBudget, tok)

	logger.Debug().
		Int("blocks", len(blocks)).
		Int("removed", removedCount).
		Int("lines_kept", len(lines)).
		Int("prefix_budget", prefixBudget).
		Int("suffix_budget", suffixBudget).
		Msg("elision: fitted prompt")

	return &Result{
		Suffix:       elidedSuffix,
		Prefix:       out,
		PrefixBudget: prefixBudget,
		SuffixBudget: suffixBudget,
	}, nil
}

// SplitLines splits text on newlines, keeping each newline attached to the
// line it terminates.
func SplitLines(text string) []string {
	var out []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

func prepare(prefix []walker.Block, tok tokenizer.Tokenizer) ([]*elidable, int, error) {
	blocks := make([]*elidable, 0, len(prefix))
	seen := make(map[string]struct{}, len(prefix))
	total := 0
	for i, b := range prefix {
		if _, dup := seen[b.ComponentPath]; dup {
			return nil, 0, fmt.Errorf("%w: %s", ErrDuplicatePath, b.ComponentPath)
		}
		seen[b.ComponentPath] = struct{}{}

		e := &elidable{Block: b, originalIndex: i}
		for _, text := range SplitLines(b.Text) {
			n := tok.Count(text)
			e.lines = append(e.lines, Line{Text: text, TokenCount: n, ComponentPath: b.ComponentPath})
			e.tokenCount += n
		}
		total += e.tokenCount
		blocks = append(blocks, e)
	}
	return blocks, total, nil
}

// fitSuffix is phase 1. It returns the cut suffix and the rebalanced
// prefix and suffix budgets.
func fitSuffix(suffix walker.Block, maxPrefixTokens, prefixBudget, suffixBudget int, tok tokenizer.Tokenizer) (Elided, int, int) {
	out := Elided{Block: suffix}

	if suffix.Text == "" || suffixBudget <= 0 {
		if suffixBudget > 0 {
			prefixBudget += suffixBudget
		}
		return out, prefixBudget, 0
	}

	if maxPrefixTokens < prefixBudget {
		suffixBudget += prefixBudget - maxPrefixTokens
		prefixBudget = maxPrefixTokens
	}

	span := tok.TakeFirst(suffix.Text, suffixBudget)
	if span.TokenCount < suffixBudget {
		prefixBudget += suffixBudget - span.TokenCount
	}

	out.OriginalTokenCount = tok.Count(suffix.Text)
	out.FinalText = span.Text
	out.FinalTokenCount = span.TokenCount
	return out, prefixBudget, suffixBudget
}

// removeBlocks is phase 2. It marks blocks removed, lowest weight first,
// until the remaining prefix fits the budget.
func removeBlocks(blocks []*elidable, maxPrefixTokens, prefixBudget int) int {
	sorted := make([]*elidable, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight < sorted[j].Weight
	})

	remaining := maxPrefixTokens
	removed := 0
	for _, b := range sorted {
		if remaining <= prefixBudget {
			break
		}
		if b.Pinned() || b.removed {
			continue
		}
		if len(b.ChunkIDs) == 0 {
			b.removed = true
			remaining -= b.tokenCount
			removed++
			continue
		}
		for _, other := range blocks {
			if other.removed || other.Pinned() || !isSuperset(other.ChunkIDs, b.ChunkIDs) {
				continue
			}
			other.removed = true
			remaining -= other.tokenCount
			removed++
		}
	}
	return removed
}

func isSuperset(set, sub []string) bool {
	if len(set) < len(sub) {
		return false
	}
	for _, id := range sub {
		found := false
		for _, have := range set {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// trimLines is phase 3. It keeps the longest run of trailing lines that
// fits the budget, falling back to the tail of the last line.
func trimLines(blocks []*elidable, prefixBudget int, tok tokenizer.Tokenizer) ([]Line, int, error) {
	var lines []Line
	for _, b := range blocks {
		if !b.removed {
			lines = append(lines, b.lines...)
		}
	}

	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if total+lines[i].TokenCount > prefixBudget {
			break
		}
		total += lines[i].TokenCount
		start = i
	}
	if start < len(lines) {
		return lines[start:], total, nil
	}

	if len(lines) == 0 {
		return nil, 0, ErrPrefixTooLarge
	}
	last := lines[len(lines)-1]
	span := tok.TakeLast(last.Text, prefixBudget)
	return []Line{{Text: span.Text, TokenCount: span.TokenCount, ComponentPath: last.ComponentPath}}, span.TokenCount, nil
}

// reattach is phase 4. Kept blocks take back their surviving lines and are
// recounted when their text changed; removed chunk-free blocks are reinstated
// whole, in document order, while they fit.
func reattach(blocks []*elidable, lines []Line, total, prefixBudget int, tok tokenizer.Tokenizer) []Elided {
	byPath := make(map[string]*strings.Builder)
	for _, l := range lines {
		sb, ok := byPath[l.ComponentPath]
		if !ok {
			sb = &strings.Builder{}
			byPath[l.ComponentPath] = sb
		}
		sb.WriteString(l.Text)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].originalIndex < blocks[j].originalIndex
	})

	running := total
	out := make([]Elided, 0, len(blocks))
	for _, b := range blocks {
		e := Elided{Block: b.Block, OriginalTokenCount: b.tokenCount}
		switch {
		case !b.removed:
			if sb, ok := byPath[b.ComponentPath]; ok {
				e.FinalText = sb.String()
				if e.FinalText == b.Text {
					e.FinalTokenCount = b.tokenCount
				} else {
					e.FinalTokenCount = tok.Count(e.FinalText)
				}
			}
		case len(b.ChunkIDs) == 0 && running+b.tokenCount <= prefixBudget:
			e.FinalText = b.Text
			e.FinalTokenCount = b.tokenCount
			running += b.tokenCount
		}
		out = append(out, e)
	}
	return out
}
