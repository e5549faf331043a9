package tokenizer

import (
	"hash/fnv"
	"unicode"
	"unicode/utf8"
)

// CharsPerToken is the ratio used by the approximate tokenizer.
const CharsPerToken = 4

// Approx estimates tokens as one token per CharsPerToken characters,
// rounding up. It needs no vocabulary, so it is the default in tests and
// offline use.
type Approx struct{}

// NewApprox creates a new Approx tokenizer.
func NewApprox() *Approx {
	return &Approx{}
}

// Count estimates the token count for text.
func (a *Approx) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// TakeFirst returns the first n tokens worth of characters.
func (a *Approx) TakeFirst(text string, n int) Span {
	if n <= 0 || text == "" {
		return Span{}
	}
	runes := []rune(text)
	limit := n * CharsPerToken
	if limit >= len(runes) {
		return Span{Text: text, TokenCount: a.Count(text)}
	}
	out := string(runes[:limit])
	return Span{Text: out, TokenCount: n}
}

// TakeLast returns the last n tokens worth of characters.
func (a *Approx) TakeLast(text string, n int) Span {
	if n <= 0 || text == "" {
		return Span{}
	}
	runes := []rune(text)
	limit := n * CharsPerToken
	if limit >= len(runes) {
		return Span{Text: text, TokenCount: a.Count(text)}
	}
	out := string(runes[len(runes)-limit:])
	return Span{Text: out, TokenCount: n}
}

// Encode splits text into pieces the way a BPE pre-tokenizer does: runs of
// letters and digits, runs of whitespace, and single punctuation runes. Each
// piece is hashed, so equal pieces share an id and an edit only changes the
// ids of the pieces it touches.
func (a *Approx) Encode(text string) []int {
	var ids []int
	for len(text) > 0 {
		n := pieceLen(text)
		h := fnv.New32a()
		_, _ = h.Write([]byte(text[:n]))
		ids = append(ids, int(h.Sum32()))
		text = text[n:]
	}
	return ids
}

// pieceLen returns the byte length of the piece text starts with.
func pieceLen(text string) int {
	r, size := utf8.DecodeRuneInString(text)
	class := runeClass(r)
	if class == classOther {
		return size
	}
	n := size
	for n < len(text) {
		r, size = utf8.DecodeRuneInString(text[n:])
		if runeClass(r) != class {
			break
		}
		n += size
	}
	return n
}

const (
	classOther = iota
	classWord
	classSpace
)

func runeClass(r rune) int {
	switch {
	case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
		return classWord
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classOther
	}
}
