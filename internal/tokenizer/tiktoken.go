package tokenizer

import (
	"fmt"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a BPE encoding from tiktoken-go.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken creates a Tiktoken tokenizer for the named encoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// TakeFirst returns the first n tokens of text.
func (t *Tiktoken) TakeFirst(text string, n int) Span {
	if n <= 0 || text == "" {
		return Span{}
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= n {
		return Span{Text: text, TokenCount: len(tokens)}
	}
	return firstValid(tokens, n, t.enc.Decode)
}

// TakeLast returns the last n tokens of text.
func (t *Tiktoken) TakeLast(text string, n int) Span {
	if n <= 0 || text == "" {
		return Span{}
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= n {
		return Span{Text: text, TokenCount: len(tokens)}
	}
	return lastValid(tokens, n, t.enc.Decode)
}

// Encode returns the BPE token ids of text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// firstValid decodes the longest run of at most n leading tokens that does
// not end inside a multi-byte character.
func firstValid(tokens []int, n int, decode func([]int) string) Span {
	for k := n; k > 0; k-- {
		if text := decode(tokens[:k]); utf8.ValidString(text) {
			return Span{Text: text, TokenCount: k}
		}
	}
	return Span{}
}

// lastValid is firstValid for trailing tokens.
func lastValid(tokens []int, n int, decode func([]int) string) Span {
	for k := n; k > 0; k-- {
		if text := decode(tokens[len(tokens)-k:]); utf8.ValidString(text) {
			return Span{Text: text, TokenCount: k}
		}
	}
	return Span{}
}
