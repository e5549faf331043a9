// Package tokenizer counts and truncates text in model tokens.
package tokenizer

import "errors"

// ErrUnknownKind indicates an unsupported tokenizer kind in configuration.
var ErrUnknownKind = errors.New("tokenizer: unknown kind")

// Span is a token-bounded slice of a string.
type Span struct {
	Text       string
	TokenCount int
}

// Tokenizer is the token service the prompt pipeline depends on.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int
	// TakeFirst returns the longest prefix of text holding at most n tokens.
	TakeFirst(text string, n int) Span
	// TakeLast returns the longest suffix of text holding at most n tokens.
	TakeLast(text string, n int) Span
	// Encode returns token ids for text.
	Encode(text string) []int
}

// Kinds accepted by New.
const (
	KindApprox   = "approx"
	KindTiktoken = "tiktoken"
)

// New builds a tokenizer from its configured kind.
func New(kind, encoding string) (Tokenizer, error) {
	switch kind {
	case "", KindApprox:
		return NewApprox(), nil
	case KindTiktoken:
		return NewTiktoken(encoding)
	default:
		return nil, errors.Join(ErrUnknownKind, errors.New(kind))
	}
}
