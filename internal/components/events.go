package components

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidOffset indicates a cursor offset outside the document or inside
// a multi-byte character.
var ErrInvalidOffset = errors.New("components: invalid cursor offset")

// CompletionRequest describes the document being completed. Pumping one
// moves the cursor and replaces the current document.
type CompletionRequest struct {
	Document   string `json:"document"`
	Offset     int    `json:"offset"` // byte offset of the cursor
	Path       string `json:"path,omitempty"`
	LanguageID string `json:"language_id,omitempty"`

	// SuffixWindowTokens caps the text after the cursor that is considered
	// for the suffix. Zero means no cap.
	SuffixWindowTokens int `json:"suffix_window_tokens,omitempty"`
	// CharsPerToken converts the window to characters. Zero uses the
	// tokenizer default.
	CharsPerToken int `json:"chars_per_token,omitempty"`
}

// Validate checks the cursor offset.
func (r CompletionRequest) Validate() error {
	if r.Offset < 0 || r.Offset > len(r.Document) {
		return fmt.Errorf("%w: %d not in [0,%d]", ErrInvalidOffset, r.Offset, len(r.Document))
	}
	if r.Offset < len(r.Document) && !utf8.RuneStart(r.Document[r.Offset]) {
		return fmt.Errorf("%w: %d splits a character", ErrInvalidOffset, r.Offset)
	}
	return nil
}

// Before returns the document text before the cursor.
func (r CompletionRequest) Before() string {
	return r.Document[:r.Offset]
}

// After returns the document text after the cursor.
func (r CompletionRequest) After() string {
	return r.Document[r.Offset:]
}

// Snippet is a piece of related code supplied by a context provider.
type Snippet struct {
	Path   string  `json:"path"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
	Source string  `json:"source,omitempty"`
}

// SnippetsResolved replaces the snippets shown in the context group.
type SnippetsResolved struct {
	Snippets []Snippet `json:"snippets"`
}

// Trait is a name/value fact about the project, e.g. a language version.
type Trait struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TraitsResolved replaces the traits shown in the context group.
type TraitsResolved struct {
	Traits []Trait `json:"traits"`
}
