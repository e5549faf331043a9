package handlers

import (
	"promptkit/internal/components"
	"promptkit/internal/render"
)

// RenderRequest is the body of POST /v1/render and the payload of websocket
// update messages. Snippets and traits replace the current ones only when
// present.
type RenderRequest struct {
	components.CompletionRequest
	Snippets []components.Snippet `json:"snippets,omitempty"`
	Traits   []components.Trait   `json:"traits,omitempty"`
	Options  *RenderOverrides     `json:"options,omitempty"`
}

// RenderOverrides changes the server defaults for one render.
type RenderOverrides struct {
	TokenBudget               int   `json:"token_budget,omitempty"`
	SuffixPercent             *int  `json:"suffix_percent,omitempty"`
	SuffixSimilarityThreshold *int  `json:"suffix_similarity_threshold,omitempty"`
	SplitContext              *bool `json:"split_context,omitempty"`
}

// Prepare returns the events to pump and the options to render with.
// The suffix window follows the total token budget unless the request sets
// one.
func (r RenderRequest) Prepare(defaults render.Options, charsPerToken int) ([]any, render.Options) {
	opts := defaults
	if o := r.Options; o != nil {
		if o.TokenBudget > 0 {
			opts.TokenBudget = o.TokenBudget
		}
		if o.SuffixPercent != nil {
			opts.SuffixPercent = *o.SuffixPercent
		}
		if o.SuffixSimilarityThreshold != nil {
			opts.SuffixSimilarityThreshold = *o.SuffixSimilarityThreshold
		}
		if o.SplitContext != nil {
			opts.SplitContext = *o.SplitContext
		}
	}
	if r.LanguageID != "" {
		opts.LanguageID = r.LanguageID
	}

	req := r.CompletionRequest
	if req.SuffixWindowTokens == 0 {
		req.SuffixWindowTokens = opts.TokenBudget
	}
	if req.CharsPerToken == 0 {
		req.CharsPerToken = charsPerToken
	}

	events := []any{req}
	if r.Snippets != nil {
		events = append(events, components.SnippetsResolved{Snippets: r.Snippets})
	}
	if r.Traits != nil {
		events = append(events, components.TraitsResolved{Traits: r.Traits})
	}
	return events, opts
}
