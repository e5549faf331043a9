package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptkit/internal/components"
	"promptkit/internal/render"
)

func TestRenderRequest_Prepare(t *testing.T) {
	defaults := render.DefaultOptions(100)

	t.Run("defaults", func(t *testing.T) {
		req := RenderRequest{CompletionRequest: components.CompletionRequest{Document: "a", Offset: 1}}
		events, opts := req.Prepare(defaults, 4)

		assert.Equal(t, defaults, opts)
		require.Len(t, events, 1)
		cr := events[0].(components.CompletionRequest)
		assert.Equal(t, 100, cr.SuffixWindowTokens)
		assert.Equal(t, 4, cr.CharsPerToken)
	})

	t.Run("overrides", func(t *testing.T) {
		percent, threshold, split := 0, 25, true
		req := RenderRequest{
			CompletionRequest: components.CompletionRequest{
				Document:           "a",
				LanguageID:         "python",
				SuffixWindowTokens: 8,
			},
			Snippets: []components.Snippet{},
			Traits:   []components.Trait{{Name: "go", Value: "1.24"}},
			Options: &RenderOverrides{
				TokenBudget:               50,
				SuffixPercent:             &percent,
				SuffixSimilarityThreshold: &threshold,
				SplitContext:              &split,
			},
		}
		events, opts := req.Prepare(defaults, 4)

		assert.Equal(t, 50, opts.TokenBudget)
		assert.Equal(t, 0, opts.SuffixPercent)
		assert.Equal(t, 25, opts.SuffixSimilarityThreshold)
		assert.True(t, opts.SplitContext)
		assert.Equal(t, "python", opts.LanguageID)

		require.Len(t, events, 3)
		assert.Equal(t, 8, events[0].(components.CompletionRequest).SuffixWindowTokens)
		assert.IsType(t, components.SnippetsResolved{}, events[1], "empty slice clears snippets")
		assert.Equal(t, components.TraitsResolved{Traits: req.Traits}, events[2])
	})
}
