// Package render turns a prompt tree into prefix, suffix and context
// strings that fit a token budget.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptkit/internal/components"
	"promptkit/internal/config"
	"promptkit/internal/elision"
	"promptkit/internal/snapshot"
	"promptkit/internal/suffixcache"
	"promptkit/internal/tokenizer"
	"promptkit/internal/vtree"
	"promptkit/internal/walker"
	"promptkit/pkg/logger"
)

// ErrInvalidOptions indicates render options that cannot be satisfied.
var ErrInvalidOptions = errors.New("render: invalid options")

// DefaultDelimiter separates non-anchor blocks in the prefix.
const DefaultDelimiter = "\n"

// Status is the outcome of a render.
type Status string

// Render statuses.
const (
	StatusOK        Status = "ok"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// Options controls a single render.
type Options struct {
	TokenBudget               int
	SuffixPercent             int
	Delimiter                 string
	LanguageID                string
	SuffixSimilarityThreshold int
	// SplitContext returns context blocks in Result.Context, one entry per
	// context group, instead of folding them into the prefix.
	SplitContext bool
}

// DefaultOptions returns options for the given total budget.
func DefaultOptions(tokenBudget int) Options {
	return Options{
		TokenBudget:               tokenBudget,
		SuffixPercent:             15,
		Delimiter:                 DefaultDelimiter,
		SuffixSimilarityThreshold: suffixcache.DefaultThreshold,
	}
}

// OptionsFromConfig builds render options from the render config section.
func OptionsFromConfig(c config.RenderConfig) Options {
	opts := DefaultOptions(c.TokenBudget)
	opts.SuffixPercent = c.SuffixPercent
	opts.SuffixSimilarityThreshold = c.SuffixSimilarityThreshold
	opts.SplitContext = c.SplitContext
	if c.Delimiter != "" {
		opts.Delimiter = c.Delimiter
	}
	return opts
}

// Budgets splits the total budget into prefix and suffix budgets.
func (o Options) Budgets() (prefix, suffix int, err error) {
	if o.SuffixPercent < 0 || o.SuffixPercent > 100 {
		return 0, 0, fmt.Errorf("%w: suffix percent %d not in [0,100]", ErrInvalidOptions, o.SuffixPercent)
	}
	suffix = o.TokenBudget * o.SuffixPercent / 100
	return o.TokenBudget - suffix, suffix, nil
}

// ComponentStat reports the token cost of one block.
type ComponentStat struct {
	Path           string        `json:"path"`
	Kind           walker.Kind   `json:"kind"`
	Source         string        `json:"source,omitempty"`
	OriginalTokens int           `json:"original_tokens"`
	FinalTokens    int           `json:"final_tokens"`
	UpdateDuration time.Duration `json:"update_duration"`
}

// Metadata describes how a render was produced.
type Metadata struct {
	RenderID       string          `json:"render_id"`
	ElisionTime    time.Duration   `json:"elision_time"`
	RenderTime     time.Duration   `json:"render_time"`
	ComponentStats []ComponentStat `json:"component_stats,omitempty"`
}

// Result is the outcome of Session.Render. Only Status and Err are set for
// cancelled and failed renders.
type Result struct {
	Status       Status   `json:"status"`
	Prefix       string   `json:"prefix"`
	PrefixTokens int      `json:"prefix_tokens"`
	Suffix       string   `json:"suffix"`
	SuffixTokens int      `json:"suffix_tokens"`
	Context      []string `json:"context,omitempty"`
	Metadata     Metadata `json:"metadata"`
	Err          error    `json:"-"`
}

func failed(err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{Status: StatusCancelled}
	}
	return Result{Status: StatusError, Err: err}
}

// Session owns one prompt tree, its state and its suffix cache. It is not
// safe for concurrent use; concurrent renders need separate sessions.
type Session struct {
	rec   *vtree.Reconciler
	tok   tokenizer.Tokenizer
	cache *suffixcache.Cache
}

// NewSession mounts the stock prompt tree.
func NewSession(tok tokenizer.Tokenizer) (*Session, error) {
	return NewSessionWithTree(tok, components.Prompt())
}

// NewSessionWithTree mounts a caller supplied tree. The tree must contain a
// components.NameCurrentFile anchor for renders to succeed.
func NewSessionWithTree(tok tokenizer.Tokenizer, tree vtree.Element) (*Session, error) {
	rec := vtree.NewReconciler(nil)
	if _, err := rec.Mount(tree); err != nil {
		return nil, err
	}
	return &Session{rec: rec, tok: tok, cache: suffixcache.New(tok)}, nil
}

// SuffixCache returns the session's suffix cache.
func (s *Session) SuffixCache() *suffixcache.Cache {
	return s.cache
}

// Update pumps each event into the tree and reconciles once. Consumer
// failures are returned joined after every event was delivered; structural
// errors from reconciliation and cancellation abort.
func (s *Session) Update(ctx context.Context, events ...any) error {
	var errs []error
	for _, ev := range events {
		if err := s.rec.Pump(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	if _, err := s.rec.Reconcile(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Render produces the prompt for the current tree state.
func (s *Session) Render(ctx context.Context, opts Options) Result {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	start := time.Now()

	prefixBudget, suffixBudget, err := opts.Budgets()
	if err != nil {
		return failed(err)
	}

	snap, err := snapshot.Take(ctx, s.rec.Root(), s.rec.Store())
	if err != nil {
		return failed(err)
	}

	collected, err := walker.Collect(snap, walker.Options{
		Transformers: []walker.Transformer{classify},
		Anchor:       components.NameCurrentFile,
	})
	if err != nil {
		return failed(err)
	}

	suffix := walker.Block{ComponentPath: "#suffix", Kind: walker.KindSuffix, Weight: 1, GroupIndex: walker.NoGroup}
	if collected.Suffix != nil {
		suffix = *collected.Suffix
	}
	suffix.Text, _ = s.cache.Stabilize(suffix.Text, opts.SuffixSimilarityThreshold)

	prefix := make([]walker.Block, len(collected.Blocks))
	for i, b := range collected.Blocks {
		prefix[i] = decorate(b, opts.Delimiter, opts.LanguageID)
	}

	elisionStart := time.Now()
	fitted, err := elision.Fit(prefix, prefixBudget, suffix, suffixBudget, s.tok)
	if err != nil {
		return failed(err)
	}
	elisionTime := time.Since(elisionStart)

	text, prefixTokens, groups := join(fitted.Prefix, opts.SplitContext)

	stats := make([]ComponentStat, 0, len(fitted.Prefix)+1)
	for _, b := range append(fitted.Prefix, fitted.Suffix) {
		stats = append(stats, ComponentStat{
			Path:           b.ComponentPath,
			Kind:           b.Kind,
			Source:         b.Source,
			OriginalTokens: b.OriginalTokenCount,
			FinalTokens:    b.FinalTokenCount,
			UpdateDuration: b.Stats.UpdateDuration,
		})
	}

	res := Result{
		Status:       StatusOK,
		Prefix:       text,
		PrefixTokens: prefixTokens,
		Suffix:       fitted.Suffix.FinalText,
		SuffixTokens: fitted.Suffix.FinalTokenCount,
		Context:      groups,
		Metadata: Metadata{
			RenderID:       uuid.New().String(),
			ElisionTime:    elisionTime,
			RenderTime:     time.Since(start),
			ComponentStats: stats,
		},
	}

	logger.Debug().
		Str("render_id", res.Metadata.RenderID).
		Int("prefix_tokens", res.PrefixTokens).
		Int("suffix_tokens", res.SuffixTokens).
		Dur("render_time", res.Metadata.RenderTime).
		Msg("render: prompt rendered")

	return res
}
