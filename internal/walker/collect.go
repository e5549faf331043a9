package walker

import (
	"errors"
	"fmt"

	"promptkit/internal/snapshot"
	"promptkit/internal/vtree"
)

// Collection errors.
var (
	// ErrMissingAnchor indicates that the current document anchor was never visited.
	ErrMissingAnchor = errors.New("walker: missing current document anchor")

	// ErrMultipleSuffix indicates more than one suffix block.
	ErrMultipleSuffix = errors.New("walker: more than one suffix block")

	// ErrDuplicatePath indicates two prefix blocks sharing a component path.
	ErrDuplicatePath = errors.New("walker: duplicate component path")
)

// Block is one flattened unit of prompt text.
type Block struct {
	ComponentPath string
	Kind          Kind
	Text          string
	Weight        float64
	ChunkIDs      []string
	GroupIndex    int
	Source        string
	InAnchor      bool
	Stats         snapshot.Statistics
}

// Pinned reports whether the block can never be elided.
func (b Block) Pinned() bool {
	return b.Weight == 1
}

// Collected is the output of Collect.
type Collected struct {
	// Blocks holds every non-suffix block in document order.
	Blocks []Block
	// Suffix is nil when the tree has no suffix content.
	Suffix *Block
}

// Options configures Collect.
type Options struct {
	// Transformers run after the default ones.
	Transformers []Transformer
	// Anchor is the node name that must appear in the tree.
	Anchor string
}

// Collect walks root and gathers one block per non-empty leaf value.
func Collect(root *snapshot.Node, opts Options) (*Collected, error) {
	transformers := append(DefaultTransformers(), opts.Transformers...)
	transformers = append(transformers, ownerTransformer)

	var (
		out         Collected
		anchorFound = opts.Anchor == ""
		seen        = make(map[string]struct{})
		err         error
	)

	Walk(root, transformers, func(node, _ *snapshot.Node, ctx Context) bool {
		if err != nil {
			return false
		}
		if node.Name == opts.Anchor {
			anchorFound = true
		}
		if !node.HasValue || node.Value == "" {
			return true
		}

		b := Block{
			ComponentPath: node.Path,
			Kind:          ctx.Kind,
			Text:          node.Value,
			Weight:        ctx.Weight,
			ChunkIDs:      ctx.ChunkIDs,
			GroupIndex:    ctx.GroupIndex,
			Source:        ctx.Source,
			InAnchor:      ctx.InAnchor,
			Stats:         ctx.owner,
		}

		if b.Kind == KindSuffix {
			if out.Suffix != nil {
				err = fmt.Errorf("%w: %s and %s", ErrMultipleSuffix, out.Suffix.ComponentPath, b.ComponentPath)
				return false
			}
			out.Suffix = &b
			return true
		}

		if _, dup := seen[b.ComponentPath]; dup {
			err = fmt.Errorf("%w: %s", ErrDuplicatePath, b.ComponentPath)
			return false
		}
		seen[b.ComponentPath] = struct{}{}
		out.Blocks = append(out.Blocks, b)
		return true
	})

	if err != nil {
		return nil, err
	}
	if !anchorFound {
		return nil, fmt.Errorf("%w: %s", ErrMissingAnchor, opts.Anchor)
	}
	return &out, nil
}

// ownerTransformer remembers the statistics of the nearest component so
// leaf blocks can report the cost of the component that produced them.
func ownerTransformer(node, _ *snapshot.Node, ctx Context) Context {
	if !node.HasValue && node.Name != vtree.NameFragment {
		ctx.owner = node.Stats
	}
	return ctx
}
