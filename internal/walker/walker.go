// Package walker flattens a prompt snapshot into weighted text blocks by a
// depth-first traversal that derives a fresh context for every node.
package walker

import (
	"slices"

	"promptkit/internal/snapshot"
)

// Prop keys read by the default transformers.
const (
	PropWeight = "weight"
	PropChunk  = "chunk"
	PropSource = "source"
)

// Kind classifies a block relative to the cursor.
type Kind string

// Block kinds.
const (
	KindUnset   Kind = ""
	KindPrefix  Kind = "prefix"
	KindSuffix  Kind = "suffix"
	KindContext Kind = "context"
)

// NoGroup marks a context without an assigned context group.
const NoGroup = -1

// Context is the accumulated state a node is visited with. It is passed by
// value and its slices are never written after creation, so a transformer
// must copy before extending them.
type Context struct {
	Weight     float64
	ChunkIDs   []string
	Source     string
	Kind       Kind
	GroupIndex int
	InAnchor   bool

	owner snapshot.Statistics
}

// RootContext is the context the root node starts from.
func RootContext() Context {
	return Context{Weight: 1, GroupIndex: NoGroup}
}

// Transformer derives the context for node from its parent's context.
type Transformer func(node, parent *snapshot.Node, ctx Context) Context

// Visitor is called for every node in pre-order. Returning false skips the
// node's children; siblings are still visited.
type Visitor func(node, parent *snapshot.Node, ctx Context) bool

// Walk traverses root depth-first in pre-order, applying transformers in
// order before each visit.
func Walk(root *snapshot.Node, transformers []Transformer, visit Visitor) {
	if root == nil {
		return
	}
	walk(root, nil, RootContext(), transformers, visit)
}

func walk(node, parent *snapshot.Node, ctx Context, transformers []Transformer, visit Visitor) {
	for _, t := range transformers {
		ctx = t(node, parent, ctx)
	}
	if !visit(node, parent, ctx) {
		return
	}
	for _, c := range node.Children {
		walk(c, node, ctx, transformers, visit)
	}
}

// DefaultTransformers returns the weight, chunk and source transformers in
// the order they must run.
func DefaultTransformers() []Transformer {
	return []Transformer{WeightTransformer, ChunkTransformer, SourceTransformer}
}

// WeightTransformer multiplies the inherited weight by the node's own
// weight clamped to [0, 1].
func WeightTransformer(node, _ *snapshot.Node, ctx Context) Context {
	if w, ok := node.Props.Float(PropWeight); ok {
		ctx.Weight *= clamp01(w)
	}
	return ctx
}

// ChunkTransformer adds the path of a grouping node to the chunk set.
func ChunkTransformer(node, _ *snapshot.Node, ctx Context) Context {
	if node.Props.Bool(PropChunk) {
		ids := make([]string, 0, len(ctx.ChunkIDs)+1)
		ids = append(ids, ctx.ChunkIDs...)
		ids = append(ids, node.Path)
		slices.Sort(ids)
		ctx.ChunkIDs = ids
	}
	return ctx
}

// SourceTransformer makes a node's source tag current for its subtree.
func SourceTransformer(node, _ *snapshot.Node, ctx Context) Context {
	if s := node.Props.String(PropSource); s != "" {
		ctx.Source = s
	}
	return ctx
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
