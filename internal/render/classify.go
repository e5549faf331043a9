package render

import (
	"promptkit/internal/components"
	"promptkit/internal/snapshot"
	"promptkit/internal/walker"
)

// classify assigns block kinds from the stock component names. Content
// outside both the context group and the anchor counts as prefix.
func classify(node, parent *snapshot.Node, ctx walker.Context) walker.Context {
	if ctx.Kind == walker.KindUnset {
		ctx.Kind = walker.KindPrefix
	}
	switch node.Name {
	case components.NameContextGroup:
		ctx.Kind = walker.KindContext
	case components.NameCurrentFile:
		ctx.InAnchor = true
		ctx.Kind = walker.KindPrefix
	case components.NameBeforeCursor:
		ctx.Kind = walker.KindPrefix
	case components.NameAfterCursor:
		ctx.Kind = walker.KindSuffix
	}
	if parent != nil && parent.Name == components.NameContextGroup {
		for i, sibling := range parent.Children {
			if sibling == node {
				ctx.GroupIndex = i
				break
			}
		}
	}
	return ctx
}
