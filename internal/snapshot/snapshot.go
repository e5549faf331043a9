// Package snapshot projects a live virtual tree into an immutable tree that
// downstream passes can read without touching reconciler state.
package snapshot

import (
	"context"
	"errors"
	"time"

	"promptkit/internal/vtree"
)

// ErrNoRoot indicates a snapshot request without a tree.
var ErrNoRoot = errors.New("snapshot: no root node")

// Statistics carries per-node cost since the previous snapshot.
type Statistics struct {
	UpdateDuration time.Duration
}

// Node is an immutable copy of a virtual node.
type Node struct {
	Name     string
	Path     string
	Value    string
	HasValue bool
	Props    vtree.Props
	Children []*Node
	Stats    Statistics
}

// Take copies root into a snapshot. ctx is checked before descending into
// each node; if it is done the whole call fails with ctx.Err() and no
// partial tree is returned. Each node's update duration is read from store
// and reset there.
func Take(ctx context.Context, root *vtree.VirtualNode, store *vtree.Store) (*Node, error) {
	if root == nil {
		return nil, ErrNoRoot
	}
	return take(ctx, root, store)
}

func take(ctx context.Context, n *vtree.VirtualNode, store *vtree.Store) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Node{
		Name:  n.Name,
		Path:  n.Path,
		Props: n.Props.Clone(),
	}
	switch v := n.Value.(type) {
	case vtree.Text:
		out.Value, out.HasValue = string(v), true
	case vtree.Number:
		out.Value, out.HasValue = vtree.FormatNumber(v), true
	}
	if n.Lifecycle != nil && store != nil {
		out.Stats.UpdateDuration = store.TakeUpdateDuration(n.Path)
	}

	if len(n.Children) > 0 {
		out.Children = make([]*Node, 0, len(n.Children))
	}
	for _, c := range n.Children {
		child, err := take(ctx, c, store)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

// Find returns the first node in pre-order whose name matches, or nil.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}
