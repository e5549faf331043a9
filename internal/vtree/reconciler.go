package vtree

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptkit/pkg/logger"
)

// Synthetic node names.
const (
	NameText     = "#text"
	NameNumber   = "#number"
	NameFragment = "f"
)

// VirtualNode is the persistent counterpart of an element.
type VirtualNode struct {
	Name     string
	Path     string
	Props    Props
	Value    Element // Text or Number for leaves, nil otherwise
	Children []*VirtualNode

	// Lifecycle is set for component nodes only.
	Lifecycle *Lifecycle

	component *Component
}

// IsLeaf reports whether n holds a primitive value.
func (n *VirtualNode) IsLeaf() bool {
	return n.Value != nil
}

// Reconciler owns one virtual tree and its lifecycle store. It is not safe
// for concurrent use; concurrent renders need independent reconcilers.
type Reconciler struct {
	store *Store
	root  *VirtualNode
}

// NewReconciler creates a reconciler backed by store. A nil store gets a
// fresh one.
func NewReconciler(store *Store) *Reconciler {
	if store == nil {
		store = NewStore()
	}
	return &Reconciler{store: store}
}

// Store returns the lifecycle store.
func (r *Reconciler) Store() *Store {
	return r.store
}

// Root returns the current tree, or nil before Mount.
func (r *Reconciler) Root() *VirtualNode {
	return r.root
}

// Mount virtualizes el as the new root. State of paths that survive the
// swap is kept; state of paths that disappear is dropped.
func (r *Reconciler) Mount(el Element) (*VirtualNode, error) {
	root, err := r.Virtualize(el, "", 0)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: root renders nothing", ErrInvalidElement)
	}
	if r.root != nil {
		r.dropUnreachable(r.root, root)
	}
	r.root = root
	return root, nil
}

// Virtualize materializes el at position index under parentPath. A fragment
// in this position yields a synthetic container node; fragments nested
// deeper are inlined into their parent's children.
func (r *Reconciler) Virtualize(el Element, parentPath string, index int) (*VirtualNode, error) {
	if isNil(el) {
		return nil, nil
	}
	ident := keyOf(el)
	if ident == "" {
		ident = fmt.Sprint(index)
	}
	if f, ok := el.(*Fragment); ok {
		path := parentPath + "[" + ident + "]" + NameFragment
		children, err := r.virtualizeChildren(f.Children, path)
		if err != nil {
			return nil, err
		}
		return &VirtualNode{Name: NameFragment, Path: path, Children: children}, nil
	}
	nodes, err := r.virtualizeAt(el, parentPath, ident)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

func (r *Reconciler) virtualizeChildren(children []Element, parentPath string) ([]*VirtualNode, error) {
	seen := make(map[string]struct{}, len(children))
	var out []*VirtualNode
	for i, child := range children {
		if isNil(child) {
			continue
		}
		ident := keyOf(child)
		if ident == "" {
			ident = fmt.Sprint(i)
		}
		if _, dup := seen[ident]; dup {
			return nil, fmt.Errorf("%w: %q under %s", ErrDuplicateIdentity, ident, parentPath)
		}
		seen[ident] = struct{}{}

		nodes, err := r.virtualizeAt(child, parentPath, ident)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (r *Reconciler) virtualizeAt(el Element, parentPath, ident string) ([]*VirtualNode, error) {
	prefix := parentPath + "[" + ident + "]"
	switch e := el.(type) {
	case Text:
		return []*VirtualNode{{Name: NameText, Path: prefix + NameText, Value: e}}, nil
	case Number:
		return []*VirtualNode{{Name: NameNumber, Path: prefix + NameNumber, Value: e}}, nil
	case *Fragment:
		return r.virtualizeChildren(e.Children, prefix+NameFragment)
	case *Component:
		node, err := r.mount(e, prefix+e.Name)
		if err != nil {
			return nil, err
		}
		return []*VirtualNode{node}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidElement, el)
	}
}

func (r *Reconciler) mount(c *Component, path string) (*VirtualNode, error) {
	if c.Name == "" || c.Render == nil {
		return nil, fmt.Errorf("%w: component at %s needs a name and a render func", ErrInvalidElement, path)
	}

	e := r.store.get(path)
	e.dirty = false
	lc := &Lifecycle{path: path, entry: e}

	start := time.Now()
	out := c.Render(c.Props, c.Children, lc)
	e.updateDuration += time.Since(start)

	children, err := r.virtualizeChildren([]Element{out}, path)
	if err != nil {
		return nil, err
	}
	return &VirtualNode{
		Name:      c.Name,
		Path:      path,
		Props:     c.Props,
		Children:  children,
		Lifecycle: lc,
		component: c,
	}, nil
}

// Reconcile remounts every node whose local state changed since it last
// rendered. Unchanged nodes keep their identity; only their children are
// visited.
func (r *Reconciler) Reconcile() (*VirtualNode, error) {
	if r.root == nil {
		return nil, ErrNotMounted
	}
	remounts := 0
	root, err := r.reconcileNode(r.root, &remounts)
	if err != nil {
		return nil, err
	}
	r.root = root
	if remounts > 0 {
		logger.Debug().Int("remounts", remounts).Int("state_entries", r.store.Len()).Msg("vtree: reconciled")
	}
	return root, nil
}

func (r *Reconciler) reconcileNode(n *VirtualNode, remounts *int) (*VirtualNode, error) {
	if n.Lifecycle != nil && n.Lifecycle.entry.dirty {
		next, err := r.mount(n.component, n.Path)
		if err != nil {
			return nil, err
		}
		r.dropUnreachable(n, next)
		*remounts++
		return next, nil
	}
	for i, child := range n.Children {
		next, err := r.reconcileNode(child, remounts)
		if err != nil {
			return nil, err
		}
		n.Children[i] = next
	}
	return n, nil
}

// dropUnreachable deletes state for paths under before that no longer
// exist under after.
func (r *Reconciler) dropUnreachable(before, after *VirtualNode) {
	live := make(map[string]struct{})
	collectPaths(after, live)
	stale := make(map[string]struct{})
	collectPaths(before, stale)
	for p := range stale {
		if _, ok := live[p]; !ok {
			r.store.delete(p)
		}
	}
}

func collectPaths(n *VirtualNode, into map[string]struct{}) {
	if n.Lifecycle != nil {
		into[n.Path] = struct{}{}
	}
	for _, c := range n.Children {
		collectPaths(c, into)
	}
}

// Pump delivers data to every node depth-first, one consumer at a time.
// A failing or panicking consumer does not stop delivery to the rest of the
// tree; all failures are returned joined. Pump changes state slots only,
// never the tree shape.
func (r *Reconciler) Pump(ctx context.Context, data any) error {
	if r.root == nil {
		return ErrNotMounted
	}
	var errs []error
	if err := r.pumpNode(ctx, r.root, data, &errs); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (r *Reconciler) pumpNode(ctx context.Context, n *VirtualNode, data any, errs *[]error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if lc := n.Lifecycle; lc != nil {
		for _, consume := range lc.consumers {
			start := time.Now()
			handled, err := safeConsume(ctx, consume, data)
			if handled {
				lc.entry.updateDuration += time.Since(start)
			}
			if err != nil {
				*errs = append(*errs, fmt.Errorf("%s: %w", n.Path, err))
			}
		}
	}
	for _, c := range n.Children {
		if err := r.pumpNode(ctx, c, data, errs); err != nil {
			return err
		}
	}
	return nil
}

func safeConsume(ctx context.Context, consume consumer, data any) (handled bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			handled = true
			err = fmt.Errorf("consumer panic: %v", p)
		}
	}()
	return consume(ctx, data)
}
