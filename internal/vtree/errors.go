// Package vtree materializes declarative prompt elements into a persistent
// virtual tree with per-node local state.
package vtree

import "errors"

// Reconciler errors.
var (
	// ErrDuplicateIdentity indicates two siblings resolved to the same key or position.
	ErrDuplicateIdentity = errors.New("vtree: duplicate sibling identity")

	// ErrInvalidElement indicates an element that cannot be virtualized.
	ErrInvalidElement = errors.New("vtree: invalid element")

	// ErrNotMounted indicates an operation on a reconciler without a tree.
	ErrNotMounted = errors.New("vtree: tree not mounted")
)
