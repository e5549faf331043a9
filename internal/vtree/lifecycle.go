package vtree

import (
	"context"
	"fmt"
	"reflect"
)

type consumer func(ctx context.Context, data any) (bool, error)

// Lifecycle is the per-invocation handle a component uses to reach its
// persisted state slots and to register data consumers.
type Lifecycle struct {
	path      string
	entry     *entry
	cursor    int
	consumers []consumer
}

// Path returns the structural path of the owning node.
func (lc *Lifecycle) Path() string {
	return lc.path
}

// Dirty reports whether local state changed since the last render.
func (lc *Lifecycle) Dirty() bool {
	return lc.entry.dirty
}

// UseState returns the value of the next state slot and a setter for it.
// Slots are addressed by call order, so a component must call UseState the
// same number of times, in the same order, on every render. Setting a value
// that differs from the current one marks the node for remount on the next
// reconciliation.
func UseState[T any](lc *Lifecycle, initial T) (T, func(T)) {
	i := lc.cursor
	lc.cursor++

	e := lc.entry
	if i >= len(e.slots) {
		e.slots = append(e.slots, initial)
	}

	var value T
	if e.slots[i] != nil {
		v, ok := e.slots[i].(T)
		if !ok {
			panic(fmt.Sprintf("vtree: state slot %d of %s holds %T, want %T", i, lc.path, e.slots[i], value))
		}
		value = v
	}

	set := func(next T) {
		if reflect.DeepEqual(e.slots[i], any(next)) {
			return
		}
		e.slots[i] = next
		e.dirty = true
	}
	return value, set
}

// UseData registers fn to receive pumped data of type E. Data of any other
// type passes the node untouched.
func UseData[E any](lc *Lifecycle, fn func(ctx context.Context, data E) error) {
	lc.consumers = append(lc.consumers, func(ctx context.Context, data any) (bool, error) {
		ev, ok := data.(E)
		if !ok {
			return false, nil
		}
		return true, fn(ctx, ev)
	})
}
