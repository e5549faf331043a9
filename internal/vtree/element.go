package vtree

import (
	"strconv"
)

// Element is a declarative description of prompt content. It is one of
// Text, Number, *Fragment or *Component.
type Element interface {
	element()
}

// Text is a primitive string leaf.
type Text string

// Number is a primitive numeric leaf.
type Number float64

// Fragment groups children without adding an identity of its own.
type Fragment struct {
	Key      string
	Children []Element
}

// ComponentFunc renders a component into further elements. The lifecycle
// handle is bound to the component's path and addresses state slots by
// call order.
type ComponentFunc func(props Props, children []Element, lc *Lifecycle) Element

// Component references a named render function.
type Component struct {
	Name     string
	Key      string
	Props    Props
	Children []Element
	Render   ComponentFunc
}

func (Text) element()       {}
func (Number) element()     {}
func (*Fragment) element()  {}
func (*Component) element() {}

// F builds a fragment.
func F(children ...Element) *Fragment {
	return &Fragment{Children: children}
}

// C builds a component element.
func C(name string, render ComponentFunc, props Props, children ...Element) *Component {
	return &Component{Name: name, Props: props, Children: children, Render: render}
}

// WithKey returns a copy of c identified among its siblings by key instead
// of by position.
func (c *Component) WithKey(key string) *Component {
	cp := *c
	cp.Key = key
	return &cp
}

// Props carries component properties.
type Props map[string]any

// Float returns a numeric prop as float64.
func (p Props) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case Number:
		return float64(v), true
	}
	return 0, false
}

// String returns a string prop or "".
func (p Props) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns a boolean prop or false.
func (p Props) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Clone returns a shallow copy of p.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func isNil(el Element) bool {
	switch e := el.(type) {
	case nil:
		return true
	case *Fragment:
		return e == nil
	case *Component:
		return e == nil
	}
	return false
}

func keyOf(el Element) string {
	switch e := el.(type) {
	case *Fragment:
		return e.Key
	case *Component:
		return e.Key
	}
	return ""
}

// FormatNumber renders a Number leaf the way it appears in prompt text.
func FormatNumber(n Number) string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}
