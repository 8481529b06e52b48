package widget

import (
	"github.com/muurk/bttest/internal/pubsub"
)

// Node event names
const (
	EventClick  = "click"
	EventChange = "change"
)

// Node is the visual handle of a component: a tree element with classes, a
// caption, visibility, and local event listeners. Renderers walk Node trees;
// components only ever mutate them.
type Node struct {
	kind     string
	id       string
	classes  []string
	text     string
	hidden   bool
	disabled bool
	attrs    map[string]string

	parent   *Node
	children []*Node
	removed  bool

	events pubsub.Emitter
}

// NewNode creates a detached node of the given kind ("div", "span", "button", ...)
func NewNode(kind string, classes ...string) *Node {
	n := &Node{kind: kind}
	for _, c := range classes {
		n.AddClass(c)
	}
	return n
}

func (n *Node) Kind() string { return n.kind }
func (n *Node) ID() string { return n.id }
func (n *Node) SetID(id string) { n.id = id }
func (n *Node) Text() string { return n.text }
func (n *Node) SetText(s string) { n.text = s }
func (n *Node) Hidden() bool { return n.hidden }
func (n *Node) SetHidden(h bool) { n.hidden = h }
func (n *Node) Disabled() bool { return n.disabled }
func (n *Node) SetDisabled(d bool) { n.disabled = d }
func (n *Node) Parent() *Node { return n.parent }
func (n *Node) Removed() bool { return n.removed }

// Attr returns the attribute value, or "" when unset
func (n *Node) Attr(key string) string {
	return n.attrs[key]
}

// SetAttr sets an attribute
func (n *Node) SetAttr(key, value string) {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[key] = value
}

// AddClass adds c if it is not already present
func (n *Node) AddClass(c string) {
	if c == "" || n.HasClass(c) {
		return
	}
	n.classes = append(n.classes, c)
}

// RemoveClass removes c if present
func (n *Node) RemoveClass(c string) {
	for i, have := range n.classes {
		if have == c {
			n.classes = append(n.classes[:i], n.classes[i+1:]...)
			return
		}
	}
}

// ToggleClass adds c when on is true and removes it otherwise
func (n *Node) ToggleClass(c string, on bool) {
	if on {
		n.AddClass(c)
	} else {
		n.RemoveClass(c)
	}
}

// HasClass reports whether c is present
func (n *Node) HasClass(c string) bool {
	for _, have := range n.classes {
		if have == c {
			return true
		}
	}
	return false
}

// Classes returns a copy of the class list in insertion order
func (n *Node) Classes() []string {
	return append([]string(nil), n.classes...)
}

// Children returns a copy of the child list
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Len returns the number of children
func (n *Node) Len() int {
	return len(n.children)
}

// Append adds child as the last child, detaching it from any previous parent.
func (n *Node) Append(child *Node) *Node {
	child.Detach()
	child.parent = n
	n.children = append(n.children, child)
	return n
}

// InsertAt inserts child before the index-th child. An index at or past the
// end appends; a negative index counts from the end, clamped at zero.
func (n *Node) InsertAt(child *Node, index int) *Node {
	child.Detach()
	count := len(n.children)
	if count == 0 || index >= count {
		return n.Append(child)
	}
	if index < 0 {
		index = max(count+index, 0)
	}
	child.parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	return n
}

// IndexOf returns the position of child, or -1
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Detach removes n from its parent but keeps its listeners and subtree.
func (n *Node) Detach() *Node {
	if n.parent == nil {
		return n
	}
	p := n.parent
	if i := p.IndexOf(n); i >= 0 {
		p.children = append(p.children[:i], p.children[i+1:]...)
	}
	n.parent = nil
	return n
}

// Remove detaches n and drops every listener in its subtree. Removing twice
// is a no-op.
func (n *Node) Remove() {
	if n.removed {
		return
	}
	n.Detach()
	n.Walk(func(c *Node) bool {
		c.events.Clear()
		c.removed = true
		return true
	})
}

// Empty removes every child
func (n *Node) Empty() {
	for _, c := range n.Children() {
		c.Remove()
	}
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Visible reports whether n and all of its ancestors are shown
func (n *Node) Visible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.hidden {
			return false
		}
	}
	return true
}

// On registers a listener for a node-local event
func (n *Node) On(event string, fn pubsub.Handler) pubsub.Subscription {
	return n.events.On(event, fn)
}

// Off removes a listener
func (n *Node) Off(event string, sub pubsub.Subscription) {
	n.events.Off(event, sub)
}

// OnClick registers fn for click events
func (n *Node) OnClick(fn func()) pubsub.Subscription {
	return n.events.On(EventClick, func(any) { fn() })
}

// Clickable reports whether the node has click listeners
func (n *Node) Clickable() bool {
	return n.events.Count(EventClick) > 0
}

// Listeners returns the number of listeners in n's subtree
func (n *Node) Listeners() int {
	total := 0
	n.Walk(func(c *Node) bool {
		total += c.events.Total()
		return true
	})
	return total
}

// Click dispatches a click unless the node is removed or disabled
func (n *Node) Click() {
	if n.removed || n.disabled {
		return
	}
	n.events.Fire(EventClick, nil)
}

// Fire dispatches a node-local event
func (n *Node) Fire(event string, payload any) {
	if n.removed {
		return
	}
	n.events.Fire(event, payload)
}
