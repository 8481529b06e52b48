package widget

// Block is a collapsible unit inside a Tab. Only children registered as
// hideable are hidden while the block is collapsed.
type Block struct {
	node      *Node
	hideable  []*Node
	expanded  *Property[bool]
	owned     []Component
	destroyed bool
}

// NewBlock creates a block in the given expansion state
func NewBlock(expanded bool) *Block {
	b := &Block{node: NewNode("div", "block")}
	b.expanded = NewProperty(false, func(_, next bool) {
		for _, n := range b.hideable {
			n.SetHidden(!next)
		}
		b.node.ToggleClass("block-collapsed", !next)
	})
	b.expanded.Set(expanded)
	return b
}

// Node returns the block's visual root
func (b *Block) Node() *Node { return b.node }

// IsExpanded reports whether hideable children are shown
func (b *Block) IsExpanded() bool { return b.expanded.Get() }

// SetExpanded shows or hides the hideable children
func (b *Block) SetExpanded(expanded bool) { b.expanded.Set(expanded) }

// ToggleExpand flips the expansion state
func (b *Block) ToggleExpand() { b.SetExpanded(!b.IsExpanded()) }

// AddChild inserts n at index (negative clamps to zero, past the end appends).
// A hideable child follows the block's expansion state.
func (b *Block) AddChild(n *Node, index int, hideable bool) {
	b.node.InsertAt(n, max(0, index))
	if hideable {
		b.hideable = append(b.hideable, n)
		n.SetHidden(!b.IsExpanded())
	}
}

// Own registers c to be destroyed with the block
func (b *Block) Own(c Component) {
	b.owned = append(b.owned, c)
}

// Destroyed reports whether Destroy has run
func (b *Block) Destroyed() bool { return b.destroyed }

// Destroy destroys owned components, then removes the block's root
func (b *Block) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	for _, c := range b.owned {
		c.Destroy()
	}
	b.owned = nil
	b.hideable = nil
	b.node.Remove()
}
