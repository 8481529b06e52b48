package widget

// TabHandler receives close requests from a tab's title bar
type TabHandler struct {
	OnClose func()
}

// Tab is an ordered collection of blocks with a title entry and a body
type Tab struct {
	id      string
	handler TabHandler

	title *Node
	link  *Node
	close *Node
	body  *Node

	blocks    []Component
	destroyed bool
}

// NewTab creates a tab with the given title. The close button is only shown
// when handler.OnClose is set.
func NewTab(name string, handler TabHandler) *Tab {
	t := &Tab{
		id:      UniqueID("tab"),
		handler: handler,
		title:   NewNode("li", "tab-title"),
		link:    NewNode("a", "tab-link"),
		close:   NewNode("button", "tab-close"),
		body:    NewNode("div", "tab-body"),
	}
	t.body.SetID(t.id)
	t.link.SetAttr("href", "#"+t.id)
	t.link.SetText(name)
	t.close.SetText("x")
	t.close.SetHidden(handler.OnClose == nil)
	t.close.OnClick(t.Close)
	t.title.Append(t.link).Append(t.close)
	return t
}

// ID returns the tab identifier
func (t *Tab) ID() string { return t.id }

// Name returns the title text
func (t *Tab) Name() string { return t.link.Text() }

// SetName replaces the title text
func (t *Tab) SetName(name string) { t.link.SetText(name) }

// TitleNode returns the title bar
func (t *Tab) TitleNode() *Node { return t.title }

// LinkNode returns the selectable title link
func (t *Tab) LinkNode() *Node { return t.link }

// CloseNode returns the close button
func (t *Tab) CloseNode() *Node { return t.close }

// BodyNode returns the tab body
func (t *Tab) BodyNode() *Node { return t.body }

// Node returns the tab body, which is the tab's visual root
func (t *Tab) Node() *Node { return t.body }

// AddBlock inserts c at index. A negative index is treated as zero and an
// index at or past the end appends.
func (t *Tab) AddBlock(c Component, index int) {
	index = min(max(index, 0), len(t.blocks))
	t.blocks = append(t.blocks, nil)
	copy(t.blocks[index+1:], t.blocks[index:])
	t.blocks[index] = c
	t.body.InsertAt(c.Node(), index)
}

// RemoveBlock detaches c without destroying it. Removing a block the tab
// does not hold is a no-op.
func (t *Tab) RemoveBlock(c Component) {
	for i, have := range t.blocks {
		if have == c {
			t.blocks = append(t.blocks[:i], t.blocks[i+1:]...)
			c.Node().Detach()
			return
		}
	}
}

// Blocks returns a copy of the block list
func (t *Tab) Blocks() []Component {
	return append([]Component(nil), t.blocks...)
}

// NumBlocks returns the number of blocks
func (t *Tab) NumBlocks() int {
	return len(t.blocks)
}

// Close asks the owner to close the tab
func (t *Tab) Close() {
	call("Tab", ActionClose, t.handler.OnClose)
}

// Destroyed reports whether Destroy has run
func (t *Tab) Destroyed() bool { return t.destroyed }

// Destroy destroys every remaining block, then removes the title and body
func (t *Tab) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	blocks := t.blocks
	t.blocks = nil
	for _, b := range blocks {
		b.Destroy()
	}
	t.title.Remove()
	t.body.Remove()
}

// TabsManager is an ordered collection of tabs with one active tab
type TabsManager struct {
	node     *Node
	titleBar *Node
	panels   *Node

	tabs   []*Tab
	active int
	subs   map[*Tab]func()
}

// NewTabsManager creates an empty manager with no active tab
func NewTabsManager() *TabsManager {
	m := &TabsManager{
		node:     NewNode("div", "tabs"),
		titleBar: NewNode("ul", "tabs-titles"),
		panels:   NewNode("div", "tabs-panels"),
		active:   -1,
		subs:     make(map[*Tab]func()),
	}
	m.node.Append(m.titleBar).Append(m.panels)
	return m
}

// Node returns the manager's visual root
func (m *TabsManager) Node() *Node { return m.node }

// AddTab appends t and makes it the active tab
func (m *TabsManager) AddTab(t *Tab) {
	m.tabs = append(m.tabs, t)
	m.titleBar.Append(t.title)
	m.panels.Append(t.body)
	sub := t.link.OnClick(func() { m.selectTab(t) })
	m.subs[t] = func() { t.link.Off(EventClick, sub) }
	m.Select(len(m.tabs) - 1)
}

// RemoveTab detaches t without destroying it. The active tab stays active
// when another tab is removed. When the active tab itself is removed, the
// tab now at the same index is selected, or the last tab, or none.
func (m *TabsManager) RemoveTab(t *Tab) {
	i := m.IndexOf(t)
	if i < 0 {
		return
	}
	if off, ok := m.subs[t]; ok {
		off()
		delete(m.subs, t)
	}
	m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
	t.title.Detach()
	t.body.Detach()
	t.title.RemoveClass("active")

	switch {
	case i < m.active:
		m.active--
	case i == m.active:
		m.active = -1
		m.Select(min(i, len(m.tabs)-1))
	}
}

// IndexOf returns the position of t, or -1
func (m *TabsManager) IndexOf(t *Tab) int {
	for i, have := range m.tabs {
		if have == t {
			return i
		}
	}
	return -1
}

// Select activates the i-th tab. Out of range indexes are ignored.
func (m *TabsManager) Select(i int) {
	if i < 0 || i >= len(m.tabs) {
		return
	}
	m.active = i
	for j, t := range m.tabs {
		t.title.ToggleClass("active", j == i)
		t.body.SetHidden(j != i)
	}
}

func (m *TabsManager) selectTab(t *Tab) {
	m.Select(m.IndexOf(t))
}

// Active returns the index of the active tab, or -1
func (m *TabsManager) Active() int { return m.active }

// ActiveTab returns the active tab, or nil
func (m *TabsManager) ActiveTab() *Tab {
	if m.active < 0 || m.active >= len(m.tabs) {
		return nil
	}
	return m.tabs[m.active]
}

// Tabs returns a copy of the tab list
func (m *TabsManager) Tabs() []*Tab {
	return append([]*Tab(nil), m.tabs...)
}

// Len returns the number of tabs
func (m *TabsManager) Len() int { return len(m.tabs) }

// Destroy destroys every tab and removes the manager's root
func (m *TabsManager) Destroy() {
	tabs := m.tabs
	m.tabs = nil
	m.active = -1
	for _, t := range tabs {
		t.Destroy()
	}
	m.subs = make(map[*Tab]func())
	m.node.Remove()
}
