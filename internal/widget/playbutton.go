package widget

// PlayButtonHandler holds the optional callback of a PlayButtonBlock
type PlayButtonHandler struct {
	OnPlay func()
}

// PlayButtonBlock is a passive block: a play button and a name in the title,
// and a collapsible description.
type PlayButtonBlock struct {
	*Block
	handler     PlayButtonHandler
	button      *Node
	caption     *Node
	description *Node
}

// NewPlayButtonBlock creates a play-button block
func NewPlayButtonBlock(handler PlayButtonHandler, name, description string, expanded bool) *PlayButtonBlock {
	b := &PlayButtonBlock{
		Block:       NewBlock(expanded),
		handler:     handler,
		button:      NewNode("button", "play-button"),
		caption:     NewNode("span", "title-caption"),
		description: NewNode("div", "play-button-body"),
	}
	b.button.SetText("▶")
	b.button.OnClick(b.Play)
	b.caption.SetText(name)
	b.caption.OnClick(b.ToggleExpand)
	b.description.SetText(description)

	title := NewNode("div", "play-button-title")
	title.Append(b.button).Append(b.caption)

	b.AddChild(title, 0, false)
	b.AddChild(b.description, 1, true)
	return b
}

func (b *PlayButtonBlock) Name() string { return b.caption.Text() }
func (b *PlayButtonBlock) SetName(name string) { b.caption.SetText(name) }
func (b *PlayButtonBlock) Description() string { return b.description.Text() }
func (b *PlayButtonBlock) SetDescription(desc string) { b.description.SetText(desc) }
func (b *PlayButtonBlock) Button() *Node { return b.button }

// Play invokes OnPlay
func (b *PlayButtonBlock) Play() {
	call("play-button", ActionPlay, b.handler.OnPlay)
}
