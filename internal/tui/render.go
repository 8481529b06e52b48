package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/bttest/internal/widget"
)

// renderer draws a widget tree as indented lines. Nodes whose children are
// all leaves are drawn on one line, tab title bars are drawn horizontally,
// and hidden nodes are skipped.
type renderer struct {
	focused *widget.Node
	editing string // replaces the focused input's text while editing
	busy    string // prefix for busy buttons
	lines   []string
}

func (r *renderer) render(root *widget.Node) string {
	r.lines = r.lines[:0]
	r.node(root, 0)
	return strings.Join(r.lines, "\n")
}

func (r *renderer) node(n *widget.Node, depth int) {
	if n.Hidden() {
		return
	}
	children := visibleChildren(n)
	if len(children) == 0 {
		if s := r.leaf(n); s != "" {
			r.emit(depth, s)
		}
		return
	}
	if n.Kind() == "ul" || allLeaves(children) {
		sep := " "
		if n.Kind() == "ul" {
			sep = MutedStyle.Render(" │ ")
		}
		parts := make([]string, 0, len(children))
		for _, c := range children {
			if s := r.inline(c); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			r.emit(depth, strings.Join(parts, sep))
		}
		return
	}

	next := depth
	if indents(n) {
		next++
	}
	for _, c := range children {
		r.node(c, next)
	}
}

// inline renders n and its leaf children on one line
func (r *renderer) inline(n *widget.Node) string {
	children := visibleChildren(n)
	if len(children) == 0 {
		return r.leaf(n)
	}
	parts := make([]string, 0, len(children))
	for _, c := range children {
		if s := r.inline(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (r *renderer) leaf(n *widget.Node) string {
	text := n.Text()
	switch n.Kind() {
	case "button":
		if text == "" {
			text = "·"
		}
		if n.HasClass("tab-close") {
			text = "x"
		}
		text = "[ " + text + " ]"
		if n.HasClass("execution-busy") && r.busy != "" {
			text = r.busy + " " + text
		}
	case "input":
		if n == r.focused && r.editing != "" {
			return r.editing
		}
		if n.Attr("type") == "select" {
			text = "< " + text + " >"
		} else {
			text = "‹" + text + "›"
		}
		if n == r.focused {
			return FocusedStyle.Render(text)
		}
		return FieldStyle.Render(text)
	default:
		if text == "" {
			return ""
		}
	}

	switch {
	case n == r.focused:
		return FocusedStyle.Render(text)
	case n.Disabled():
		return DisabledStyle.Render(text)
	}
	return styleFor(n).Render(text)
}

func (r *renderer) emit(depth int, s string) {
	for _, line := range strings.Split(s, "\n") {
		r.lines = append(r.lines, strings.Repeat(" ", depth*indentWidth)+line)
	}
}

func styleFor(n *widget.Node) lipgloss.Style {
	if p := n.Parent(); p != nil {
		if n.HasClass("tab-link") && p.HasClass("active") {
			return ActiveTabStyle
		}
		if n.HasClass("device-indicator") && p.HasClass("device-connected") {
			return OnStyle
		}
	}
	for _, cs := range classStyles {
		if n.HasClass(cs.class) {
			return cs.style
		}
	}
	if n.Kind() == "button" {
		return ButtonStyle
	}
	return lipgloss.NewStyle()
}

// indents reports whether n's children are drawn one level deeper
func indents(n *widget.Node) bool {
	return n.HasClass("block") || n.HasClass("tab-body") || n.HasClass("execution-body")
}

func visibleChildren(n *widget.Node) []*widget.Node {
	var out []*widget.Node
	for _, c := range n.Children() {
		if !c.Hidden() {
			out = append(out, c)
		}
	}
	return out
}

func allLeaves(nodes []*widget.Node) bool {
	for _, n := range nodes {
		if len(visibleChildren(n)) > 0 {
			return false
		}
	}
	return true
}

// focusable lists the visible nodes the cursor can land on, in tree order:
// enabled clickable nodes and input fields.
func focusable(root *widget.Node) []*widget.Node {
	var out []*widget.Node
	var walk func(n *widget.Node)
	walk = func(n *widget.Node) {
		if n.Hidden() {
			return
		}
		if !n.Disabled() && (n.Clickable() || n.Kind() == "input") {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}
