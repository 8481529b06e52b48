package widget

import (
	"strings"
	"testing"
)

func names(nodes []*Node) string {
	var parts []string
	for _, n := range nodes {
		parts = append(parts, n.Text())
	}
	return strings.Join(parts, ",")
}

func textNode(s string) *Node {
	n := NewNode("span")
	n.SetText(s)
	return n
}

func TestNode_InsertAt(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"front", 0, "x,a,b,c"},
		{"middle", 1, "a,x,b,c"},
		{"at end", 3, "a,b,c,x"},
		{"past end", 10, "a,b,c,x"},
		{"negative counts from end", -1, "a,b,x,c"},
		{"negative clamps to zero", -10, "x,a,b,c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := NewNode("div")
			parent.Append(textNode("a")).Append(textNode("b")).Append(textNode("c"))

			x := textNode("x")
			parent.InsertAt(x, tt.index)

			if got := names(parent.Children()); got != tt.want {
				t.Errorf("children = %q, want %q", got, tt.want)
			}
			if x.Parent() != parent {
				t.Error("inserted node should point at its parent")
			}
		})
	}
}

func TestNode_InsertAtEmpty(t *testing.T) {
	parent := NewNode("div")
	parent.InsertAt(textNode("x"), -3)

	if got := names(parent.Children()); got != "x" {
		t.Errorf("children = %q, want %q", got, "x")
	}
}

func TestNode_AppendMovesChild(t *testing.T) {
	a := NewNode("div")
	b := NewNode("div")
	child := textNode("c")

	a.Append(child)
	b.Append(child)

	if a.Len() != 0 {
		t.Errorf("a.Len() = %d, want 0", a.Len())
	}
	if b.Len() != 1 || child.Parent() != b {
		t.Error("child should have moved to b")
	}
}

func TestNode_Classes(t *testing.T) {
	n := NewNode("div", "a", "b", "a")

	if got := n.Classes(); len(got) != 2 {
		t.Fatalf("Classes() = %v, want 2 entries", got)
	}
	n.ToggleClass("c", true)
	n.ToggleClass("a", false)
	if n.HasClass("a") || !n.HasClass("c") {
		t.Errorf("Classes() = %v, want [b c]", n.Classes())
	}
	n.RemoveClass("missing")
	if len(n.Classes()) != 2 {
		t.Errorf("RemoveClass of missing class changed the list: %v", n.Classes())
	}
}

func TestNode_RemoveClearsListeners(t *testing.T) {
	root := NewNode("div")
	child := NewNode("button")
	root.Append(child)

	clicks := 0
	root.OnClick(func() { clicks++ })
	child.OnClick(func() { clicks++ })

	if got := root.Listeners(); got != 2 {
		t.Fatalf("Listeners() = %d, want 2", got)
	}

	root.Remove()

	if got := root.Listeners(); got != 0 {
		t.Errorf("Listeners() after Remove = %d, want 0", got)
	}
	child.Click()
	root.Click()
	if clicks != 0 {
		t.Errorf("clicks after Remove = %d, want 0", clicks)
	}
	if !child.Removed() {
		t.Error("descendants should be marked removed")
	}

	root.Remove()
}

func TestNode_DetachKeepsListeners(t *testing.T) {
	root := NewNode("div")
	child := NewNode("button")
	root.Append(child)

	clicks := 0
	child.OnClick(func() { clicks++ })
	child.Detach()
	child.Click()

	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if root.Len() != 0 {
		t.Errorf("root.Len() = %d, want 0", root.Len())
	}
}

func TestNode_ClickDisabled(t *testing.T) {
	n := NewNode("button")
	clicks := 0
	n.OnClick(func() { clicks++ })

	n.SetDisabled(true)
	n.Click()
	n.SetDisabled(false)
	n.Click()

	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
}

func TestNode_Visible(t *testing.T) {
	root := NewNode("div")
	mid := NewNode("div")
	leaf := NewNode("span")
	root.Append(mid.Append(leaf))

	mid.SetHidden(true)
	if leaf.Visible() {
		t.Error("leaf under a hidden parent should not be visible")
	}
	mid.SetHidden(false)
	if !leaf.Visible() {
		t.Error("leaf should be visible")
	}
}

func TestUniqueID(t *testing.T) {
	a := UniqueID("widget")
	b := UniqueID("widget")

	if a == b {
		t.Errorf("UniqueID() returned %q twice", a)
	}
	if !strings.HasPrefix(a, "widget") {
		t.Errorf("UniqueID(%q) = %q, want prefix", "widget", a)
	}
	if got := UniqueID(""); !strings.HasPrefix(got, "id") {
		t.Errorf("UniqueID(\"\") = %q, want prefix id", got)
	}
}
