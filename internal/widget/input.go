package widget

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/bttest/internal/pubsub"
)

// ErrInvalidInput is returned when raw user input cannot be converted to the
// input's type. The stored value is left unchanged.
var ErrInvalidInput = errors.New("invalid input")

// Input is a typed input widget. Raw text from the user goes through Input;
// programmatic updates use the typed setters of the concrete widgets.
type Input interface {
	Component
	Label() string
	Raw() string
	Input(raw string) error
	OnChange(fn func(value any)) pubsub.Subscription
}

// inputBase carries the row layout shared by all inputs
type inputBase struct {
	node   *Node
	label  *Node
	field  *Node
	events pubsub.Emitter
}

func (b *inputBase) init(kind, label string) {
	b.node = NewNode("div", "input", "input-"+kind)
	b.label = NewNode("label", "input-label")
	b.field = NewNode("input", "input-field")
	b.label.SetText(label)
	b.field.SetAttr("type", kind)
	b.node.Append(b.label).Append(b.field)
}

func (b *inputBase) Node() *Node { return b.node }
func (b *inputBase) Label() string { return b.label.Text() }
func (b *inputBase) Raw() string { return b.field.Text() }
func (b *inputBase) Field() *Node { return b.field }
func (b *inputBase) Destroy() { b.node.Remove() }

// OnChange registers fn for value changes. fn receives the typed value.
func (b *inputBase) OnChange(fn func(value any)) pubsub.Subscription {
	return b.events.On(EventChange, func(p any) { fn(p) })
}

// NumberInput holds a float64 with optional bounds
type NumberInput struct {
	inputBase
	value  *Property[float64]
	lo, hi float64
}

// NewNumberInput creates a number input bounded to [lo, hi]. Equal bounds
// disable the range check.
func NewNumberInput(label string, initial, lo, hi float64) *NumberInput {
	in := &NumberInput{lo: lo, hi: hi}
	in.init("number", label)
	in.value = NewProperty(0.0, func(_, next float64) {
		in.field.SetText(strconv.FormatFloat(next, 'f', -1, 64))
	})
	in.value.Set(initial)
	in.field.On(EventChange, func(p any) {
		if raw, ok := p.(string); ok {
			_ = in.Input(raw)
		}
	})
	return in
}

// Value returns the current number
func (in *NumberInput) Value() float64 { return in.value.Get() }

// SetValue stores v and fires change when it differs
func (in *NumberInput) SetValue(v float64) {
	if in.value.Set(v) {
		in.events.Fire(EventChange, v)
	}
}

// Input parses raw and stores it
func (in *NumberInput) Input(raw string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", ErrInvalidInput, raw)
	}
	if in.lo != in.hi && (v < in.lo || v > in.hi) {
		return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidInput, v, in.lo, in.hi)
	}
	in.SetValue(v)
	return nil
}

// StringInput holds free text
type StringInput struct {
	inputBase
	value *Property[string]
}

// NewStringInput creates a text input
func NewStringInput(label, initial string) *StringInput {
	in := &StringInput{}
	in.init("text", label)
	in.value = NewProperty("", func(_, next string) {
		in.field.SetText(next)
	})
	in.value.Set(initial)
	in.field.On(EventChange, func(p any) {
		if raw, ok := p.(string); ok {
			_ = in.Input(raw)
		}
	})
	return in
}

// Value returns the current text
func (in *StringInput) Value() string { return in.value.Get() }

// SetValue stores s and fires change when it differs
func (in *StringInput) SetValue(s string) {
	if in.value.Set(s) {
		in.events.Fire(EventChange, s)
	}
}

// Input stores raw as-is
func (in *StringInput) Input(raw string) error {
	in.SetValue(raw)
	return nil
}

// OptionsInput holds one choice out of a fixed list
type OptionsInput struct {
	inputBase
	options []string
	index   *Property[int]
}

// NewOptionsInput creates an options input selecting initial. An out of
// range initial selects the first option.
func NewOptionsInput(label string, options []string, initial int) *OptionsInput {
	in := &OptionsInput{options: append([]string(nil), options...)}
	in.init("select", label)
	in.field.SetAttr("options", strings.Join(options, "|"))
	in.index = NewProperty(-1, func(_, next int) {
		if next >= 0 && next < len(in.options) {
			in.field.SetText(in.options[next])
		} else {
			in.field.SetText("")
		}
	})
	if initial < 0 || initial >= len(options) {
		initial = 0
	}
	if len(options) > 0 {
		in.index.Set(initial)
	}
	in.field.On(EventChange, func(p any) {
		if raw, ok := p.(string); ok {
			_ = in.Input(raw)
		}
	})
	return in
}

// Options returns a copy of the choices
func (in *OptionsInput) Options() []string { return append([]string(nil), in.options...) }

// Index returns the selected position, or -1 when there are no options
func (in *OptionsInput) Index() int { return in.index.Get() }

// Value returns the selected option, or "" when there are no options
func (in *OptionsInput) Value() string {
	i := in.index.Get()
	if i < 0 || i >= len(in.options) {
		return ""
	}
	return in.options[i]
}

// Select chooses the i-th option
func (in *OptionsInput) Select(i int) error {
	if i < 0 || i >= len(in.options) {
		return fmt.Errorf("%w: option %d out of range", ErrInvalidInput, i)
	}
	if in.index.Set(i) {
		in.events.Fire(EventChange, in.options[i])
	}
	return nil
}

// Next selects the following option, wrapping around
func (in *OptionsInput) Next() {
	if len(in.options) == 0 {
		return
	}
	_ = in.Select((in.Index() + 1) % len(in.options))
}

// Input selects the option equal to raw
func (in *OptionsInput) Input(raw string) error {
	raw = strings.TrimSpace(raw)
	for i, opt := range in.options {
		if opt == raw {
			return in.Select(i)
		}
	}
	return fmt.Errorf("%w: %q is not one of %v", ErrInvalidInput, raw, in.options)
}

// InputBlock wraps a single input in a collapsible block with a caption
type InputBlock struct {
	*Block
	input   Input
	caption *Node
}

// NewInputBlock creates an expanded block holding input
func NewInputBlock(name string, input Input) *InputBlock {
	b := &InputBlock{
		Block:   NewBlock(true),
		input:   input,
		caption: NewNode("span", "title-caption"),
	}
	b.caption.SetText(name)
	b.caption.OnClick(b.ToggleExpand)
	title := NewNode("div", "input-title")
	title.Append(b.caption)

	b.AddChild(title, 0, false)
	b.AddChild(input.Node(), 1, true)
	b.Own(input)
	return b
}

// Input returns the wrapped input
func (b *InputBlock) Input() Input { return b.input }
