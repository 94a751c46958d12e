package document

import (
	"errors"
	"fmt"

	"github.com/inamate/drawcore/internal/figure"
)

var errNotOpen = errors.New("no element open")

// JSONInput reads elements of a decoded Document. It implements
// drawing.Input.
type JSONInput struct {
	reg   *Registry
	doc   *Document
	stack [][]ObjectNode
}

func NewJSONInput(doc *Document, reg *Registry) *JSONInput {
	return &JSONInput{reg: reg, doc: doc}
}

func (in *JSONInput) OpenElement(name string) error {
	nodes, ok := in.doc.Elements[name]
	if !ok {
		return fmt.Errorf("element %q: %w", name, ErrNoElement)
	}
	in.stack = append(in.stack, nodes)
	return nil
}

func (in *JSONInput) CloseElement() error {
	if len(in.stack) == 0 {
		return errNotOpen
	}
	in.stack = in.stack[:len(in.stack)-1]
	return nil
}

func (in *JSONInput) ElementCount() int {
	if len(in.stack) == 0 {
		return 0
	}
	return len(in.stack[len(in.stack)-1])
}

func (in *JSONInput) ReadObject(i int) (figure.Figure, error) {
	if len(in.stack) == 0 {
		return nil, errNotOpen
	}
	nodes := in.stack[len(in.stack)-1]
	if i < 0 || i >= len(nodes) {
		return nil, fmt.Errorf("object %d of %d: out of range", i, len(nodes))
	}
	return in.reg.Decode(nodes[i])
}

// JSONOutput collects written figures into a Document. It implements
// drawing.Output.
type JSONOutput struct {
	reg   *Registry
	doc   *Document
	names []string
	lists [][]ObjectNode
}

func NewJSONOutput(reg *Registry) *JSONOutput {
	return &JSONOutput{
		reg: reg,
		doc: &Document{Version: FormatVersion, Elements: map[string][]ObjectNode{}},
	}
}

func (out *JSONOutput) OpenElement(name string) error {
	out.names = append(out.names, name)
	out.lists = append(out.lists, []ObjectNode{})
	return nil
}

func (out *JSONOutput) CloseElement() error {
	n := len(out.names)
	if n == 0 {
		return errNotOpen
	}
	out.doc.Elements[out.names[n-1]] = out.lists[n-1]
	out.names = out.names[:n-1]
	out.lists = out.lists[:n-1]
	return nil
}

func (out *JSONOutput) WriteObject(f figure.Figure) error {
	n := len(out.lists)
	if n == 0 {
		return errNotOpen
	}
	node, err := out.reg.Encode(f)
	if err != nil {
		return err
	}
	out.lists[n-1] = append(out.lists[n-1], node)
	return nil
}

// Document returns the collected document.
func (out *JSONOutput) Document() *Document { return out.doc }
