// Package document persists drawings. The structured format is a JSON
// element tree: each element holds an ordered list of object nodes whose
// type tag is resolved through a Registry.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
)

// FormatVersion is the version written by Encode.
const FormatVersion = 1

var (
	ErrUnknownType        = errors.New("unknown figure type")
	ErrNoElement          = errors.New("no such element")
	ErrUnsupportedVersion = errors.New("unsupported document version")
)

// Document is the persisted form of a drawing.
type Document struct {
	Version    int                     `json:"version"`
	ID         string                  `json:"id"`
	Attributes figure.AttributeSet     `json:"attributes,omitempty"`
	Canvas     *geom.Dimension         `json:"canvas,omitempty"`
	Elements   map[string][]ObjectNode `json:"elements"`
}

// ObjectNode is one persisted figure.
type ObjectNode struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Attributes figure.AttributeSet `json:"attributes,omitempty"`
	Data       json.RawMessage     `json:"data,omitempty"`
	Children   []ObjectNode        `json:"children,omitempty"`
}

// NewEmptyDocument creates a document with an empty figures element.
func NewEmptyDocument(id string) *Document {
	return &Document{
		Version:  FormatVersion,
		ID:       id,
		Elements: map[string][]ObjectNode{drawing.FiguresElement: {}},
	}
}

// Encode converts d into a document.
func Encode(d *drawing.Drawing, reg *Registry) (*Document, error) {
	out := NewJSONOutput(reg)
	if err := d.Write(out); err != nil {
		return nil, fmt.Errorf("encode drawing %s: %w", d.ID(), err)
	}
	doc := out.Document()
	doc.ID = d.ID()
	if attrs := d.Attributes(); len(attrs) > 0 {
		doc.Attributes = attrs
	}
	if size, ok := d.CanvasSize(); ok {
		doc.Canvas = &size
	}
	return doc, nil
}

// Decode builds a drawing from doc. The drawing keeps the document's id.
func Decode(doc *Document, reg *Registry, opts ...drawing.Option) (*drawing.Drawing, error) {
	if doc.ID != "" {
		opts = append(opts, drawing.WithID(doc.ID))
	}
	d := drawing.New(opts...)
	if err := decodeInto(doc, reg, d); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeInto(doc *Document, reg *Registry, d *drawing.Drawing) error {
	if doc.Version > FormatVersion {
		return fmt.Errorf("decode document %s: version %d: %w", doc.ID, doc.Version, ErrUnsupportedVersion)
	}
	if err := d.Read(NewJSONInput(doc, reg)); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	for k, v := range doc.Attributes {
		_ = d.BasicSetAttribute(k, v)
	}
	if doc.Canvas != nil {
		d.SetCanvasSize(doc.Canvas)
	}
	return nil
}

// Marshal encodes d as JSON with the default registry.
func Marshal(d *drawing.Drawing) ([]byte, error) {
	doc, err := Encode(d, DefaultRegistry)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Unmarshal decodes JSON produced by Marshal.
func Unmarshal(data []byte, opts ...drawing.Option) (*drawing.Drawing, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return Decode(&doc, DefaultRegistry, opts...)
}
