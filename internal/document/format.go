package document

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/inamate/drawcore/internal/drawing"
)

// JSONFormat reads and writes the structured JSON format.
type JSONFormat struct {
	Registry *Registry
}

func (f JSONFormat) registry() *Registry {
	if f.Registry == nil {
		return DefaultRegistry
	}
	return f.Registry
}

func (JSONFormat) Name() string { return "json" }

// Read appends the document's figures to d.
func (f JSONFormat) Read(r io.Reader, d *drawing.Drawing) error {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("read json: %w", err)
	}
	return decodeInto(&doc, f.registry(), d)
}

func (f JSONFormat) Write(w io.Writer, d *drawing.Drawing) error {
	doc, err := Encode(d, f.registry())
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// InstallFormats registers the JSON and SVG formats on d.
func InstallFormats(d *drawing.Drawing) {
	d.SetInputFormats([]drawing.InputFormat{JSONFormat{}, SVGFormat{}})
	d.SetOutputFormats([]drawing.OutputFormat{JSONFormat{}, SVGFormat{}})
}
