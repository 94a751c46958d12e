package action

import (
	"fmt"
	"slices"

	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/undo"
)

// DefaultPickExcluded are the attributes PickAttributes leaves alone:
// placement and identity are not style.
var DefaultPickExcluded = []figure.Key{figure.Transform, figure.Name}

type attributeEdit struct {
	undo.Base
	attrs   figure.AttributeSet
	figures []figure.Figure
	restore []any
}

// ApplyAttributes sets attrs on every figure inside one will-change/changed
// block per figure, records the editor defaults and fires one edit whose
// undo restores each figure's full attribute snapshot. Nothing is mutated
// when a value has the wrong type.
func ApplyAttributes(d *drawing.Drawing, ed *Editor, attrs figure.AttributeSet, figs []figure.Figure) (undo.Edit, error) {
	for k, v := range attrs {
		if !k.Valid(v) {
			return nil, fmt.Errorf("apply %s: invalid value type %T", k.Name(), v)
		}
	}
	if ed != nil {
		for k, v := range attrs {
			_ = ed.SetDefaultAttribute(k, v)
		}
	}

	e := &attributeEdit{
		Base:    undo.Base{Name: attributesName(attrs)},
		attrs:   attrs.Clone(),
		figures: slices.Clone(figs),
	}
	e.apply()
	d.FireUndoableEditHappened(e)
	return e, nil
}

func attributesName(attrs figure.AttributeSet) string {
	if len(attrs) == 1 {
		return "Set " + attrs.Names()[0]
	}
	return "Set attributes"
}

// apply captures fresh restore data and sets the attributes.
func (e *attributeEdit) apply() {
	e.restore = make([]any, len(e.figures))
	for i, f := range e.figures {
		e.restore[i] = f.AttributesRestoreData()
		f.WillChange()
		for k, v := range e.attrs {
			_ = f.BasicSetAttribute(k, v)
		}
		f.Changed()
	}
}

func (e *attributeEdit) Undo() error {
	if err := e.Base.Undo(); err != nil {
		return err
	}
	for i, f := range e.figures {
		f.WillChange()
		f.RestoreAttributesTo(e.restore[i])
		f.Changed()
	}
	return nil
}

func (e *attributeEdit) Redo() error {
	if err := e.Base.Redo(); err != nil {
		return err
	}
	e.apply()
	return nil
}

// PickAttributes copies f's attributes into the editor defaults, skipping
// the excluded keys (DefaultPickExcluded when none are given).
func PickAttributes(ed *Editor, f figure.Figure, exclude ...figure.Key) {
	if len(exclude) == 0 {
		exclude = DefaultPickExcluded
	}
	for k, v := range f.Attributes() {
		if slices.Contains(exclude, k) {
			continue
		}
		_ = ed.SetDefaultAttribute(k, v)
	}
}
