package action

import (
	"slices"

	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/undo"
)

// structureEdit adds or removes a fixed set of figures at known indices.
type structureEdit struct {
	undo.Base
	d       *drawing.Drawing
	figures []figure.Figure
	indices []int
	added   bool
}

func (e *structureEdit) insert() {
	for i, f := range e.figures {
		e.d.AddAt(e.indices[i], f)
	}
}

func (e *structureEdit) remove() {
	for i := len(e.figures) - 1; i >= 0; i-- {
		e.d.Remove(e.figures[i])
	}
}

func (e *structureEdit) Undo() error {
	if err := e.Base.Undo(); err != nil {
		return err
	}
	if e.added {
		e.remove()
	} else {
		e.insert()
	}
	return nil
}

func (e *structureEdit) Redo() error {
	if err := e.Base.Redo(); err != nil {
		return err
	}
	if e.added {
		e.insert()
	} else {
		e.remove()
	}
	return nil
}

// AddFigures applies the editor defaults to figs, appends them to d and
// fires one edit.
func AddFigures(d *drawing.Drawing, ed *Editor, figs ...figure.Figure) undo.Edit {
	if len(figs) == 0 {
		return nil
	}
	for _, f := range figs {
		if ed != nil {
			ed.ApplyDefaultsTo(f)
		}
	}
	return addAll(d, "Add", figs)
}

func addAll(d *drawing.Drawing, name string, figs []figure.Figure) undo.Edit {
	e := &structureEdit{Base: undo.Base{Name: name}, d: d, figures: slices.Clone(figs), added: true}
	for _, f := range figs {
		d.Add(f)
	}
	for _, f := range e.figures {
		e.indices = append(e.indices, d.IndexOf(f))
	}
	d.FireUndoableEditHappened(e)
	return e
}

// Delete removes the children of d among figs. Undo reinserts them at
// their old indices.
func Delete(d *drawing.Drawing, figs []figure.Figure) undo.Edit {
	victims, idx := selected(d, figs)
	if len(victims) == 0 {
		return nil
	}
	e := &structureEdit{Base: undo.Base{Name: "Delete"}, d: d, figures: victims, indices: idx}
	e.remove()
	d.FireUndoableEditHappened(e)
	return e
}

// Duplicate adds clones of the children of d among figs, moved by (dx, dy),
// in front of everything. It returns the clones.
func Duplicate(d *drawing.Drawing, figs []figure.Figure, dx, dy float64) ([]figure.Figure, undo.Edit) {
	src, _ := selected(d, figs)
	if len(src) == 0 {
		return nil, nil
	}
	clones := make([]figure.Figure, len(src))
	for i, f := range src {
		c := f.Clone()
		c.TransformBy(geom.Translate(dx, dy))
		clones[i] = c
	}
	return clones, addAll(d, "Duplicate", clones)
}
