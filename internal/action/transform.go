package action

import (
	"fmt"

	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/undo"
)

// Move translates the children of d among figs by (dx, dy) as one edit.
func Move(d *drawing.Drawing, figs []figure.Figure, dx, dy float64) undo.Edit {
	targets, _ := selected(d, figs)
	if len(targets) == 0 || (dx == 0 && dy == 0) {
		return nil
	}
	translate(targets, dx, dy)
	e := undo.NewFuncEdit("Move",
		func() error { translate(targets, -dx, -dy); return nil },
		func() error { translate(targets, dx, dy); return nil },
	)
	d.FireUndoableEditHappened(e)
	return e
}

// Transform applies m to the children of d among figs as one edit. m must
// be invertible so the edit can be undone.
func Transform(d *drawing.Drawing, figs []figure.Figure, m geom.Matrix2D) (undo.Edit, error) {
	inv, err := m.Invert()
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	targets, _ := selected(d, figs)
	if len(targets) == 0 || m.IsIdentity() {
		return nil, nil
	}
	apply := func(m geom.Matrix2D) {
		for _, f := range targets {
			f.WillChange()
			f.TransformBy(m)
			f.Changed()
		}
	}
	apply(m)
	e := undo.NewFuncEdit("Transform",
		func() error { apply(inv); return nil },
		func() error { apply(m); return nil },
	)
	d.FireUndoableEditHappened(e)
	return e, nil
}
