package action

import (
	"log/slog"
	"slices"

	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/undo"
)

// DragTracker moves figures with the pointer. Pointer positions are in
// view coordinates; a step whose view transform cannot be inverted is
// skipped and leaves the figures untouched.
type DragTracker struct {
	View render.Viewport

	d       *drawing.Drawing
	figures []figure.Figure
	last    geom.Point
	started bool
	dx, dy  float64
}

// BeginDrag starts dragging figs from the view point p.
func BeginDrag(d *drawing.Drawing, view render.Viewport, figs []figure.Figure, p geom.Point) *DragTracker {
	t := &DragTracker{View: view, d: d, figures: slices.Clone(figs)}
	if start, err := view.ViewToDrawing(p); err == nil {
		t.last, t.started = start, true
	} else {
		slog.Debug("drag: start skipped", "error", err)
	}
	return t
}

// DragTo moves the figures so they follow the pointer to p. It reports
// whether the step was applied.
func (t *DragTracker) DragTo(p geom.Point) bool {
	cur, err := t.View.ViewToDrawing(p)
	if err != nil {
		slog.Debug("drag: step skipped", "error", err)
		return false
	}
	if !t.started {
		t.last, t.started = cur, true
		return false
	}
	dx, dy := cur.X-t.last.X, cur.Y-t.last.Y
	if dx == 0 && dy == 0 {
		return false
	}
	translate(t.figures, dx, dy)
	t.last = cur
	t.dx += dx
	t.dy += dy
	return true
}

// End finishes the drag and fires one edit for the whole move, or returns
// nil when nothing moved.
func (t *DragTracker) End() undo.Edit {
	if t.dx == 0 && t.dy == 0 {
		return nil
	}
	figs, dx, dy := t.figures, t.dx, t.dy
	e := undo.NewFuncEdit("Move",
		func() error { translate(figs, -dx, -dy); return nil },
		func() error { translate(figs, dx, dy); return nil },
	)
	t.d.FireUndoableEditHappened(e)
	return e
}

func translate(figs []figure.Figure, dx, dy float64) {
	m := geom.Translate(dx, dy)
	for _, f := range figs {
		f.WillChange()
		f.TransformBy(m)
		f.Changed()
	}
}
