package action

import (
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/undo"
)

// selected returns the figures of figs that are children of d, back to
// front, with their current indices.
func selected(d *drawing.Drawing, figs []figure.Figure) ([]figure.Figure, []int) {
	want := make(map[figure.Figure]bool, len(figs))
	for _, f := range figs {
		want[f] = true
	}
	var out []figure.Figure
	var idx []int
	for i, f := range d.Children() {
		if want[f] {
			out = append(out, f)
			idx = append(idx, i)
		}
	}
	return out, idx
}

type arrangeEdit struct {
	undo.Base
	d     *drawing.Drawing
	moved []figure.Figure
	from  []int
	front bool
}

// BringToFront moves figs to the front keeping their relative order. It
// returns nil when none of figs is a child of d.
func BringToFront(d *drawing.Drawing, figs []figure.Figure) undo.Edit {
	return arrange(d, figs, true)
}

// SendToBack moves figs to the back keeping their relative order.
func SendToBack(d *drawing.Drawing, figs []figure.Figure) undo.Edit {
	return arrange(d, figs, false)
}

func arrange(d *drawing.Drawing, figs []figure.Figure, front bool) undo.Edit {
	moved, from := selected(d, figs)
	if len(moved) == 0 {
		return nil
	}
	name := "Send to back"
	if front {
		name = "Bring to front"
	}
	e := &arrangeEdit{Base: undo.Base{Name: name}, d: d, moved: moved, from: from, front: front}
	e.apply()
	d.FireUndoableEditHappened(e)
	return e
}

func (e *arrangeEdit) apply() {
	if e.front {
		for _, f := range e.moved {
			e.d.BringToFront(f)
		}
		return
	}
	for i := len(e.moved) - 1; i >= 0; i-- {
		e.d.SendToBack(e.moved[i])
	}
}

// Undo parks the moved figures at the end, then puts each back at its old
// index in ascending order, which restores the exact previous sequence.
func (e *arrangeEdit) Undo() error {
	if err := e.Base.Undo(); err != nil {
		return err
	}
	for _, f := range e.moved {
		e.d.BringToFront(f)
	}
	for i, f := range e.moved {
		e.d.MoveTo(f, e.from[i])
	}
	return nil
}

func (e *arrangeEdit) Redo() error {
	if err := e.Base.Redo(); err != nil {
		return err
	}
	e.apply()
	return nil
}
