// Package engine is the single-user editor core that runs next to the
// canvas: it owns a drawing, its undo history, the selection and the
// viewport, and answers render and hit queries.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/undo"
)

var ErrUnknownFormat = errors.New("unknown format")

// Engine is not safe for concurrent use; the browser drives it from one
// goroutine.
type Engine struct {
	drawing  *drawing.Drawing
	history  *undo.Manager
	editor   *action.Editor
	listener figure.Listener

	view      render.Viewport
	selection []figure.Figure
	drag      *action.DragTracker

	// Area needing repaint since the last Render, in drawing coordinates.
	damage     geom.Extent
	fullRedraw bool
}

// NewEngine creates an engine with an empty drawing.
func NewEngine(undoLimit int) *Engine {
	e := &Engine{
		history: undo.NewManager(undoLimit),
		editor:  action.NewEditor(),
		view:    render.Identity,
	}
	e.listener = figure.ListenerFunc(e.handleEvent)
	d := drawing.New()
	document.InstallFormats(d)
	e.attach(d)
	return e
}

func (e *Engine) attach(d *drawing.Drawing) {
	if e.drawing != nil {
		e.drawing.RemoveFigureListener(e.listener)
		e.drawing.RemoveUndoableEditListener(e.history)
	}
	e.drawing = d
	d.AddFigureListener(e.listener)
	d.AddUndoableEditListener(e.history)
	e.history.DiscardAll()
	e.selection = nil
	e.drag = nil
	e.fullRedraw = true
}

func (e *Engine) handleEvent(ev figure.Event) {
	area, ok := ev.Area, ev.Area != (geom.Rect{})
	if !ok && ev.Figure != nil {
		area, ok = ev.Figure.DrawingArea(), true
	}
	if !ok && ev.Source != nil && ev.Source != figure.Figure(e.drawing) {
		area, ok = ev.Source.DrawingArea(), true
	}
	if ok {
		e.damage.Add(area)
	}
	if ev.Kind == figure.FigureRemoved && ev.Figure != nil {
		e.selection = slices.DeleteFunc(e.selection, func(f figure.Figure) bool { return f == ev.Figure })
	}
}

// --- Commands (frontend → engine) ---

// LoadDocument replaces the drawing with a JSON document.
func (e *Engine) LoadDocument(jsonData string) error {
	d, err := document.Unmarshal([]byte(jsonData))
	if err != nil {
		return err
	}
	document.InstallFormats(d)
	e.attach(d)
	return nil
}

// LoadSampleDocument loads the built-in sample drawing.
func (e *Engine) LoadSampleDocument() {
	e.attach(document.NewSampleDrawing())
}

// ImportSVG appends the figures of an SVG document as one undoable edit.
func (e *Engine) ImportSVG(svg string) (int, error) {
	scratch := drawing.New()
	if err := (document.SVGFormat{}).Read(strings.NewReader(svg), scratch); err != nil {
		return 0, err
	}
	figs := scratch.Children()
	scratch.BasicRemoveAll()
	action.AddFigures(e.drawing, nil, figs...)
	return len(figs), nil
}

func (e *Engine) SetViewport(v render.Viewport) {
	if v != e.view {
		e.view = v
		e.fullRedraw = true
	}
}

func (e *Engine) Viewport() render.Viewport { return e.view }

// SetSelection selects the figures with the given ids. Unknown ids are
// ignored.
func (e *Engine) SetSelection(ids []string) {
	e.selection = e.selection[:0]
	for _, id := range ids {
		if f := figure.FindByID(e.drawing, id); f != nil && !slices.Contains(e.selection, f) {
			e.selection = append(e.selection, f)
		}
	}
}

// SelectAt selects the top-most figure at the view point. With extend the
// figure is toggled in the current selection instead. It returns the hit
// figure's id, or "" when nothing was hit.
func (e *Engine) SelectAt(vx, vy float64, extend bool) string {
	f := e.figureAt(vx, vy)
	switch {
	case f == nil && !extend:
		e.selection = nil
	case f == nil:
	case !extend:
		e.selection = []figure.Figure{f}
	case slices.Contains(e.selection, f):
		e.selection = slices.DeleteFunc(e.selection, func(s figure.Figure) bool { return s == f })
	default:
		e.selection = append(e.selection, f)
	}
	if f == nil {
		return ""
	}
	return f.ID()
}

// SelectArea selects the figures entirely inside the view rectangle.
func (e *Engine) SelectArea(r geom.Rect) error {
	a, err := e.view.ViewToDrawing(geom.Pt(r.X, r.Y))
	if err != nil {
		return err
	}
	b, err := e.view.ViewToDrawing(geom.Pt(r.MaxX(), r.MaxY()))
	if err != nil {
		return err
	}
	e.selection = e.drawing.FindFiguresWithin(geom.RectFromPoints(a, b))
	return nil
}

// BeginDrag starts moving the selection from a view point. When the point
// is over an unselected figure that figure becomes the selection first.
func (e *Engine) BeginDrag(vx, vy float64) bool {
	if f := e.figureAt(vx, vy); f != nil && !slices.Contains(e.selection, f) {
		e.selection = []figure.Figure{f}
	}
	if len(e.selection) == 0 {
		return false
	}
	e.drag = action.BeginDrag(e.drawing, e.view, e.selection, geom.Pt(vx, vy))
	return true
}

func (e *Engine) DragTo(vx, vy float64) bool {
	if e.drag == nil {
		return false
	}
	return e.drag.DragTo(geom.Pt(vx, vy))
}

// EndDrag records the whole drag as one undoable move.
func (e *Engine) EndDrag() {
	if e.drag != nil {
		e.drag.End()
		e.drag = nil
	}
}

// ApplyAttributes sets attributes, given as a JSON object keyed by
// attribute name, on the selection.
func (e *Engine) ApplyAttributes(jsonData string) error {
	var attrs figure.AttributeSet
	if err := json.Unmarshal([]byte(jsonData), &attrs); err != nil {
		return err
	}
	if len(e.selection) == 0 {
		for k, v := range attrs {
			if err := e.editor.SetDefaultAttribute(k, v); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := action.ApplyAttributes(e.drawing, e.editor, attrs, e.selection)
	return err
}

func (e *Engine) BringToFront() { action.BringToFront(e.drawing, e.selection) }
func (e *Engine) SendToBack()   { action.SendToBack(e.drawing, e.selection) }

func (e *Engine) DeleteSelection() {
	action.Delete(e.drawing, e.selection)
	e.selection = nil
}

// DuplicateSelection copies the selection offset by (dx, dy) and selects
// the copies.
func (e *Engine) DuplicateSelection(dx, dy float64) {
	if clones, _ := action.Duplicate(e.drawing, e.selection, dx, dy); len(clones) > 0 {
		e.selection = clones
	}
}

func (e *Engine) Undo() error { return e.history.Undo() }
func (e *Engine) Redo() error { return e.history.Redo() }

// --- Queries (engine → frontend) ---

// Render returns the draw commands for the damaged area as JSON, or for
// everything after a load or viewport change. full forces a complete
// repaint.
func (e *Engine) Render(full bool) (string, error) {
	var clip *geom.Rect
	if !full && !e.fullRedraw {
		if e.damage.Empty() {
			return "[]", nil
		}
		area := e.damage.Rect()
		clip = &area
	}
	rec := render.NewRecorder(clip, e.view)
	e.drawing.Draw(rec)
	e.damage.Reset()
	e.fullRedraw = false
	return rec.JSON()
}

// NeedsRender reports whether anything changed since the last Render.
func (e *Engine) NeedsRender() bool {
	return e.fullRedraw || !e.damage.Empty()
}

// HitTest returns the id of the top-most figure at the view point.
func (e *Engine) HitTest(vx, vy float64) string {
	if f := e.figureAt(vx, vy); f != nil {
		return f.ID()
	}
	return ""
}

func (e *Engine) figureAt(vx, vy float64) figure.Figure {
	p, err := e.view.ViewToDrawing(geom.Pt(vx, vy))
	if err != nil {
		return nil
	}
	return e.drawing.FindFigure(p)
}

// SelectionBounds returns the selection's bounds in view coordinates.
func (e *Engine) SelectionBounds() geom.Rect {
	var ext geom.Extent
	for _, f := range e.selection {
		ext.Add(f.Bounds())
	}
	if ext.Empty() {
		return geom.Rect{}
	}
	return e.view.Matrix().TransformRect(ext.Rect())
}

func (e *Engine) Selection() []string {
	ids := make([]string, len(e.selection))
	for i, f := range e.selection {
		ids[i] = f.ID()
	}
	return ids
}

type HistoryState struct {
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
	UndoName string `json:"undoName,omitempty"`
	RedoName string `json:"redoName,omitempty"`
}

func (e *Engine) History() HistoryState {
	return HistoryState{
		CanUndo:  e.history.CanUndo(),
		CanRedo:  e.history.CanRedo(),
		UndoName: e.history.UndoName(),
		RedoName: e.history.RedoName(),
	}
}

// Export writes the drawing with the named format.
func (e *Engine) Export(format string) (string, error) {
	out, ok := e.drawing.OutputFormat(format)
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	var b strings.Builder
	if err := out.Write(&b, e.drawing); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *Engine) FigureCount() int { return e.drawing.ChildCount() }
