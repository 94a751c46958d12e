package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
)

func sampleEngine(t *testing.T) (*Engine, []string) {
	t.Helper()
	e := NewEngine(0)
	e.LoadSampleDocument()
	ids := make([]string, 0, 4)
	for _, f := range e.drawing.Children() {
		ids = append(ids, f.ID())
	}
	require.Len(t, ids, 4)
	return e, ids
}

func commands(t *testing.T, e *Engine, full bool) []render.DrawCommand {
	t.Helper()
	out, err := e.Render(full)
	require.NoError(t, err)
	var cmds []render.DrawCommand
	require.NoError(t, json.Unmarshal([]byte(out), &cmds))
	return cmds
}

func TestRenderTracksDamage(t *testing.T) {
	e, ids := sampleEngine(t)
	assert.True(t, e.NeedsRender())
	all := commands(t, e, false)
	assert.NotEmpty(t, all)
	assert.False(t, e.NeedsRender())
	assert.Empty(t, commands(t, e, false))

	e.SetSelection([]string{ids[0]})
	require.NoError(t, e.ApplyAttributes(`{"fill":"#ffffff"}`))
	assert.True(t, e.NeedsRender())
	partial := commands(t, e, false)
	assert.NotEmpty(t, partial)
	assert.Less(t, len(partial), len(all))

	assert.Len(t, commands(t, e, true), len(all))
}

func TestSelectAtAndHitTestUseViewport(t *testing.T) {
	e, ids := sampleEngine(t)
	e.SetViewport(render.Viewport{Scale: 0.5, OffsetX: 10})

	// Drawing point (300, 275) lies in the rectangle.
	assert.Equal(t, ids[0], e.HitTest(160, 137.5))
	assert.Equal(t, ids[0], e.SelectAt(160, 137.5, false))
	assert.Equal(t, []string{ids[0]}, e.Selection())

	assert.Equal(t, ids[1], e.SelectAt(330, 180, true))
	assert.Equal(t, []string{ids[0], ids[1]}, e.Selection())
	e.SelectAt(330, 180, true)
	assert.Equal(t, []string{ids[0]}, e.Selection())

	assert.Equal(t, "", e.SelectAt(0, 0, false))
	assert.Empty(t, e.Selection())

	e.SetViewport(render.Viewport{})
	assert.Equal(t, "", e.HitTest(160, 137.5))
}

func TestDragIsOneUndoableMove(t *testing.T) {
	e, ids := sampleEngine(t)
	rect := figure.FindByID(e.drawing, ids[0])
	before := rect.Bounds()

	require.True(t, e.BeginDrag(300, 275))
	assert.Equal(t, []string{ids[0]}, e.Selection())
	assert.True(t, e.DragTo(310, 275))
	assert.True(t, e.DragTo(320, 285))
	e.EndDrag()
	assert.Equal(t, before.Translate(20, 10), rect.Bounds())
	assert.Equal(t, before.Translate(20, 10), e.SelectionBounds())

	h := e.History()
	assert.True(t, h.CanUndo)
	assert.Equal(t, "Move", h.UndoName)

	require.NoError(t, e.Undo())
	assert.Equal(t, before, rect.Bounds())
	assert.False(t, e.History().CanUndo)
	require.NoError(t, e.Redo())
	assert.Equal(t, before.Translate(20, 10), rect.Bounds())

	e.SetSelection(nil)
	assert.False(t, e.BeginDrag(5, 5))
	assert.False(t, e.DragTo(10, 10))
}

func TestSelectionEdits(t *testing.T) {
	e, ids := sampleEngine(t)

	e.SetSelection([]string{ids[3], "fig_unknown", ids[3]})
	assert.Equal(t, []string{ids[3]}, e.Selection())
	e.SendToBack()
	assert.Equal(t, ids[3], e.drawing.Child(0).ID())
	e.BringToFront()
	assert.Equal(t, ids[3], e.drawing.Child(3).ID())

	e.DuplicateSelection(10, 10)
	assert.Equal(t, 5, e.FigureCount())
	require.Len(t, e.Selection(), 1)
	assert.NotEqual(t, ids[3], e.Selection()[0])

	e.DeleteSelection()
	assert.Equal(t, 4, e.FigureCount())
	assert.Empty(t, e.Selection())

	require.NoError(t, e.SelectArea(geom.R(150, 150, 300, 250)))
	assert.Equal(t, []string{ids[0]}, e.Selection())

	// Removing a selected figure through undo drops it from the selection.
	e.SetSelection([]string{ids[0]})
	e.DeleteSelection()
	require.NoError(t, e.Undo())
	e.SetSelection([]string{ids[0]})
	require.NoError(t, e.Redo())
	assert.Empty(t, e.Selection())
}

func TestApplyAttributesWithoutSelectionSetsDefaults(t *testing.T) {
	e := NewEngine(0)
	require.NoError(t, e.ApplyAttributes(`{"stroke":"#123456"}`))
	v, ok := e.editor.DefaultAttribute(figure.StrokeColor)
	require.True(t, ok)
	assert.Equal(t, "#123456", v)
	assert.Error(t, e.ApplyAttributes(`{"nonsense":1}`))
}

func TestLoadExportImport(t *testing.T) {
	src := document.NewSampleDrawing()
	data, err := document.Marshal(src)
	require.NoError(t, err)

	e := NewEngine(10)
	require.NoError(t, e.LoadDocument(string(data)))
	assert.Equal(t, 4, e.FigureCount())
	assert.Error(t, e.LoadDocument("{"))
	assert.Equal(t, 4, e.FigureCount())

	svg, err := e.Export("svg")
	require.NoError(t, err)
	assert.Contains(t, svg, "<svg")
	_, err = e.Export("pdf")
	assert.Error(t, err)

	n, err := e.ImportSVG(`<svg><rect x="0" y="0" width="2" height="2"/></svg>`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, e.FigureCount())
	require.NoError(t, e.Undo())
	assert.Equal(t, 4, e.FigureCount())
}
