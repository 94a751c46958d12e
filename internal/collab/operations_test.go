package collab

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/undo"
)

func decodeOp(t *testing.T, raw string) *Operation {
	t.Helper()
	var op Operation
	require.NoError(t, json.Unmarshal([]byte(raw), &op))
	return &op
}

func TestApplyOperations(t *testing.T) {
	d := drawing.New()
	history := undo.NewManager(0)
	d.AddUndoableEditListener(history)
	ed := action.NewEditor()

	require.NoError(t, applyOperation(d, ed, decodeOp(t, `{"type":"editor.defaults","attributes":{"stroke":"#112233"}}`)))

	add := decodeOp(t, `{"type":"figure.add","figures":[
		{"type":"rect","data":{"frame":{"x":0,"y":0,"width":10,"height":10}}},
		{"id":"fig_styled","type":"ellipse","attributes":{"fill":"#ff0000"},"data":{"frame":{"x":20,"y":0,"width":10,"height":10}}}
	]}`)
	require.NoError(t, applyOperation(d, ed, add))
	require.Len(t, add.Figures, 2)
	rectID := add.Figures[0].ID
	assert.NotEmpty(t, rectID)
	assert.Equal(t, "fig_styled", add.Figures[1].ID)
	assert.Equal(t, 2, d.ChildCount())

	rect := figure.FindByID(d, rectID)
	assert.Equal(t, "#112233", figure.StrokeColor.Get(rect))
	assert.Equal(t, "#000000", figure.StrokeColor.Get(d.Child(1)))

	err := applyOperation(d, ed, decodeOp(t, `{"type":"figure.add","figures":[{"id":"fig_styled","type":"rect"}]}`))
	assert.True(t, errors.Is(err, ErrDuplicateFigure))

	require.NoError(t, applyOperation(d, ed, &Operation{Type: OpMove, FigureIDs: []string{rectID}, DX: 5, DY: 5}))
	assert.Equal(t, geom.R(5, 5, 10, 10), rect.Bounds())

	require.NoError(t, applyOperation(d, ed, &Operation{Type: OpTransform, FigureIDs: []string{rectID}, Matrix: []float64{2, 0, 0, 2, 0, 0}}))
	assert.Equal(t, geom.R(10, 10, 20, 20), rect.Bounds())
	assert.Error(t, applyOperation(d, ed, &Operation{Type: OpTransform, FigureIDs: []string{rectID}, Matrix: []float64{1, 0}}))
	assert.Error(t, applyOperation(d, ed, &Operation{Type: OpTransform, FigureIDs: []string{rectID}, Matrix: []float64{0, 0, 0, 0, 0, 0}}))

	require.NoError(t, applyOperation(d, ed, &Operation{Type: OpAttributes, FigureIDs: []string{rectID}, Attributes: figure.AttributeSet{figure.Opacity: 0.25}}))
	assert.Equal(t, 0.25, figure.Opacity.Get(rect))

	require.NoError(t, applyOperation(d, ed, &Operation{Type: OpSendBack, FigureIDs: []string{"fig_styled"}}))
	assert.Equal(t, "fig_styled", d.Child(0).ID())
	require.NoError(t, applyOperation(d, ed, &Operation{Type: OpBringFront, FigureIDs: []string{"fig_styled"}}))
	assert.Equal(t, "fig_styled", d.Child(1).ID())

	dup := &Operation{Type: OpDuplicate, FigureIDs: []string{rectID}, DX: 100}
	require.NoError(t, applyOperation(d, ed, dup))
	require.Len(t, dup.Figures, 1)
	assert.NotEqual(t, rectID, dup.Figures[0].ID)
	assert.Equal(t, 3, d.ChildCount())

	require.NoError(t, applyOperation(d, ed, &Operation{Type: OpDelete, FigureIDs: []string{rectID, dup.Figures[0].ID}}))
	assert.Equal(t, 1, d.ChildCount())
	assert.NoError(t, d.CheckIndex())

	err = applyOperation(d, ed, &Operation{Type: OpDelete, FigureIDs: []string{"fig_gone"}})
	assert.True(t, errors.Is(err, ErrUnknownFigure))
	assert.Error(t, applyOperation(d, ed, &Operation{Type: OpDelete}))
	assert.True(t, errors.Is(applyOperation(d, ed, &Operation{Type: "figure.explode"}), ErrUnknownOperation))

	// Undo the delete and check the figure is back where it was.
	require.NoError(t, history.Undo())
	assert.Equal(t, 3, d.ChildCount())
	assert.Same(t, rect, figure.FindByID(d, rectID))
}

func TestAddRejectsUnknownType(t *testing.T) {
	d := drawing.New()
	op := &Operation{Type: OpAdd, Figures: []document.ObjectNode{{Type: "spline"}}}
	err := applyOperation(d, action.NewEditor(), op)
	assert.True(t, errors.Is(err, document.ErrUnknownType))
	assert.Zero(t, d.ChildCount())
}

func TestPresenceForget(t *testing.T) {
	pm := NewPresenceManager()
	pm.Update("c1", &PresencePayload{Selection: []string{"a", "b"}})
	pm.Update("c2", &PresencePayload{Selection: []string{"c"}})
	pm.Update("c3", &PresencePayload{})

	assert.Equal(t, []string{"c1"}, pm.Forget([]string{"b"}))
	p, ok := pm.Get("c1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, p.Selection)

	assert.Equal(t, []string{"c1", "c2"}, pm.Forget([]string{"a", "c"}))
	assert.Empty(t, pm.Forget([]string{"zzz"}))

	pm.Remove("c3")
	assert.Len(t, pm.GetAll(), 2)
}
