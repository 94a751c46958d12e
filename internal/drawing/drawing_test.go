package drawing

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/undo"
)

// memIO is an in-memory structured stream.
type memIO struct {
	opened  []string
	objects []figure.Figure
	failAt  int
}

func (m *memIO) OpenElement(name string) error {
	m.opened = append(m.opened, name)
	return nil
}

func (m *memIO) CloseElement() error { return nil }
func (m *memIO) ElementCount() int   { return len(m.objects) }

func (m *memIO) ReadObject(i int) (figure.Figure, error) {
	if m.failAt > 0 && i == m.failAt {
		return nil, io.ErrUnexpectedEOF
	}
	return m.objects[i], nil
}

func (m *memIO) WriteObject(f figure.Figure) error {
	m.objects = append(m.objects, f)
	return nil
}

type recordingEdits struct{ got []undo.Edit }

func (r *recordingEdits) UndoableEditHappened(e undo.Edit) { r.got = append(r.got, e) }

type namedFormat string

func (f namedFormat) Name() string                    { return string(f) }
func (f namedFormat) Read(io.Reader, *Drawing) error  { return nil }
func (f namedFormat) Write(io.Writer, *Drawing) error { return nil }

func TestDrawingScenario(t *testing.T) {
	d := New()
	a := figure.NewRect(0, 0, 10, 10)
	b := figure.NewRect(5, 5, 10, 10)
	d.Add(a)
	d.Add(b)

	assert.Equal(t, []figure.Figure{a, b}, d.FindFigures(geom.R(0, 0, 20, 20)))
	d.BringToFront(a)
	assert.Equal(t, []figure.Figure{b, a}, d.FindFigures(geom.R(0, 0, 20, 20)))
	assert.Same(t, a, d.FindFigure(geom.Pt(7, 7)))
	assert.True(t, d.Indexed())
	assert.NoError(t, d.CheckIndex())
	assert.Equal(t, d, a.Parent())
}

func TestReadIsSilentAndWriteKeepsOrder(t *testing.T) {
	a, b := figure.NewRect(0, 0, 1, 1), figure.NewEllipse(2, 2, 1, 1)
	in := &memIO{objects: []figure.Figure{a, b}}

	d := New()
	var events int
	d.AddFigureListener(figure.ListenerFunc(func(figure.Event) { events++ }))
	require.NoError(t, d.Read(in))
	assert.Equal(t, []string{FiguresElement}, in.opened)
	assert.Zero(t, events)
	assert.Equal(t, 2, d.ChildCount())
	assert.NoError(t, d.CheckIndex())

	d.SendToBack(b)
	out := &memIO{}
	require.NoError(t, d.Write(out))
	assert.Equal(t, []figure.Figure{b, a}, out.objects)
}

func TestReadErrorIsWrapped(t *testing.T) {
	in := &memIO{objects: []figure.Figure{figure.NewRect(0, 0, 1, 1), nil}, failAt: 1}
	err := New().Read(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "read figure 1")
}

func TestEditBroadcast(t *testing.T) {
	d := New()
	first, second := &recordingEdits{}, &recordingEdits{}
	d.AddUndoableEditListener(first)
	d.AddUndoableEditListener(second)

	e := undo.NewFuncEdit("x", nil, nil)
	d.FireUndoableEditHappened(e)
	d.RemoveUndoableEditListener(first)
	d.FireUndoableEditHappened(e)

	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 2)
}

func TestFormats(t *testing.T) {
	d := New()
	d.AddInputFormat(namedFormat("json"))
	d.SetOutputFormats([]OutputFormat{namedFormat("json"), namedFormat("svg")})

	assert.Len(t, d.InputFormats(), 1)
	assert.Len(t, d.OutputFormats(), 2)
	f, ok := d.OutputFormat("svg")
	require.True(t, ok)
	assert.Equal(t, "svg", f.Name())
	_, ok = d.InputFormat("svg")
	assert.False(t, ok)
}

func TestCanvasSize(t *testing.T) {
	d := New()
	_, ok := d.CanvasSize()
	assert.False(t, ok)

	d.SetCanvasSize(&geom.Dimension{Width: 800, Height: 600})
	size, ok := d.CanvasSize()
	require.True(t, ok)
	assert.Equal(t, 800.0, size.Width)
	assert.Equal(t, geom.R(0, 0, 800, 600), d.Bounds())

	d.SetCanvasSize(nil)
	_, ok = d.CanvasSize()
	assert.False(t, ok)
}

func TestInjectedLock(t *testing.T) {
	var mu sync.Mutex
	d := New(WithLock(&mu))
	assert.Same(t, &mu, d.Lock())

	ran := false
	d.RunLocked(func() {
		ran = true
		assert.False(t, mu.TryLock())
	})
	assert.True(t, ran)
	assert.True(t, mu.TryLock())
}

func TestCloneRebuildsIndex(t *testing.T) {
	d := New(WithID("drw_fixed"))
	a := figure.NewRect(0, 0, 10, 10)
	d.Add(a)
	d.Add(figure.NewGroup(figure.NewEllipse(5000, 5000, 10, 10)))
	d.SetCanvasSize(&geom.Dimension{Width: 100, Height: 100})

	c := d.CloneDrawing()
	assert.Equal(t, "drw_fixed", d.ID())
	assert.NotEqual(t, d.ID(), c.ID())
	assert.Equal(t, 2, c.ChildCount())
	assert.NoError(t, c.CheckIndex())
	assert.NotSame(t, a, c.Child(0))
	assert.NotNil(t, c.FindFigure(geom.Pt(5005, 5005)))

	size, ok := c.CanvasSize()
	require.True(t, ok)
	assert.Equal(t, 100.0, size.Height)

	// Mutating the clone leaves the original alone.
	c.Child(0).(*figure.RectFigure).SetFrame(geom.R(40, 40, 5, 5))
	assert.Equal(t, geom.R(0, 0, 10, 10), a.Frame)
	assert.NoError(t, c.CheckIndex())
}
