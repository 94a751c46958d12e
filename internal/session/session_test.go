package session

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateUser(ctx, &store.User{ID: "user_a", Email: "a@example.com", PasswordHash: "x", DisplayName: "A"}))
	require.NoError(t, st.CreateDrawing(ctx, &store.Drawing{ID: "drw_1", Name: "one", OwnerID: "user_a"}))
	return st
}

func addRect(t *testing.T, s *Session, x, y float64) figure.Figure {
	t.Helper()
	f := figure.NewRect(x, y, 10, 10)
	require.NoError(t, s.Do(func(d *drawing.Drawing, ed *action.Editor) error {
		action.AddFigures(d, ed, f)
		return nil
	}))
	return f
}

func TestSessionDoUndoRender(t *testing.T) {
	s := New("drw_1", Options{})
	defer s.Dispose()
	assert.False(t, s.Dirty())

	a := addRect(t, s, 0, 0)
	b := addRect(t, s, 100, 100)
	assert.True(t, s.Dirty())
	assert.True(t, s.History().CanUndo)
	assert.Equal(t, "Add", s.History().UndoName)

	rec := s.Render(nil, render.Identity)
	assert.Equal(t, []string{a.ID(), b.ID()}, rec.FigureIDs())

	clip := geom.R(90, 90, 30, 30)
	assert.Equal(t, []string{b.ID()}, s.Render(&clip, render.Identity).FigureIDs())

	require.NoError(t, s.Undo())
	assert.Equal(t, []string{a.ID()}, s.Render(nil, render.Identity).FigureIDs())
	require.NoError(t, s.Redo())
	assert.Len(t, s.Render(nil, render.Identity).FigureIDs(), 2)
}

func TestSessionInjectsMonitor(t *testing.T) {
	s := New("drw_1", Options{IndexBounds: geom.R(0, 0, 100, 100)})
	defer s.Dispose()
	require.NoError(t, s.Do(func(d *drawing.Drawing, _ *action.Editor) error {
		assert.Same(t, &s.mu, d.Lock())
		assert.False(t, s.mu.TryLock())
		b, _ := d.IndexBounds()
		assert.Equal(t, geom.R(0, 0, 100, 100), b)
		return nil
	}))
}

func TestSessionTransaction(t *testing.T) {
	s := New("drw_1", Options{})
	defer s.Dispose()
	require.NoError(t, s.Transaction("Build", func(d *drawing.Drawing, ed *action.Editor) error {
		action.AddFigures(d, ed, figure.NewRect(0, 0, 1, 1))
		action.AddFigures(d, ed, figure.NewRect(5, 5, 1, 1))
		return nil
	}))
	assert.Equal(t, "Build", s.History().UndoName)
	require.NoError(t, s.Undo())
	assert.Empty(t, s.Render(nil, render.Identity).FigureIDs())
}

func TestSessionSubscribe(t *testing.T) {
	s := New("drw_1", Options{})
	defer s.Dispose()

	var kinds []figure.EventKind
	cancel := s.Subscribe(func(e figure.Event) { kinds = append(kinds, e.Kind) })
	addRect(t, s, 0, 0)
	assert.Contains(t, kinds, figure.FigureAdded)

	cancel()
	n := len(kinds)
	addRect(t, s, 5, 5)
	assert.Len(t, kinds, n)
}

func TestSessionExportImport(t *testing.T) {
	src := New("drw_1", Options{})
	defer src.Dispose()
	addRect(t, src, 0, 0)
	addRect(t, src, 20, 20)

	var buf bytes.Buffer
	require.NoError(t, src.Export("svg", &buf))
	assert.Error(t, src.Export("png", &bytes.Buffer{}))

	dst := New("drw_2", Options{})
	defer dst.Dispose()
	n, err := dst.Import("svg", &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, dst.Render(nil, render.Identity).FigureIDs(), 2)

	require.NoError(t, dst.Undo())
	assert.Empty(t, dst.Render(nil, render.Identity).FigureIDs())

	_, err = dst.Import("svg", bytes.NewBufferString("<html/>"))
	assert.Error(t, err)
}

func TestSessionSaveAndReload(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	m := NewManager(st, Options{}, 0)

	s, err := m.Open(ctx, "drw_1")
	require.NoError(t, err)
	same, err := m.Open(ctx, "drw_1")
	require.NoError(t, err)
	assert.Same(t, s, same)

	a := addRect(t, s, 0, 0)
	require.NoError(t, m.Close(ctx, "drw_1"))
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, s.Do(func(*drawing.Drawing, *action.Editor) error { return nil }), ErrDisposed)

	snap, err := st.LatestSnapshot(ctx, "drw_1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)

	s, err = m.Open(ctx, "drw_1")
	require.NoError(t, err)
	defer m.Discard("drw_1")
	assert.False(t, s.Dirty())
	assert.Equal(t, []string{a.ID()}, s.Render(nil, render.Identity).FigureIDs())

	// Saving a clean session writes nothing.
	require.NoError(t, s.Save(ctx, st))
	snap, err = st.LatestSnapshot(ctx, "drw_1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
}

func TestManagerOpenUnknown(t *testing.T) {
	m := NewManager(openStore(t), Options{}, 0)
	_, err := m.Open(context.Background(), "drw_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = m.Get("drw_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManagerAutosaveUsesQueue(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	m := NewManager(st, Options{}, 0)
	s, err := m.Open(ctx, "drw_1")
	require.NoError(t, err)
	defer m.Discard("drw_1")

	addRect(t, s, 0, 0)
	m.autosave()
	require.NoError(t, s.Queue().Run(ctx, func(context.Context) error { return nil }))

	assert.False(t, s.Dirty())
	_, err = st.LatestSnapshot(ctx, "drw_1")
	assert.NoError(t, err)
}

func TestManagerRunSavesOnShutdown(t *testing.T) {
	st := openStore(t)
	m := NewManager(st, Options{}, 0)
	s, err := m.Open(context.Background(), "drw_1")
	require.NoError(t, err)
	addRect(t, s, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Run(ctx)

	assert.Zero(t, m.Len())
	_, err = st.LatestSnapshot(context.Background(), "drw_1")
	assert.NoError(t, err)
}

func TestLoadRejectsBadDocument(t *testing.T) {
	_, err := Load("drw_1", []byte(`{"version":1,"elements":{"figures":[{"id":"x","type":"blob"}]}}`), Options{})
	assert.Error(t, err)
}
