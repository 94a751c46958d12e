package undo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter edit: value moves between before and after.
func setEdit(name string, v *int, before, after int) *FuncEdit {
	return NewFuncEdit(name,
		func() error { *v = before; return nil },
		func() error { *v = after; return nil },
	)
}

func TestManagerUndoRedo(t *testing.T) {
	m := NewManager(10)
	v := 0

	v = 1
	m.UndoableEditHappened(setEdit("one", &v, 0, 1))
	v = 2
	m.UndoableEditHappened(setEdit("two", &v, 1, 2))

	assert.True(t, m.CanUndo())
	assert.False(t, m.CanRedo())
	assert.Equal(t, "two", m.UndoName())

	require.NoError(t, m.Undo())
	assert.Equal(t, 1, v)
	require.NoError(t, m.Undo())
	assert.Equal(t, 0, v)
	assert.ErrorIs(t, m.Undo(), ErrCannotUndo)

	require.NoError(t, m.Redo())
	assert.Equal(t, 1, v)
	assert.Equal(t, "two", m.RedoName())

	// A new edit drops the redo tail.
	v = 5
	m.UndoableEditHappened(setEdit("five", &v, 1, 5))
	assert.False(t, m.CanRedo())
	assert.Equal(t, 2, m.Len())
	assert.ErrorIs(t, m.Redo(), ErrCannotRedo)
}

func TestManagerLimit(t *testing.T) {
	m := NewManager(2)
	v := 0
	first := setEdit("a", &v, 0, 1)
	m.UndoableEditHappened(first)
	m.UndoableEditHappened(setEdit("b", &v, 1, 2))
	m.UndoableEditHappened(setEdit("c", &v, 2, 3))

	assert.Equal(t, 2, m.Len())
	assert.False(t, first.CanUndo(), "evicted edits die")
	require.NoError(t, m.Undo())
	require.NoError(t, m.Undo())
	assert.Equal(t, 1, v)
	assert.False(t, m.CanUndo())
}

func TestTransactionGroupsEdits(t *testing.T) {
	m := &Manager{}
	a, b := 0, 0

	m.Begin("move")
	a = 1
	m.UndoableEditHappened(setEdit("a", &a, 0, 1))
	m.Begin("nested")
	b = 1
	m.UndoableEditHappened(setEdit("b", &b, 0, 1))
	m.End()
	assert.Zero(t, m.Len(), "nothing recorded until the outer End")
	m.End()

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "move", m.UndoName())
	require.NoError(t, m.Undo())
	assert.Equal(t, 0, a)
	assert.Equal(t, 0, b)
	require.NoError(t, m.Redo())
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	m.Begin("empty")
	m.End()
	assert.Equal(t, 1, m.Len())
}

func TestFailedUndoKeepsPosition(t *testing.T) {
	m := NewManager(0)
	boom := errors.New("boom")
	m.UndoableEditHappened(NewFuncEdit("bad", func() error { return boom }, nil))

	err := m.Undo()
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.CanUndo())
}

func TestOnChange(t *testing.T) {
	m := NewManager(0)
	var n int
	m.OnChange(func() { n++ })
	v := 0
	m.UndoableEditHappened(setEdit("x", &v, 0, 1))
	require.NoError(t, m.Undo())
	require.NoError(t, m.Redo())
	assert.Equal(t, 3, n)

	m.DiscardAll()
	assert.Zero(t, m.Len())
	assert.False(t, m.CanUndo())
}

func TestBaseStateMachine(t *testing.T) {
	b := &Base{Name: "x"}
	assert.True(t, b.CanUndo())
	require.NoError(t, b.Undo())
	assert.ErrorIs(t, b.Undo(), ErrCannotUndo)
	require.NoError(t, b.Redo())
	b.Die()
	assert.False(t, b.CanUndo())
	assert.False(t, b.CanRedo())
}
