package undo

import (
	"log/slog"
	"sync"
)

// DefaultLimit is the number of edits kept when no limit is given.
const DefaultLimit = 100

// Manager is the undo history of one document. idx counts the edits that
// are currently applied: edits[idx-1] is undone next, edits[idx] redone
// next. The zero value keeps DefaultLimit edits.
type Manager struct {
	Limit int

	mu     sync.Mutex
	edits  []Edit
	idx    int
	group  *CompoundEdit
	depth  int
	onDone func()
}

// NewManager creates a manager keeping at most limit edits.
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{Limit: limit}
}

// OnChange registers fn to run after the history changes.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onDone = fn
	m.mu.Unlock()
}

// UndoableEditHappened records e. Inside Begin/End it joins the open group.
// Any redo tail is discarded.
func (m *Manager) UndoableEditHappened(e Edit) {
	m.mu.Lock()
	if m.group != nil {
		m.group.Add(e)
		m.mu.Unlock()
		return
	}
	m.push(e)
	fn := m.onDone
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) push(e Edit) {
	for _, dead := range m.edits[m.idx:] {
		dead.Die()
	}
	m.edits = append(m.edits[:m.idx], e)
	m.idx++
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if over := len(m.edits) - limit; over > 0 {
		for _, old := range m.edits[:over] {
			old.Die()
		}
		m.edits = append([]Edit(nil), m.edits[over:]...)
		m.idx -= over
	}
	slog.Debug("undo: edit recorded", "edit", e.PresentationName(), "depth", m.idx)
}

// Begin opens a transaction: edits until the matching End are recorded as
// one compound edit. Calls nest; only the outermost name is used.
func (m *Manager) Begin(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 {
		m.group = NewCompoundEdit(name)
	}
	m.depth++
}

// End closes a transaction. Empty transactions leave no history.
func (m *Manager) End() {
	m.mu.Lock()
	if m.depth == 0 {
		m.mu.Unlock()
		return
	}
	m.depth--
	if m.depth > 0 {
		m.mu.Unlock()
		return
	}
	g := m.group
	m.group = nil
	if g.Len() == 0 {
		m.mu.Unlock()
		return
	}
	m.push(g)
	fn := m.onDone
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx > 0 && m.edits[m.idx-1].CanUndo()
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx < len(m.edits) && m.edits[m.idx].CanRedo()
}

// UndoName returns the presentation name of the next edit to undo.
func (m *Manager) UndoName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idx == 0 {
		return ""
	}
	return m.edits[m.idx-1].PresentationName()
}

// RedoName returns the presentation name of the next edit to redo.
func (m *Manager) RedoName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idx >= len(m.edits) {
		return ""
	}
	return m.edits[m.idx].PresentationName()
}

// Undo reverts the most recent applied edit. The history position only
// moves when the edit succeeds.
func (m *Manager) Undo() error {
	m.mu.Lock()
	if m.idx == 0 {
		m.mu.Unlock()
		return ErrCannotUndo
	}
	e := m.edits[m.idx-1]
	m.mu.Unlock()

	if err := e.Undo(); err != nil {
		return err
	}

	m.mu.Lock()
	m.idx--
	fn := m.onDone
	m.mu.Unlock()
	slog.Debug("undo: undone", "edit", e.PresentationName())
	if fn != nil {
		fn()
	}
	return nil
}

// Redo re-applies the most recently undone edit.
func (m *Manager) Redo() error {
	m.mu.Lock()
	if m.idx >= len(m.edits) {
		m.mu.Unlock()
		return ErrCannotRedo
	}
	e := m.edits[m.idx]
	m.mu.Unlock()

	if err := e.Redo(); err != nil {
		return err
	}

	m.mu.Lock()
	m.idx++
	fn := m.onDone
	m.mu.Unlock()
	slog.Debug("undo: redone", "edit", e.PresentationName())
	if fn != nil {
		fn()
	}
	return nil
}

// Len returns the number of edits in the history.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edits)
}

// DiscardAll kills every edit and empties the history.
func (m *Manager) DiscardAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edits {
		e.Die()
	}
	m.edits = nil
	m.idx = 0
	m.group = nil
	m.depth = 0
}
