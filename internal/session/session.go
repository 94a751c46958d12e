// Package session keeps open drawings in memory. A Session owns the
// monitor that serializes every mutation, render and save of its drawing,
// plus the drawing's undo history, editor defaults and worker queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/figure"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/typeid"
	"github.com/inamate/drawcore/internal/undo"
	"github.com/inamate/drawcore/internal/worker"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrDisposed = errors.New("session disposed")
)

type Options struct {
	UndoLimit   int
	IndexBounds geom.Rect
}

func (o Options) drawingOptions(mu sync.Locker) []drawing.Option {
	opts := []drawing.Option{drawing.WithLock(mu)}
	if !o.IndexBounds.IsEmpty() {
		opts = append(opts, drawing.WithIndexBounds(o.IndexBounds))
	}
	return opts
}

type Session struct {
	ID        string
	DrawingID string

	mu       sync.Mutex
	drawing  *drawing.Drawing
	history  *undo.Manager
	editor   *action.Editor
	queue    *worker.Queue
	listener figure.Listener
	// subscribers see drawing events; guarded by mu like the drawing.
	subscribers figure.Listeners

	version  int64
	saved    int64
	disposed bool
}

// New opens a session on a new empty drawing.
func New(drawingID string, opts Options) *Session {
	s := newSession(drawingID)
	d := drawing.New(append(opts.drawingOptions(&s.mu), drawing.WithID(drawingID))...)
	s.attach(d, opts)
	return s
}

// Load opens a session on a drawing decoded from a JSON document. A
// document that fails to decode is discarded.
func Load(drawingID string, data []byte, opts Options) (*Session, error) {
	s := newSession(drawingID)
	d, err := document.Unmarshal(data, opts.drawingOptions(&s.mu)...)
	if err != nil {
		return nil, fmt.Errorf("load drawing %s: %w", drawingID, err)
	}
	s.attach(d, opts)
	return s, nil
}

func newSession(drawingID string) *Session {
	return &Session{
		ID:        typeid.NewSessionID(),
		DrawingID: drawingID,
		editor:    action.NewEditor(),
	}
}

func (s *Session) attach(d *drawing.Drawing, opts Options) {
	document.InstallFormats(d)
	s.drawing = d
	s.history = undo.NewManager(opts.UndoLimit)
	d.AddUndoableEditListener(s.history)
	s.listener = figure.ListenerFunc(s.handleEvent)
	d.AddFigureListener(s.listener)
	s.queue = worker.NewQueue(s.ID)
}

// handleEvent runs with the monitor held.
func (s *Session) handleEvent(e figure.Event) {
	s.version++
	s.subscribers.Fire(e)
}

// Subscribe registers fn for the drawing's events. fn runs with the
// monitor held and must not call back into the session. The returned
// function unsubscribes.
func (s *Session) Subscribe(fn func(figure.Event)) func() {
	l := figure.ListenerFunc(fn)
	s.mu.Lock()
	s.subscribers.Add(l)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.subscribers.Remove(l)
		s.mu.Unlock()
	}
}

// Do runs fn with the monitor held. Mutations made through action
// functions land in the session's undo history.
func (s *Session) Do(fn func(d *drawing.Drawing, ed *action.Editor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	return fn(s.drawing, s.editor)
}

// Transaction is Do with every edit fired inside fn grouped into one
// undoable edit.
func (s *Session) Transaction(name string, fn func(d *drawing.Drawing, ed *action.Editor) error) error {
	return s.Do(func(d *drawing.Drawing, ed *action.Editor) error {
		s.history.Begin(name)
		defer s.history.End()
		return fn(d, ed)
	})
}

func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undo()
}

func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redo()
}

// History describes the undo state for clients.
type History struct {
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
	UndoName string `json:"undoName,omitempty"`
	RedoName string `json:"redoName,omitempty"`
}

func (s *Session) History() History {
	return History{
		CanUndo:  s.history.CanUndo(),
		CanRedo:  s.history.CanRedo(),
		UndoName: s.history.UndoName(),
		RedoName: s.history.RedoName(),
	}
}

// Render paints the figures intersecting clip, or all of them when clip
// is nil.
func (s *Session) Render(clip *geom.Rect, vp render.Viewport) *render.Recorder {
	rec := render.NewRecorder(clip, vp)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing.Draw(rec)
	return rec
}

// Export writes the drawing with the named output format.
func (s *Session) Export(format string, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.drawing.OutputFormat(format)
	if !ok {
		return fmt.Errorf("export %s: unknown format %q", s.DrawingID, format)
	}
	return f.Write(w, s.drawing)
}

// Import appends the figures read by the named input format as one
// undoable edit. Nothing is added when reading fails.
func (s *Session) Import(format string, r io.Reader) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.drawing.InputFormat(format)
	if !ok {
		return 0, fmt.Errorf("import into %s: unknown format %q", s.DrawingID, format)
	}
	scratch := drawing.New()
	if err := f.Read(r, scratch); err != nil {
		return 0, fmt.Errorf("import into %s: %w", s.DrawingID, err)
	}
	figs := scratch.Children()
	scratch.BasicRemoveAll()
	if len(figs) > 0 {
		action.AddFigures(s.drawing, nil, figs...)
	}
	return len(figs), nil
}

// Dirty reports whether the drawing changed since the last save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.saved
}

// Save writes a snapshot when the drawing is dirty. The encoding happens
// under the monitor, the store write outside it.
func (s *Session) Save(ctx context.Context, st store.Store) error {
	s.mu.Lock()
	if s.version == s.saved {
		s.mu.Unlock()
		return nil
	}
	version := s.version
	data, err := document.Marshal(s.drawing)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save %s: %w", s.DrawingID, err)
	}

	snap, err := st.SaveSnapshot(ctx, s.DrawingID, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.DrawingID, err)
	}

	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()
	slog.Debug("drawing saved", "drawing", s.DrawingID, "version", snap.Version)
	return nil
}

// Submit runs t on the session's worker queue.
func (s *Session) Submit(t worker.Task) error {
	return s.queue.Submit(t)
}

// Queue returns the session's worker queue.
func (s *Session) Queue() *worker.Queue { return s.queue }

// Dispose stops the worker queue, waits for it to drain and detaches the
// session from its drawing.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.queue.Close()
	<-s.queue.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing.RemoveFigureListener(s.listener)
	s.drawing.RemoveUndoableEditListener(s.history)
	s.history.DiscardAll()
}
