package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/drawcore/internal/store"
)

// Manager keeps one session per open drawing and autosaves dirty ones.
type Manager struct {
	store    store.Store
	opts     Options
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(st store.Store, opts Options, autosave time.Duration) *Manager {
	return &Manager{
		store:    st,
		opts:     opts,
		interval: autosave,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session of drawingID, loading the latest snapshot on
// first use. A drawing with no snapshot yet opens empty.
func (m *Manager) Open(ctx context.Context, drawingID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[drawingID]; ok {
		return s, nil
	}

	if _, err := m.store.GetDrawing(ctx, drawingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", drawingID, err)
	}

	var s *Session
	snap, err := m.store.LatestSnapshot(ctx, drawingID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s = New(drawingID, m.opts)
	case err != nil:
		return nil, fmt.Errorf("open %s: %w", drawingID, err)
	default:
		s, err = Load(drawingID, snap.Document, m.opts)
		if err != nil {
			return nil, err
		}
	}
	m.sessions[drawingID] = s
	slog.Info("session opened", "drawing", drawingID, "session", s.ID)
	return s, nil
}

// Get returns an already open session.
func (m *Manager) Get(drawingID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[drawingID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close saves and disposes the session of drawingID. It is a no-op when
// the drawing is not open.
func (m *Manager) Close(ctx context.Context, drawingID string) error {
	m.mu.Lock()
	s, ok := m.sessions[drawingID]
	delete(m.sessions, drawingID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	err := s.Save(ctx, m.store)
	s.Dispose()
	slog.Info("session closed", "drawing", drawingID)
	return err
}

// Discard disposes the session without saving, for deleted drawings.
func (m *Manager) Discard(drawingID string) {
	m.mu.Lock()
	s, ok := m.sessions[drawingID]
	delete(m.sessions, drawingID)
	m.mu.Unlock()
	if ok {
		s.Dispose()
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SaveAll saves every dirty session and returns the first error.
func (m *Manager) SaveAll(ctx context.Context) error {
	var first error
	for _, s := range m.snapshot() {
		if err := s.Save(ctx, m.store); err != nil {
			slog.Error("save drawing", "drawing", s.DrawingID, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// autosave queues a save on each dirty session's worker.
func (m *Manager) autosave() {
	for _, s := range m.snapshot() {
		if !s.Dirty() {
			continue
		}
		err := s.Submit(func(ctx context.Context) {
			if err := s.Save(ctx, m.store); err != nil {
				slog.Error("autosave failed", "drawing", s.DrawingID, "error", err)
			}
		})
		if err != nil {
			slog.Debug("autosave skipped", "drawing", s.DrawingID, "error", err)
		}
	}
}

// Run autosaves until ctx ends, then saves and closes every session.
func (m *Manager) Run(ctx context.Context) {
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ticker.C:
				m.autosave()
			case <-ctx.Done():
				break loop
			}
		}
	} else {
		<-ctx.Done()
	}
	m.Shutdown(context.Background())
}

// Shutdown saves and disposes every open session.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, s := range m.snapshot() {
		if err := m.Close(ctx, s.DrawingID); err != nil {
			slog.Error("save on shutdown", "drawing", s.DrawingID, "error", err)
		}
	}
}
