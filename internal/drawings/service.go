// Package drawings manages drawing records, membership and the HTTP
// surface for editing open drawings.
package drawings

import (
	"context"
	"errors"
	"fmt"

	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/session"
	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/typeid"
)

var (
	ErrNotFound  = errors.New("drawing not found")
	ErrForbidden = errors.New("forbidden")
	ErrNotMember = errors.New("not a drawing member")
	ErrNoUser    = errors.New("user not found")
)

type Service struct {
	store    store.Store
	sessions *session.Manager
}

func NewService(st store.Store, sessions *session.Manager) *Service {
	return &Service{store: st, sessions: sessions}
}

type Drawing struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Member struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type CreateParams struct {
	Name   string
	Canvas *geom.Dimension
	// Sample seeds the drawing with the built-in example figures.
	Sample bool
}

// Create stores a drawing owned by ownerID with an initial snapshot.
func (s *Service) Create(ctx context.Context, ownerID string, p CreateParams) (*Drawing, error) {
	id := typeid.NewDrawingID()
	rec := &store.Drawing{ID: id, Name: p.Name, OwnerID: ownerID}
	if err := s.store.CreateDrawing(ctx, rec); err != nil {
		return nil, fmt.Errorf("create drawing: %w", err)
	}

	var d *drawing.Drawing
	if p.Sample {
		d = document.NewSampleDrawing(drawing.WithID(id))
	} else {
		d = drawing.New(drawing.WithID(id))
	}
	if p.Canvas != nil {
		d.SetCanvasSize(p.Canvas)
	}
	data, err := document.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal initial document: %w", err)
	}
	if _, err := s.store.SaveSnapshot(ctx, id, data); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}
	return toDrawing(rec), nil
}

func (s *Service) Get(ctx context.Context, drawingID, userID string) (*Drawing, error) {
	if err := s.CheckAccess(ctx, drawingID, userID); err != nil {
		return nil, err
	}
	rec, err := s.getDrawing(ctx, drawingID)
	if err != nil {
		return nil, err
	}
	return toDrawing(rec), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Drawing, error) {
	recs, err := s.store.ListDrawings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	out := make([]Drawing, len(recs))
	for i := range recs {
		out[i] = *toDrawing(&recs[i])
	}
	return out, nil
}

// Delete removes a drawing. Only the owner may delete; an open session is
// dropped without saving.
func (s *Service) Delete(ctx context.Context, drawingID, userID string) error {
	if _, err := s.ownedDrawing(ctx, drawingID, userID); err != nil {
		return err
	}
	s.sessions.Discard(drawingID)
	if err := s.store.DeleteDrawing(ctx, drawingID); err != nil {
		return fmt.Errorf("delete drawing: %w", err)
	}
	return nil
}

func (s *Service) InviteByEmail(ctx context.Context, drawingID, ownerID, inviteeEmail string) error {
	if _, err := s.ownedDrawing(ctx, drawingID, ownerID); err != nil {
		return err
	}
	invitee, err := s.store.GetUserByEmail(ctx, inviteeEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoUser
		}
		return fmt.Errorf("find user: %w", err)
	}
	return s.store.AddMember(ctx, drawingID, invitee.ID, store.RoleEditor)
}

func (s *Service) ListMembers(ctx context.Context, drawingID, userID string) ([]Member, error) {
	if err := s.CheckAccess(ctx, drawingID, userID); err != nil {
		return nil, err
	}
	recs, err := s.store.ListMembers(ctx, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members := make([]Member, len(recs))
	for i, m := range recs {
		members[i] = Member{UserID: m.UserID, Role: string(m.Role), DisplayName: m.DisplayName, Email: m.Email}
	}
	return members, nil
}

func (s *Service) RemoveMember(ctx context.Context, drawingID, ownerID, targetUserID string) error {
	if _, err := s.ownedDrawing(ctx, drawingID, ownerID); err != nil {
		return err
	}
	if targetUserID == ownerID {
		return fmt.Errorf("cannot remove the owner: %w", ErrForbidden)
	}
	if err := s.store.RemoveMember(ctx, drawingID, targetUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// LatestDocument returns the current JSON document. An open session is
// saved first so the result reflects unsaved edits.
func (s *Service) LatestDocument(ctx context.Context, drawingID, userID string) ([]byte, error) {
	if err := s.CheckAccess(ctx, drawingID, userID); err != nil {
		return nil, err
	}
	if sess, err := s.sessions.Get(drawingID); err == nil {
		if err := sess.Save(ctx, s.store); err != nil {
			return nil, err
		}
	}
	snap, err := s.store.LatestSnapshot(ctx, drawingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap.Document, nil
}

// Open returns the editing session of a drawing userID may access.
func (s *Service) Open(ctx context.Context, drawingID, userID string) (*session.Session, error) {
	if err := s.CheckAccess(ctx, drawingID, userID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Open(ctx, drawingID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// CheckAccess reports ErrNotMember unless userID belongs to the drawing.
func (s *Service) CheckAccess(ctx context.Context, drawingID, userID string) error {
	_, err := s.store.GetMember(ctx, drawingID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("check membership: %w", err)
	}
	return nil
}

// DisplayName returns the user's display name.
func (s *Service) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	return u.DisplayName, nil
}

func (s *Service) getDrawing(ctx context.Context, drawingID string) (*store.Drawing, error) {
	if !typeid.HasPrefix(drawingID, typeid.PrefixDrawing) {
		return nil, ErrNotFound
	}
	rec, err := s.store.GetDrawing(ctx, drawingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get drawing: %w", err)
	}
	return rec, nil
}

func (s *Service) ownedDrawing(ctx context.Context, drawingID, userID string) (*store.Drawing, error) {
	rec, err := s.getDrawing(ctx, drawingID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != userID {
		return nil, ErrForbidden
	}
	return rec, nil
}

const timeLayout = "2006-01-02T15:04:05Z"

func toDrawing(d *store.Drawing) *Drawing {
	return &Drawing{
		ID:        d.ID,
		Name:      d.Name,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: d.UpdatedAt.UTC().Format(timeLayout),
	}
}
