// Package store persists users, drawings, memberships and document
// snapshots. Backends live in the sqlite and postgres subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

type Drawing struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
)

type Member struct {
	UserID      string
	Role        Role
	DisplayName string
	Email       string
}

// Snapshot is one saved version of a drawing's JSON document. Versions
// start at 1 and increase per drawing.
type Snapshot struct {
	ID        string
	DrawingID string
	Version   int
	Document  []byte
	CreatedAt time.Time
}

type Store interface {
	// CreateUser fails with ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateDrawing also makes the owner a member.
	CreateDrawing(ctx context.Context, d *Drawing) error
	GetDrawing(ctx context.Context, id string) (*Drawing, error)
	// ListDrawings returns the drawings userID is a member of, most
	// recently updated first.
	ListDrawings(ctx context.Context, userID string) ([]Drawing, error)
	// DeleteDrawing removes the drawing with its members and snapshots.
	DeleteDrawing(ctx context.Context, id string) error

	AddMember(ctx context.Context, drawingID, userID string, role Role) error
	GetMember(ctx context.Context, drawingID, userID string) (*Member, error)
	ListMembers(ctx context.Context, drawingID string) ([]Member, error)
	RemoveMember(ctx context.Context, drawingID, userID string) error

	// SaveSnapshot stores doc as the next version and bumps the drawing's
	// update time.
	SaveSnapshot(ctx context.Context, drawingID string, doc []byte) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, drawingID string) (*Snapshot, error)

	Close() error
}
