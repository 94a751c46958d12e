// Package sqlite is the embedded store backend.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/typeid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes serialized and an in-memory db alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func isUniqueViolation(err error) bool {
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Users.

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (id, email, password_hash, display_name, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, u.ID, u.Email, u.PasswordHash, u.DisplayName, millis(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE email = ?`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*store.User, error) {
	var u store.User
	var created int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &created)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", notFound(err))
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// Drawings.

func (s *Store) CreateDrawing(ctx context.Context, d *store.Drawing) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = d.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO drawings (id, name, owner_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `, d.ID, d.Name, d.OwnerID, millis(d.CreatedAt), millis(d.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("create drawing: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO drawing_members (drawing_id, user_id, role) VALUES (?, ?, ?)
    `, d.ID, d.OwnerID, string(store.RoleOwner))
	if err != nil {
		return fmt.Errorf("add owner: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetDrawing(ctx context.Context, id string) (*store.Drawing, error) {
	var d store.Drawing
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
        SELECT id, name, owner_id, created_at, updated_at FROM drawings WHERE id = ?
    `, id).Scan(&d.ID, &d.Name, &d.OwnerID, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("get drawing: %w", notFound(err))
	}
	d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &d, nil
}

func (s *Store) ListDrawings(ctx context.Context, userID string) ([]store.Drawing, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT d.id, d.name, d.owner_id, d.created_at, d.updated_at
        FROM drawings d
        JOIN drawing_members m ON m.drawing_id = d.id
        WHERE m.user_id = ?
        ORDER BY d.updated_at DESC, d.id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	defer rows.Close()

	drawings := []store.Drawing{}
	for rows.Next() {
		var d store.Drawing
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.Name, &d.OwnerID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan drawing: %w", err)
		}
		d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)
		drawings = append(drawings, d)
	}
	return drawings, rows.Err()
}

func (s *Store) DeleteDrawing(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM snapshots WHERE drawing_id = ?`,
		`DELETE FROM drawing_members WHERE drawing_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete drawing %s: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM drawings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete drawing %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

// Members.

func (s *Store) AddMember(ctx context.Context, drawingID, userID string, role store.Role) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO drawing_members (drawing_id, user_id, role) VALUES (?, ?, ?)
        ON CONFLICT (drawing_id, user_id) DO UPDATE SET role = excluded.role
    `, drawingID, userID, string(role))
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, drawingID, userID string) (*store.Member, error) {
	var m store.Member
	var role string
	err := s.db.QueryRowContext(ctx, `
        SELECT m.user_id, m.role, u.display_name, u.email
        FROM drawing_members m JOIN users u ON u.id = m.user_id
        WHERE m.drawing_id = ? AND m.user_id = ?
    `, drawingID, userID).Scan(&m.UserID, &role, &m.DisplayName, &m.Email)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", notFound(err))
	}
	m.Role = store.Role(role)
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, drawingID string) ([]store.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT m.user_id, m.role, u.display_name, u.email
        FROM drawing_members m JOIN users u ON u.id = m.user_id
        WHERE m.drawing_id = ?
        ORDER BY u.display_name, m.user_id
    `, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []store.Member{}
	for rows.Next() {
		var m store.Member
		var role string
		if err := rows.Scan(&m.UserID, &role, &m.DisplayName, &m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = store.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) RemoveMember(ctx context.Context, drawingID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM drawing_members WHERE drawing_id = ? AND user_id = ?
    `, drawingID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Snapshots.

func (s *Store) SaveSnapshot(ctx context.Context, drawingID string, doc []byte) (*store.Snapshot, error) {
	snap := &store.Snapshot{
		ID:        typeid.NewSnapshotID(),
		DrawingID: drawingID,
		Document:  doc,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE drawings SET updated_at = ? WHERE id = ?`, millis(snap.CreatedAt), drawingID)
	if err != nil {
		return nil, fmt.Errorf("touch drawing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("save snapshot for %s: %w", drawingID, store.ErrNotFound)
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO snapshots (id, drawing_id, version, document, created_at)
        SELECT ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?
        FROM snapshots WHERE drawing_id = ?
        RETURNING version
    `, snap.ID, drawingID, doc, millis(snap.CreatedAt), drawingID).Scan(&snap.Version)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, drawingID string) (*store.Snapshot, error) {
	var snap store.Snapshot
	var created int64
	err := s.db.QueryRowContext(ctx, `
        SELECT id, drawing_id, version, document, created_at
        FROM snapshots WHERE drawing_id = ?
        ORDER BY version DESC LIMIT 1
    `, drawingID).Scan(&snap.ID, &snap.DrawingID, &snap.Version, &snap.Document, &created)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", notFound(err))
	}
	snap.CreatedAt = fromMillis(created)
	return &snap, nil
}
