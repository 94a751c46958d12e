// Package postgres is the PostgreSQL store backend.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/typeid"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to databaseURL, checks the connection and applies the
// schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Users.

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	err := s.pool.QueryRow(ctx, `
        INSERT INTO users (id, email, password_hash, display_name)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at
    `, u.ID, u.Email, u.PasswordHash, u.DisplayName).Scan(&u.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE email = $1`, email)
}

func (s *Store) getUser(ctx context.Context, query, arg string) (*store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", notFound(err))
	}
	return &u, nil
}

// Drawings.

func (s *Store) CreateDrawing(ctx context.Context, d *store.Drawing) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO drawings (id, name, owner_id)
            VALUES ($1, $2, $3)
            RETURNING created_at, updated_at
        `, d.ID, d.Name, d.OwnerID).Scan(&d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return store.ErrDuplicate
			}
			return fmt.Errorf("create drawing: %w", err)
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO drawing_members (drawing_id, user_id, role) VALUES ($1, $2, $3)
        `, d.ID, d.OwnerID, string(store.RoleOwner))
		if err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
}

func (s *Store) GetDrawing(ctx context.Context, id string) (*store.Drawing, error) {
	var d store.Drawing
	err := s.pool.QueryRow(ctx, `
        SELECT id, name, owner_id, created_at, updated_at FROM drawings WHERE id = $1
    `, id).Scan(&d.ID, &d.Name, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get drawing: %w", notFound(err))
	}
	return &d, nil
}

func (s *Store) ListDrawings(ctx context.Context, userID string) ([]store.Drawing, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT d.id, d.name, d.owner_id, d.created_at, d.updated_at
        FROM drawings d
        JOIN drawing_members m ON m.drawing_id = d.id
        WHERE m.user_id = $1
        ORDER BY d.updated_at DESC, d.id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	drawings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Drawing, error) {
		var d store.Drawing
		err := row.Scan(&d.ID, &d.Name, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	return drawings, nil
}

func (s *Store) DeleteDrawing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drawings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete drawing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Members.

func (s *Store) AddMember(ctx context.Context, drawingID, userID string, role store.Role) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO drawing_members (drawing_id, user_id, role) VALUES ($1, $2, $3)
        ON CONFLICT (drawing_id, user_id) DO UPDATE SET role = EXCLUDED.role
    `, drawingID, userID, string(role))
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, drawingID, userID string) (*store.Member, error) {
	var m store.Member
	var role string
	err := s.pool.QueryRow(ctx, `
        SELECT m.user_id, m.role, u.display_name, u.email
        FROM drawing_members m JOIN users u ON u.id = m.user_id
        WHERE m.drawing_id = $1 AND m.user_id = $2
    `, drawingID, userID).Scan(&m.UserID, &role, &m.DisplayName, &m.Email)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", notFound(err))
	}
	m.Role = store.Role(role)
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, drawingID string) ([]store.Member, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT m.user_id, m.role, u.display_name, u.email
        FROM drawing_members m JOIN users u ON u.id = m.user_id
        WHERE m.drawing_id = $1
        ORDER BY u.display_name, m.user_id
    `, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Member, error) {
		var m store.Member
		var role string
		err := row.Scan(&m.UserID, &role, &m.DisplayName, &m.Email)
		m.Role = store.Role(role)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *Store) RemoveMember(ctx context.Context, drawingID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
        DELETE FROM drawing_members WHERE drawing_id = $1 AND user_id = $2
    `, drawingID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Snapshots.

func (s *Store) SaveSnapshot(ctx context.Context, drawingID string, doc []byte) (*store.Snapshot, error) {
	snap := &store.Snapshot{ID: typeid.NewSnapshotID(), DrawingID: drawingID, Document: doc}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Locks the drawing row so concurrent saves get distinct versions.
		tag, err := tx.Exec(ctx, `UPDATE drawings SET updated_at = now() WHERE id = $1`, drawingID)
		if err != nil {
			return fmt.Errorf("touch drawing: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("save snapshot for %s: %w", drawingID, store.ErrNotFound)
		}
		err = tx.QueryRow(ctx, `
            INSERT INTO snapshots (id, drawing_id, version, document)
            SELECT $1::text, $2::text, COALESCE(MAX(version), 0) + 1, $3::jsonb
            FROM snapshots WHERE drawing_id = $2::text
            RETURNING version, created_at
        `, snap.ID, drawingID, doc).Scan(&snap.Version, &snap.CreatedAt)
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, drawingID string) (*store.Snapshot, error) {
	var snap store.Snapshot
	err := s.pool.QueryRow(ctx, `
        SELECT id, drawing_id, version, document, created_at
        FROM snapshots WHERE drawing_id = $1
        ORDER BY version DESC LIMIT 1
    `, drawingID).Scan(&snap.ID, &snap.DrawingID, &snap.Version, &snap.Document, &snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", notFound(err))
	}
	snap.CreatedAt = snap.CreatedAt.UTC()
	return &snap, nil
}
