package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, id, email string) *store.User {
	t.Helper()
	u := &store.User{ID: id, Email: email, PasswordHash: "hash", DisplayName: id}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	u := seedUser(t, s, "user_a", "a@example.com")

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	_, err = s.GetUserByID(ctx, "user_missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	err = s.CreateUser(ctx, &store.User{ID: "user_b", Email: "a@example.com"})
	assert.True(t, errors.Is(err, store.ErrDuplicate))
}

func TestDrawingsAndMembers(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	seedUser(t, s, "user_a", "a@example.com")
	seedUser(t, s, "user_b", "b@example.com")

	d := &store.Drawing{ID: "drw_1", Name: "First", OwnerID: "user_a"}
	require.NoError(t, s.CreateDrawing(ctx, d))

	m, err := s.GetMember(ctx, "drw_1", "user_a")
	require.NoError(t, err)
	assert.Equal(t, store.RoleOwner, m.Role)

	_, err = s.GetMember(ctx, "drw_1", "user_b")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.AddMember(ctx, "drw_1", "user_b", store.RoleEditor))
	members, err := s.ListMembers(ctx, "drw_1")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	list, err := s.ListDrawings(ctx, "user_b")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "First", list[0].Name)

	require.NoError(t, s.RemoveMember(ctx, "drw_1", "user_b"))
	assert.True(t, errors.Is(s.RemoveMember(ctx, "drw_1", "user_b"), store.ErrNotFound))

	list, err = s.ListDrawings(ctx, "user_b")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSnapshotsVersion(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	seedUser(t, s, "user_a", "a@example.com")
	require.NoError(t, s.CreateDrawing(ctx, &store.Drawing{ID: "drw_1", Name: "x", OwnerID: "user_a"}))

	_, err := s.LatestSnapshot(ctx, "drw_1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	first, err := s.SaveSnapshot(ctx, "drw_1", []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	second, err := s.SaveSnapshot(ctx, "drw_1", []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	latest, err := s.LatestSnapshot(ctx, "drw_1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.JSONEq(t, `{"v":2}`, string(latest.Document))

	_, err = s.SaveSnapshot(ctx, "drw_missing", []byte(`{}`))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDeleteDrawingCascades(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	seedUser(t, s, "user_a", "a@example.com")
	require.NoError(t, s.CreateDrawing(ctx, &store.Drawing{ID: "drw_1", Name: "x", OwnerID: "user_a"}))
	_, err := s.SaveSnapshot(ctx, "drw_1", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, s.DeleteDrawing(ctx, "drw_1"))
	_, err = s.GetDrawing(ctx, "drw_1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.LatestSnapshot(ctx, "drw_1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteDrawing(ctx, "drw_1"), store.ErrNotFound))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "draw.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	seedUser(t, s, "user_a", "a@example.com")
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetUserByID(context.Background(), "user_a")
	assert.NoError(t, err)
}
