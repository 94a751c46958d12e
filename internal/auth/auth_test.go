package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inamate/drawcore/internal/store/sqlite"
)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(st, "test-secret", opts...)
}

func TestRegisterLogin(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	res, err := s.Register(ctx, " Ada@Example.com", "correct horse", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)

	sub, err := s.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sub)

	_, err = s.Register(ctx, "ada@example.com", "another one", "Ada 2")
	assert.True(t, errors.Is(err, ErrEmailTaken))

	_, err = s.Login(ctx, "ada@example.com", "wrong password")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = s.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	again, err := s.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, res.User, again.User)
}

func TestValidateTokenRejects(t *testing.T) {
	s := newService(t)
	res, err := s.Register(context.Background(), "a@example.com", "password1", "A")
	require.NoError(t, err)

	other := NewService(nil, "other-secret")
	_, err = other.ValidateToken(res.Token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired := newService(t, WithTokenTTL(-time.Minute))
	old, err := expired.Register(context.Background(), "b@example.com", "password1", "B")
	require.NoError(t, err)
	_, err = expired.ValidateToken(old.Token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = s.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	s := newService(t)
	res, err := s.Register(context.Background(), "a@example.com", "password1", "A")
	require.NoError(t, err)

	var seen string
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + res.Token, "", http.StatusOK},
		{"query token", "", "?token=" + res.Token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + res.Token, "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, res.User.ID, seen)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	s := newService(t)
	h := NewHandler(s)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@example.com","password":"password1","displayName":"A"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var res AuthResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@example.com","password":"password1","displayName":"A"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@example.com","password":"short","displayName":"A"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"not an address","password":"password1","displayName":"A"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@example.com","password":"wrong-one"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	h.Me(rec, req.WithContext(WithUserID(req.Context(), res.User.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	var me User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, res.User, me)

	rec = httptest.NewRecorder()
	h.Me(rec, req.WithContext(WithUserID(req.Context(), "user_gone")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
