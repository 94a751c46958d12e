package drawings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/auth"
	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/session"
	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/store/sqlite"
)

type fixture struct {
	st       store.Store
	sessions *session.Manager
	svc      *Service
	router   *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, u := range []store.User{
		{ID: "user_owner", Email: "owner@example.com", PasswordHash: "x", DisplayName: "Owner"},
		{ID: "user_guest", Email: "guest@example.com", PasswordHash: "x", DisplayName: "Guest"},
		{ID: "user_other", Email: "other@example.com", PasswordHash: "x", DisplayName: "Other"},
	} {
		require.NoError(t, st.CreateUser(ctx, &u))
	}

	sessions := session.NewManager(st, session.Options{}, 0)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })
	svc := NewService(st, sessions)
	h := NewHandler(svc)

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID := req.Header.Get("X-User")
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), userID)))
		})
	})
	r.HandleFunc("/drawings", h.Create).Methods("POST")
	r.HandleFunc("/drawings", h.List).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}", h.Get).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}", h.Delete).Methods("DELETE")
	r.HandleFunc("/drawings/{drawingId}/members", h.Invite).Methods("POST")
	r.HandleFunc("/drawings/{drawingId}/members", h.ListMembers).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}/members/{userId}", h.RemoveMember).Methods("DELETE")
	r.HandleFunc("/drawings/{drawingId}/document", h.GetDocument).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}/render", h.Render).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}/hit", h.HitTest).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}/history", h.History).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}/undo", h.Undo).Methods("POST")
	r.HandleFunc("/drawings/{drawingId}/redo", h.Redo).Methods("POST")
	r.HandleFunc("/drawings/{drawingId}/save", h.Save).Methods("POST")
	r.HandleFunc("/drawings/{drawingId}/export", h.Export).Methods("GET")
	r.HandleFunc("/drawings/{drawingId}/import", h.Import).Methods("POST")

	return &fixture{st: st, sessions: sessions, svc: svc, router: r}
}

func (f *fixture) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("X-User", userID)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) create(t *testing.T, body string) Drawing {
	t.Helper()
	rec := f.do(t, "POST", "/drawings", "user_owner", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d Drawing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	return d
}

func TestCreateGetList(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, `{"name":"Sketch","canvas":{"width":640,"height":480}}`)
	assert.Equal(t, "Sketch", d.Name)
	assert.Equal(t, "user_owner", d.OwnerID)

	rec := f.do(t, "GET", "/drawings/"+d.ID, "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/drawings/"+d.ID, "user_other", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "GET", "/drawings", "user_owner", "")
	var list []Drawing
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)

	rec = f.do(t, "GET", "/drawings/"+d.ID+"/document", "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := document.Unmarshal(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, d.ID, doc.ID())
	size, ok := doc.CanvasSize()
	require.True(t, ok)
	assert.Equal(t, 640.0, size.Width)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/drawings", "user_owner", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/drawings", "user_owner", `{"name":"x","canvas":{"width":0,"height":1}}`).Code)
}

func TestMembership(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, `{"name":"Shared"}`)
	base := "/drawings/" + d.ID

	assert.Equal(t, http.StatusForbidden, f.do(t, "POST", base+"/members", "user_guest", `{"email":"other@example.com"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", base+"/members", "user_owner", `{"email":"nobody@example.com"}`).Code)
	require.Equal(t, http.StatusCreated, f.do(t, "POST", base+"/members", "user_owner", `{"email":"guest@example.com"}`).Code)

	rec := f.do(t, "GET", base+"/members", "user_guest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var members []Member
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&members))
	assert.Len(t, members, 2)

	assert.Equal(t, http.StatusForbidden, f.do(t, "DELETE", base+"/members/user_owner", "user_owner", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", base+"/members/user_guest", "user_owner", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "GET", base, "user_guest", "").Code)
}

func TestRenderHitAndUndo(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, `{"name":"Sample","sample":true}`)
	base := "/drawings/" + d.ID

	rec := f.do(t, "GET", base+"/render", "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []render.DrawCommand
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.NotEmpty(t, all)

	rec = f.do(t, "GET", base+"/render?x=150&y=150&w=100&h=100&scale=2", "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var clipped []render.DrawCommand
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&clipped))
	assert.NotEmpty(t, clipped)
	assert.Less(t, len(clipped), len(all))
	assert.Equal(t, []float64{2, 0, 0, 2, 0, 0}, clipped[0].Transform)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", base+"/render?scale=big", "user_owner", "").Code)

	rec = f.do(t, "GET", base+"/hit?x=500&y=380", "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hit hitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hit))
	assert.NotEmpty(t, hit.FigureID)
	assert.NotEqual(t, hit.FigureID, hit.InsideID)

	rec = f.do(t, "GET", base+"/hit?x=5&y=5", "user_owner", "")
	var miss hitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&miss))
	assert.Equal(t, hitResponse{}, miss)

	assert.Equal(t, http.StatusConflict, f.do(t, "POST", base+"/undo", "user_owner", "").Code)

	svg := `<svg xmlns="http://www.w3.org/2000/svg"><rect x="1" y="1" width="5" height="5"/><circle cx="20" cy="20" r="2"/></svg>`
	rec = f.do(t, "POST", base+"/import?format=svg", "user_owner", svg)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported":2}`, rec.Body.String())

	rec = f.do(t, "GET", base+"/history", "user_owner", "")
	var hist session.History
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	assert.True(t, hist.CanUndo)
	assert.False(t, hist.CanRedo)

	rec = f.do(t, "POST", base+"/undo", "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	assert.True(t, hist.CanRedo)

	require.Equal(t, http.StatusOK, f.do(t, "POST", base+"/redo", "user_owner", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", base+"/import?format=svg", "user_owner", "<html/>").Code)
}

func TestExportAndSave(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, `{"name":"Sample","sample":true}`)
	base := "/drawings/" + d.ID

	rec := f.do(t, "GET", base+"/export?format=svg", "user_owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), d.ID+".svg")
	assert.Contains(t, rec.Body.String(), "<svg")

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", base+"/export?format=pdf", "user_owner", "").Code)

	svg := `<svg xmlns="http://www.w3.org/2000/svg"><rect x="1" y="1" width="5" height="5"/></svg>`
	require.Equal(t, http.StatusOK, f.do(t, "POST", base+"/import?format=svg", "user_owner", svg).Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", base+"/save", "user_owner", "").Code)

	snap, err := f.st.LatestSnapshot(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Version)
	doc, err := document.Unmarshal(snap.Document)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.ChildCount())
}

func TestDeleteDiscardsSession(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, `{"name":"Doomed"}`)
	base := "/drawings/" + d.ID

	require.Equal(t, http.StatusOK, f.do(t, "GET", base+"/history", "user_owner", "").Code)
	assert.Equal(t, 1, f.sessions.Len())

	require.Equal(t, http.StatusCreated, f.do(t, "POST", base+"/members", "user_owner", `{"email":"guest@example.com"}`).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "DELETE", base, "user_guest", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", base, "user_owner", "").Code)
	assert.Zero(t, f.sessions.Len())
	assert.Equal(t, http.StatusNotFound, f.do(t, "DELETE", base, "user_owner", "").Code)
}
