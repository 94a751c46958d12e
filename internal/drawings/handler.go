package drawings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inamate/drawcore/internal/action"
	"github.com/inamate/drawcore/internal/auth"
	"github.com/inamate/drawcore/internal/drawing"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
	"github.com/inamate/drawcore/internal/session"
	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/undo"
)

const maxImportSize = 8 << 20

type Handler struct {
	service *Service
	store   store.Store
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, store: service.store}
}

type createRequest struct {
	Name   string          `json:"name"`
	Canvas *geom.Dimension `json:"canvas,omitempty"`
	Sample bool            `json:"sample,omitempty"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

type hitResponse struct {
	FigureID string `json:"figureId,omitempty"`
	InsideID string `json:"insideId,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Canvas != nil && (req.Canvas.Width <= 0 || req.Canvas.Height <= 0) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "canvas must have a positive size"})
		return
	}

	d, err := h.service.Create(r.Context(), userID, CreateParams{Name: req.Name, Canvas: req.Canvas, Sample: req.Sample})
	if err != nil {
		slog.Error("create drawing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]

	d, err := h.service.Get(r.Context(), drawingID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("list drawings failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]

	if err := h.service.Delete(r.Context(), drawingID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	if err := h.service.InviteByEmail(r.Context(), drawingID, userID, req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "invited"})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]

	members, err := h.service.ListMembers(r.Context(), drawingID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]
	targetUserID := mux.Vars(r)["userId"]

	if err := h.service.RemoveMember(r.Context(), drawingID, userID, targetUserID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]

	doc, err := h.service.LatestDocument(r.Context(), drawingID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// Render returns the draw commands for the figures in the requested
// region. Without x, y, w and h the whole drawing is painted.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}

	q := newQuery(r)
	vp := render.Viewport{
		Scale:   q.float("scale", 1),
		OffsetX: q.float("ox", 0),
		OffsetY: q.float("oy", 0),
	}
	var clip *geom.Rect
	if r.URL.Query().Has("w") {
		rect := geom.R(q.float("x", 0), q.float("y", 0), q.float("w", 0), q.float("h", 0))
		clip = &rect
	}
	if q.err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": q.err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sess.Render(clip, vp).Commands)
}

// HitTest reports the top-most figure at a drawing point and the
// innermost leaf under it.
func (h *Handler) HitTest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}

	q := newQuery(r)
	p := geom.Pt(q.float("x", 0), q.float("y", 0))
	if q.err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": q.err.Error()})
		return
	}

	var resp hitResponse
	err := sess.Do(func(d *drawing.Drawing, _ *action.Editor) error {
		if f := d.FindFigure(p); f != nil {
			resp.FigureID = f.ID()
		}
		if f := d.FindFigureInside(p); f != nil {
			resp.InsideID = f.ID()
		}
		return nil
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.History())
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*session.Session).Undo)
}

func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*session.Session).Redo)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		if errors.Is(err, undo.ErrCannotUndo) || errors.Is(err, undo.ErrCannotRedo) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.History())
}

// Save writes a snapshot of the open session when it has unsaved edits.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := sess.Save(r.Context(), h.store); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	format := formatParam(r)

	var buf bytes.Buffer
	if err := sess.Export(format, &buf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.DrawingID+"."+format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Import appends the figures of an uploaded document to the drawing as
// one undoable edit.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.openSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	n, err := sess.Import(formatParam(r), r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	userID := auth.UserIDFromContext(r.Context())
	drawingID := mux.Vars(r)["drawingId"]

	sess, err := h.service.Open(r.Context(), drawingID, userID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return sess, true
}

func formatParam(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	return "json"
}

func contentType(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// query parses float parameters, keeping the first error.
type query struct {
	r   *http.Request
	err error
}

func newQuery(r *http.Request) *query { return &query{r: r} }

func (q *query) float(name string, def float64) float64 {
	s := q.r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && q.err == nil {
		q.err = fmt.Errorf("invalid %s: %q", name, s)
	}
	return v
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrNoUser):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrNotMember):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a drawing member"})
	case errors.Is(err, session.ErrDisposed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "drawing was closed"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
