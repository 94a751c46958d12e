package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/inamate/drawcore/internal/store"
)

const (
	minPasswordLen = 8
	maxBodyBytes   = 1 << 16
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

func (c credentials) validate(register bool) string {
	switch {
	case c.Email == "" || c.Password == "":
		return "email and password are required"
	case !register:
		return ""
	case c.DisplayName == "":
		return "displayName is required"
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return "invalid email address"
	}
	if len(c.Password) < minPasswordLen {
		return "password must be at least 8 characters"
	}
	return ""
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, register bool) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return c, false
	}
	if msg := c.validate(register); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return c, false
	}
	return c, true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decode(w, r, true)
	if !ok {
		return
	}
	result, err := h.service.Register(r.Context(), c.Email, c.Password, c.DisplayName)
	if err != nil {
		handleServiceError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decode(w, r, false)
	if !ok {
		return
	}
	result, err := h.service.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		handleServiceError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func handleServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	default:
		slog.Error(op+" failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
