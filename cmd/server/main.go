package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/drawcore/internal/auth"
	"github.com/inamate/drawcore/internal/collab"
	"github.com/inamate/drawcore/internal/config"
	"github.com/inamate/drawcore/internal/drawings"
	"github.com/inamate/drawcore/internal/export"
	mw "github.com/inamate/drawcore/internal/middleware"
	"github.com/inamate/drawcore/internal/session"
	"github.com/inamate/drawcore/internal/store"
	"github.com/inamate/drawcore/internal/store/postgres"
	"github.com/inamate/drawcore/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	bounds, _ := cfg.IndexRect()
	sessions := session.NewManager(st, session.Options{UndoLimit: cfg.UndoLimit, IndexBounds: bounds}, cfg.AutosaveInterval)
	sessionsDone := make(chan struct{})
	go func() {
		sessions.Run(ctx)
		close(sessionsDone)
	}()

	authService := auth.NewService(st, cfg.JWTSecret, auth.WithTokenTTL(cfg.TokenTTL))
	authHandler := auth.NewHandler(authService)

	drawingService := drawings.NewService(st, sessions)
	drawingHandler := drawings.NewHandler(drawingService)

	hub := collab.NewHub()
	go hub.Run(ctx)

	exportHandler := export.NewHandler()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Format conversion (public, stateless)
	r.HandleFunc("/convert", exportHandler.Convert).Methods("POST", "OPTIONS")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/drawings", drawingHandler.List).Methods("GET")
	api.HandleFunc("/drawings", drawingHandler.Create).Methods("POST")
	api.HandleFunc("/drawings/{drawingId}", drawingHandler.Get).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}", drawingHandler.Delete).Methods("DELETE")
	api.HandleFunc("/drawings/{drawingId}/invite", drawingHandler.Invite).Methods("POST")
	api.HandleFunc("/drawings/{drawingId}/members", drawingHandler.ListMembers).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}/members/{userId}", drawingHandler.RemoveMember).Methods("DELETE")
	api.HandleFunc("/drawings/{drawingId}/document", drawingHandler.GetDocument).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}/render", drawingHandler.Render).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}/hit", drawingHandler.HitTest).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}/history", drawingHandler.History).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}/undo", drawingHandler.Undo).Methods("POST")
	api.HandleFunc("/drawings/{drawingId}/redo", drawingHandler.Redo).Methods("POST")
	api.HandleFunc("/drawings/{drawingId}/save", drawingHandler.Save).Methods("POST")
	api.HandleFunc("/drawings/{drawingId}/export", drawingHandler.Export).Methods("GET")
	api.HandleFunc("/drawings/{drawingId}/import", drawingHandler.Import).Methods("POST")

	// WebSocket endpoint
	r.HandleFunc("/ws/drawing/{drawingId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, drawingService, cfg.AllowedOrigins)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Disconnect clients and save every open drawing
		cancel()
		<-sessionsDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-sessionsDone
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, drawingSvc *drawings.Service, origins []string) {
	drawingID := mux.Vars(r)["drawingId"]

	// Auth via query param since browsers cannot set websocket headers
	token, ok := auth.TokenFromRequest(r)
	if !ok {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sess, err := drawingSvc.Open(r.Context(), drawingID, userID)
	if err != nil {
		switch {
		case errors.Is(err, drawings.ErrNotMember):
			http.Error(w, "not a drawing member", http.StatusForbidden)
		case errors.Is(err, drawings.ErrNotFound):
			http.Error(w, "drawing not found", http.StatusNotFound)
		default:
			slog.Error("open drawing session", "drawing", drawingID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	displayName, err := drawingSvc.DisplayName(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, sess, userID, displayName, clientID)
	client.Serve(r.Context())
}

// originPatterns strips schemes, since websocket origin patterns match
// hosts only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}
