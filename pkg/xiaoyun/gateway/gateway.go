// Package gateway is the HTTP surface: the webhook callback, health and
// admin endpoints, and the static audio host.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/session"
)

// EventHandler runs one conversation turn per inbound event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev line.Event) error
}

// Server serves the webhook, admin and audio endpoints.
type Server struct {
	channelSecret string
	adminToken    string
	audioDir      string
	handler       EventHandler
	sessions      session.Store
	logger        *slog.Logger
}

// NewServer wires the HTTP surface.
func NewServer(channelSecret, adminToken, audioDir string, handler EventHandler, sessions session.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		channelSecret: channelSecret,
		adminToken:    adminToken,
		audioDir:      audioDir,
		handler:       handler,
		sessions:      sessions,
		logger:        logger.With("component", "gateway"),
	}
}

// Routes builds the HTTP handler with access logging applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /callback", s.handleCallback)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /admin/sessions", s.requireAdmin(s.handleSessionStats))
	mux.HandleFunc("DELETE /admin/sessions/{id}", s.requireAdmin(s.handleClearSession))

	// Routes kept for operators used to the original deployment.
	mux.HandleFunc("GET /clear_memory/{id}", s.requireAdmin(s.handleClearSessionLegacy))
	mux.HandleFunc("GET /memory_status", s.requireAdmin(s.handleSessionStats))

	if s.audioDir != "" {
		mux.Handle("GET /audio/", http.StripPrefix("/audio/",
			http.FileServer(http.Dir(s.audioDir))))
	}

	return s.accessLog(mux)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ---------- Handlers ----------

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	events, err := line.ParseWebhook(s.channelSecret, body, signature)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			s.logger.Warn("webhook signature rejected")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		s.logger.Warn("webhook body unparsable", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Events are processed synchronously and independently; one failed
	// turn must not block the rest of the batch.
	for _, ev := range events {
		if err := s.handler.HandleEvent(r.Context(), ev); err != nil {
			s.logger.Error("event handling failed",
				"kind", ev.Kind, "user", ev.UserID, "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sessions.Stats(r.Context())
	if err != nil {
		s.logger.Error("session stats failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_users": len(infos),
		"sessions":    infos,
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if err := s.sessions.Clear(r.Context(), userID); err != nil {
		s.logger.Error("session clear failed", "user", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("session cleared", "user", userID)
	writeJSON(w, http.StatusOK, map[string]string{"cleared": userID})
}

func (s *Server) handleClearSessionLegacy(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if err := s.sessions.Clear(r.Context(), userID); err != nil {
		s.logger.Error("session clear failed", "user", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("session cleared", "user", userID)
	fmt.Fprintf(w, "已清除用戶 %s 的對話記憶", userID)
}

// ---------- Middleware ----------

// requireAdmin guards an endpoint with the configured admin token. With no
// token configured the admin surface is disabled entirely rather than left
// open.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			http.Error(w, "admin surface disabled", http.StatusForbidden)
			return
		}
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Debug("writing response failed", "error", err)
	}
}
