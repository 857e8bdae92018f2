// ABOUTME: HTTP surface of the workbench host
// ABOUTME: Routes auth ceremonies, workspace files, history, and the event stream

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/oakway/workbench/internal/authcore"
	"github.com/oakway/workbench/internal/history"
)

// SessionCookieName is the cookie fallback for the bearer token.
const SessionCookieName = "workbench_session"

// Server wires the authentication core and host services to HTTP routes.
type Server struct {
	auth    *authcore.Authenticator
	history *history.Store
	roots   []string
	hub     *Hub
	logger  *slog.Logger
}

// New creates a Server. history may be nil, in which case the history
// routes respond 503.
func New(auth *authcore.Authenticator, hist *history.Store, roots []string) *Server {
	return &Server{
		auth:    auth,
		history: hist,
		roots:   roots,
		hub:     newHub(),
		logger:  slog.Default().With("component", "httpapi"),
	}
}

// Close releases server resources.
func (s *Server) Close() {
	s.hub.Close()
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no session required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /auth/enroll/begin", s.handleEnrollBegin)
	mux.HandleFunc("POST /auth/enroll/finish", s.handleEnrollFinish)
	mux.HandleFunc("POST /auth/login/begin", s.handleLoginBegin)
	mux.HandleFunc("POST /auth/login/finish", s.handleLoginFinish)

	// Session-guarded routes
	mux.HandleFunc("GET /auth/session", s.requireSession(s.handleSessionCheck))
	mux.HandleFunc("POST /auth/logout", s.requireSession(s.handleLogout))

	mux.HandleFunc("GET /api/files", s.requireSession(s.handleFilesList))
	mux.HandleFunc("GET /api/files/preview", s.requireSession(s.handleFilePreview))

	mux.HandleFunc("GET /api/threads", s.requireSession(s.handleThreadsList))
	mux.HandleFunc("POST /api/threads", s.requireSession(s.handleThreadCreate))
	mux.HandleFunc("GET /api/threads/{id}", s.requireSession(s.handleThreadDetail))
	mux.HandleFunc("DELETE /api/threads/{id}", s.requireSession(s.handleThreadDelete))
	mux.HandleFunc("GET /api/threads/{id}/messages", s.requireSession(s.handleThreadMessages))
	mux.HandleFunc("POST /api/threads/{id}/messages", s.requireSession(s.handleMessageAppend))

	mux.HandleFunc("GET /api/events", s.requireSession(s.handleEvents))

	s.logger.Info("routes registered")
}

// requireSession wraps a handler to require a valid bearer session.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" || !s.auth.ValidateSession(token) {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r)
	}
}

// sessionToken extracts the bearer token from the Authorization header,
// falling back to the session cookie for browser requests.
func sessionToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// clientSource is the rate-limit key for a request: the peer address
// without the ephemeral port.
func clientSource(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
