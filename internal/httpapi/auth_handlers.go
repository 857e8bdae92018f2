// ABOUTME: HTTP handlers for the WebAuthn enrollment and login ceremonies
// ABOUTME: Maps authcore error kinds to stable JSON error responses

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oakway/workbench/internal/authcore"
)

// ceremonyFinishRequest is the body of both finish endpoints: the opaque
// challenge id from the begin call plus the browser's raw credential
// response, passed through unparsed.
type ceremonyFinishRequest struct {
	ChallengeID string          `json:"challengeId"`
	Response    json.RawMessage `json:"response"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enrolled": s.auth.IsEnrolled()})
}

func (s *Server) handleEnrollBegin(w http.ResponseWriter, r *http.Request) {
	req := authcore.FromHTTPRequest(r, clientSource(r))
	challenge, err := s.auth.BeginEnrollment(req)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (s *Server) handleEnrollFinish(w http.ResponseWriter, r *http.Request) {
	var body ceremonyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := authcore.FromHTTPRequest(r, clientSource(r))
	token, err := s.auth.FinishEnrollment(req, body.Response, body.ChallengeID)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.hub.Broadcast("session.created", nil)
	s.writeSession(w, r, token)
}

func (s *Server) handleLoginBegin(w http.ResponseWriter, r *http.Request) {
	req := authcore.FromHTTPRequest(r, clientSource(r))
	challenge, err := s.auth.BeginLogin(req)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (s *Server) handleLoginFinish(w http.ResponseWriter, r *http.Request) {
	var body ceremonyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := authcore.FromHTTPRequest(r, clientSource(r))
	token, err := s.auth.FinishLogin(req, body.Response, body.ChallengeID)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.hub.Broadcast("session.created", nil)
	s.writeSession(w, r, token)
}

func (s *Server) handleSessionCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	s.auth.RevokeSession(token)
	s.hub.Broadcast("session.revoked", nil)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSession returns the bearer token and also sets it as a cookie so
// browser clients need no token plumbing.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// writeAuthError maps authcore error kinds to HTTP statuses. Messages
// are the stable sentinel texts; internal detail never leaks.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrNotEnrolled):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authcore.ErrChallengeInvalid),
		errors.Is(err, authcore.ErrVerificationFailed),
		errors.Is(err, authcore.ErrUnknownCredential):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, authcore.ErrRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, authcore.ErrStoreWrite):
		s.logger.Error("credential write failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, authcore.ErrStoreWrite.Error())
	default:
		s.logger.Error("auth operation failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
