// ABOUTME: HTTP handlers for conversation threads and messages
// ABOUTME: Thin JSON layer over the SQLite history store

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/oakway/workbench/internal/history"
)

type threadResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func threadJSON(t *history.Thread) threadResponse {
	return threadResponse{
		ID:        t.ID,
		Title:     t.Title,
		Provider:  t.Provider,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func messageJSON(m *history.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Sender:    m.Sender,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// historyAvailable guards the thread routes when no store is configured.
func (s *Server) historyAvailable(w http.ResponseWriter) bool {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "history store not configured")
		return false
	}
	return true
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}

func (s *Server) handleThreadsList(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	threads, err := s.history.ListThreads(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("listing threads failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]threadResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleThreadCreate(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	var body struct {
		Title    string `json:"title"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "title is required")
		return
	}

	thread := &history.Thread{Title: body.Title, Provider: body.Provider}
	if err := s.history.CreateThread(r.Context(), thread); err != nil {
		s.logger.Error("creating thread failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.hub.Broadcast("thread.created", map[string]string{"id": thread.ID})
	writeJSON(w, http.StatusCreated, threadJSON(thread))
}

func (s *Server) handleThreadDetail(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	thread, err := s.history.GetThread(r.Context(), r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		s.logger.Error("fetching thread failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, threadJSON(thread))
}

func (s *Server) handleThreadDelete(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	id := r.PathValue("id")
	err := s.history.DeleteThread(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting thread failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.hub.Broadcast("thread.deleted", map[string]string{"id": id})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.history.GetThread(r.Context(), id); errors.Is(err, history.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	messages, err := s.history.ThreadMessages(r.Context(), id, queryLimit(r))
	if err != nil {
		s.logger.Error("listing messages failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMessageAppend(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	var body struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Sender == "" || body.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "sender and content are required")
		return
	}

	msg := &history.Message{
		ThreadID: r.PathValue("id"),
		Sender:   body.Sender,
		Content:  body.Content,
	}
	err := s.history.AppendMessage(r.Context(), msg)
	if errors.Is(err, history.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		s.logger.Error("appending message failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.hub.Broadcast("message.appended", map[string]string{
		"threadId": msg.ThreadID, "id": msg.ID,
	})
	writeJSON(w, http.StatusCreated, messageJSON(msg))
}
