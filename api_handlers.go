package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"sqlchat/internal/agent"
	"sqlchat/internal/chat"
	"sqlchat/internal/database"
)

// APIHandler handles JSON API requests
type APIHandler struct {
	Loop  *chat.Loop
	Store *chat.Store
}

type sessionResponse struct {
	ID         string             `json:"id"`
	ContextID  string             `json:"context_id"`
	State      chat.State         `json:"state"`
	Selection  database.Selection `json:"selection"`
	Transcript []chat.Turn        `json:"transcript"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type databaseRequest struct {
	Mode string `json:"mode"`
	URI  string `json:"uri"`
}

// GetSession returns the caller's session
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, _ := chat.FromContext(r.Context())
	respondJSON(w, http.StatusOK, sessionView(s))
}

// ResetSession clears the caller's conversation
func (h *APIHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, _ := chat.FromContext(r.Context())
	s.Reset()
	respondJSON(w, http.StatusOK, sessionView(s))
}

// SendMessage runs one utterance through the turn loop
func (h *APIHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON body",
		})
		return
	}
	s, _ := chat.FromContext(r.Context())

	turn, err := h.Loop.Submit(r.Context(), s, req.Content)
	if err != nil {
		status := errorStatus(err)
		body := map[string]interface{}{
			"error": err.Error(),
		}
		if turn.Role == chat.RoleAssistant {
			body["turn"] = turn
		}
		if status >= http.StatusInternalServerError {
			slog.Error("Message failed", "session_id", s.ID, "error", err)
		}
		respondJSON(w, status, body)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"turn":              turn,
		"transcript_length": s.Len(),
	})
}

// SelectDatabase switches the database of the caller's session
func (h *APIHandler) SelectDatabase(w http.ResponseWriter, r *http.Request) {
	var req databaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid JSON body",
		})
		return
	}
	mode, err := database.ParseMode(req.Mode)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	sel := database.Sample()
	if mode == database.ModeCustomURI {
		sel = database.CustomURI(req.URI)
	}

	s, _ := chat.FromContext(r.Context())
	s.SetSelection(sel)
	h.tables(w, r, s)
}

// Tables lists the tables of the session's database
func (h *APIHandler) Tables(w http.ResponseWriter, r *http.Request) {
	s, _ := chat.FromContext(r.Context())
	h.tables(w, r, s)
}

func (h *APIHandler) tables(w http.ResponseWriter, r *http.Request, s *chat.Session) {
	handle, err := s.Handle(r.Context())
	if err != nil {
		respondJSON(w, errorStatus(err), map[string]string{
			"error": err.Error(),
		})
		return
	}
	names, err := handle.TableNames(r.Context())
	if err != nil {
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selection": s.Selection(),
		"database":  handle.String(),
		"read_only": handle.ReadOnly(),
		"tables":    names,
	})
}

func sessionView(s *chat.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		ContextID:  s.ContextID(),
		State:      s.State(),
		Selection:  s.Selection(),
		Transcript: s.Transcript(),
	}
}

// errorStatus maps turn loop errors to HTTP status codes
func errorStatus(err error) int {
	var cfgErr *agent.ConfigError
	switch {
	case errors.Is(err, chat.ErrEmptyInput), database.IsConnectionError(err):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case agent.IsAuthenticationError(err):
		return http.StatusUnauthorized
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("JSON encoding error", "error", err)
	}
}
