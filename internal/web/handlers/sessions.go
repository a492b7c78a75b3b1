package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// SessionsHandler manages class sessions.
type SessionsHandler struct {
	ledger *ledger.Ledger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(l *ledger.Ledger) *SessionsHandler {
	return &SessionsHandler{ledger: l}
}

// parseSessionID pulls the numeric session id out of the URL.
func parseSessionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id")
	}
	return id, nil
}

// parseSessionTime parses an optional session boundary in local time.
func parseSessionTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(ledger.TimeLayout, value, time.Local)
}

// Create opens a new session.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Course    string `json:"course"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Course == "" {
		respondError(w, http.StatusBadRequest, "course is required")
		return
	}

	start, err := parseSessionTime(req.StartTime)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_time: %v", err))
		return
	}
	end, err := parseSessionTime(req.EndTime)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid end_time: %v", err))
		return
	}

	id, err := h.ledger.CreateSession(r.Context(), req.Course, start, end)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	session, err := h.ledger.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// Get returns one session.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.ledger.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// List returns recent sessions, unfinished first.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	sessions, err := h.ledger.RecentSessions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Active returns the most recently started open session, if any.
func (h *SessionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	session, err := h.ledger.ActiveSession(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "no active session")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Close ends a session.
func (h *SessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.ledger.CloseSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	session, err := h.ledger.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, session)
}
