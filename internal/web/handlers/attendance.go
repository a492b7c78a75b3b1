package handlers

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// AttendanceHandler exposes the recognition flow and attendance reports.
type AttendanceHandler struct {
	recognizer *attendance.Recognizer
	ledger     *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(recognizer *attendance.Recognizer, l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{recognizer: recognizer, ledger: l}
}

// Recognize runs the full pipeline on one uploaded frame and marks every
// matched identity present in the session.
func (h *AttendanceHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded frame")
		return
	}

	results, err := h.recognizer.Recognize(r.Context(), id, frame)
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("recognition failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"faces":      len(results),
		"results":    results,
	})
}

// BySession returns a session's attendance records in arrival order.
func (h *AttendanceHandler) BySession(w http.ResponseWriter, r *http.Request) {
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

	records, err := h.ledger.AttendanceBySession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"records": records,
		"count":   len(records),
	})
}

// List returns attendance records, filtered by date when ?date=YYYY-MM-DD
// is given, otherwise the full history most recent first.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	var (
		records []ledger.Record
		err     error
	)
	if date != "" {
		if !datePattern.MatchString(date) {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		records, err = h.ledger.AttendanceByDate(r.Context(), date)
	} else {
		records, err = h.ledger.AllAttendance(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}
