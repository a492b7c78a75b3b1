package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

// studentSummary is a template without its embedding; the raw vector stays
// out of API responses.
type studentSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	NumSamples   int     `json:"num_samples"`
	QualityScore float64 `json:"quality_score"`
	Model        string  `json:"model,omitempty"`
	CreatedDate  string  `json:"created_date"`
}

func summarize(t templatestore.Template) studentSummary {
	return studentSummary{
		ID:           t.ID,
		Name:         t.Name,
		NumSamples:   t.NumSamples,
		QualityScore: t.QualityScore,
		Model:        t.Model,
		CreatedDate:  t.CreatedDate,
	}
}

// StudentsHandler exposes the enrolled roster.
type StudentsHandler struct {
	store   templatestore.Store
	matcher *recognition.Matcher
}

// NewStudentsHandler creates a new roster handler.
func NewStudentsHandler(store templatestore.Store, matcher *recognition.Matcher) *StudentsHandler {
	return &StudentsHandler{store: store, matcher: matcher}
}

// List returns all enrolled students in enrollment order.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	templates := h.store.Templates()
	students := make([]studentSummary, len(templates))
	for i, t := range templates {
		students[i] = summarize(t)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": students,
		"count":    len(students),
	})
}

// Get returns one enrolled student.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := h.store.Get(chi.URLParam(r, "id"))
	if t == nil {
		respondError(w, http.StatusNotFound, "student not enrolled")
		return
	}
	respondJSON(w, http.StatusOK, summarize(*t))
}

// Search finds students whose name contains the query, ignoring case and
// diacritics.
func (h *StudentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := templatestore.NormalizeName(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	students := []studentSummary{}
	for _, t := range h.store.Templates() {
		if strings.Contains(templatestore.NormalizeName(t.Name), query) {
			students = append(students, summarize(t))
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": students,
		"count":    len(students),
	})
}

// Delete removes a student's template and refreshes the matcher.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found, err := h.store.Delete(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "student not enrolled")
		return
	}

	if err := h.matcher.Reload(r.Context()); err != nil {
		log.Printf("matcher reload after delete failed: %v", err)
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}
