package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

// enrollmentTTL is how long an enrollment session may sit idle before it is
// pruned.
const enrollmentTTL = time.Hour

// enrollSession is one in-progress enrollment. Samples accumulate in the
// collector; nothing touches the store until save.
type enrollSession struct {
	id        string
	studentID string
	name      string
	collector *recognition.Collector
	touchedAt time.Time
}

// EnrollHandler manages enrollment sessions over HTTP.
type EnrollHandler struct {
	cfg        *config.Config
	detector   *faceapi.Client
	aggregator *recognition.Aggregator
	matcher    *recognition.Matcher
	store      templatestore.Store

	mu       sync.Mutex
	sessions map[string]*enrollSession
	now      func() time.Time
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(cfg *config.Config, detector *faceapi.Client, store templatestore.Store, matcher *recognition.Matcher) *EnrollHandler {
	return &EnrollHandler{
		cfg:      cfg,
		detector: detector,
		aggregator: recognition.NewAggregator(store, recognition.AggregatorConfig{
			MaxOutlierDistance: cfg.Enrollment.MaxOutlierDistance,
			QualityReference:   cfg.Enrollment.QualityReference,
			Model:              "buffalo_l",
		}),
		matcher:  matcher,
		store:    store,
		sessions: make(map[string]*enrollSession),
		now:      time.Now,
	}
}

// Start opens a new enrollment session for a student.
func (h *EnrollHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"student_id"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.StudentID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "student_id and name are required")
		return
	}

	session := &enrollSession{
		id:        uuid.NewString(),
		studentID: req.StudentID,
		name:      req.Name,
		collector: recognition.NewCollector(
			h.cfg.Enrollment.MaxSamples,
			h.cfg.Enrollment.MinConfidence,
			h.cfg.Enrollment.MinSampleSimilarity,
		),
		touchedAt: h.now(),
	}

	h.mu.Lock()
	h.pruneLocked()
	h.sessions[session.id] = session
	h.mu.Unlock()

	log.Printf("enrollment %s started for student %s", session.id, sanitizeForLog(req.StudentID))
	respondJSON(w, http.StatusCreated, map[string]any{
		"enrollment_id": session.id,
		"student_id":    req.StudentID,
		"max_samples":   h.cfg.Enrollment.MaxSamples,
	})
}

// AddSample feeds one captured frame into an enrollment session.
func (h *EnrollHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	session := h.lookup(chi.URLParam(r, "id"))
	if session == nil {
		respondError(w, http.StatusNotFound, "enrollment session not found")
		return
	}

	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded frame")
		return
	}

	detections, err := h.detector.Detect(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("face detection failed: %v", err))
		return
	}

	candidates := make([]recognition.Candidate, len(detections))
	for i, d := range detections {
		candidates[i] = recognition.Candidate{Embedding: d.Embedding, DetScore: d.DetScore}
	}

	accepted, err := session.collector.AddFrame(candidates)

	resp := map[string]any{
		"accepted": accepted,
		"count":    session.collector.Count(),
		"progress": session.collector.Progress(),
		"complete": session.collector.IsComplete(),
	}
	if err != nil {
		// Gate rejections are expected; report the reason, keep collecting.
		resp["reason"] = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status reports an enrollment session's progress.
func (h *EnrollHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.lookup(chi.URLParam(r, "id"))
	if session == nil {
		respondError(w, http.StatusNotFound, "enrollment session not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrollment_id": session.id,
		"student_id":    session.studentID,
		"count":         session.collector.Count(),
		"progress":      session.collector.Progress(),
		"complete":      session.collector.IsComplete(),
	})
}

// Save finalizes an enrollment session into a stored template.
func (h *EnrollHandler) Save(w http.ResponseWriter, r *http.Request) {
	session := h.lookup(chi.URLParam(r, "id"))
	if session == nil {
		respondError(w, http.StatusNotFound, "enrollment session not found")
		return
	}

	template, err := h.aggregator.Finalize(r.Context(), session.collector, session.studentID, session.name)
	if err != nil {
		if errors.Is(err, recognition.ErrNoSamples) {
			respondError(w, http.StatusBadRequest, "no samples collected yet")
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save template: %v", err))
		return
	}

	// The store changed underneath the matcher; bring it up to date.
	if err := h.matcher.Reload(r.Context()); err != nil {
		log.Printf("matcher reload after enrollment failed: %v", err)
	}

	h.drop(session.id)
	log.Printf("enrollment %s saved for student %s (%d samples, quality %.2f)",
		session.id, sanitizeForLog(session.studentID), template.NumSamples, template.QualityScore)

	respondJSON(w, http.StatusOK, map[string]any{
		"student_id":    template.ID,
		"name":          template.Name,
		"num_samples":   template.NumSamples,
		"quality_score": template.QualityScore,
		"model":         template.Model,
	})
}

// Cancel discards an enrollment session without saving.
func (h *EnrollHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.lookup(id) == nil {
		respondError(w, http.StatusNotFound, "enrollment session not found")
		return
	}
	h.drop(id)
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (h *EnrollHandler) lookup(id string) *enrollSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[id]
	if !ok {
		return nil
	}
	session.touchedAt = h.now()
	return session
}

func (h *EnrollHandler) drop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// pruneLocked drops sessions idle past the TTL. Caller holds the lock.
func (h *EnrollHandler) pruneLocked() {
	cutoff := h.now().Add(-enrollmentTTL)
	for id, s := range h.sessions {
		if s.touchedAt.Before(cutoff) {
			delete(h.sessions, id)
		}
	}
}
