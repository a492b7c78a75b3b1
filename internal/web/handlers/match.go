package handlers

import (
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// MatchHandler identifies faces without touching the ledger. Useful for
// verifying enrollments and tuning the threshold.
type MatchHandler struct {
	detector  *faceapi.Client
	matcher   *recognition.Matcher
	threshold float64
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(detector *faceapi.Client, matcher *recognition.Matcher, threshold float64) *MatchHandler {
	return &MatchHandler{detector: detector, matcher: matcher, threshold: threshold}
}

type matchResult struct {
	BBox       []float64 `json:"bbox"`
	StudentID  string    `json:"student_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Similarity float64   `json:"similarity"`
	Matched    bool      `json:"matched"`
}

// Match detects all faces in the uploaded frame and identifies each one.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
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

	results := make([]matchResult, 0, len(detections))
	for _, d := range detections {
		if len(d.Embedding) == 0 {
			results = append(results, matchResult{BBox: d.BBox})
			continue
		}
		m := h.matcher.Match(d.Embedding, h.threshold)
		results = append(results, matchResult{
			BBox:       d.BBox,
			StudentID:  m.StudentID,
			Name:       m.Name,
			Similarity: m.Similarity,
			Matched:    m.Matched,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces":   len(results),
		"results": results,
	})
}
