// Package attendance wires the recognition pipeline to the session ledger:
// detect faces in a frame, gate them on liveness, match them against the
// enrolled templates and mark the winners present.
package attendance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// Reasons reported for faces that did not result in a mark.
const (
	ReasonNoEmbedding     = "no embedding extracted"
	ReasonSpoofSuspected  = "liveness check failed"
	ReasonBelowThreshold  = "similarity below threshold"
	ReasonCooldown        = "recently marked, cooldown active"
	ReasonSessionInactive = "session not active"
)

// Result describes what happened to one detected face.
type Result struct {
	StudentID  string  `json:"student_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Similarity float64 `json:"similarity"`
	Matched    bool    `json:"matched"`
	Marked     bool    `json:"marked"`
	Reason     string  `json:"reason,omitempty"`
}

// Config holds the recognizer thresholds.
type Config struct {
	MatchThreshold        float64
	LivenessMinConfidence float64
	MarkCooldown          time.Duration
}

// Recognizer runs the attendance flow for one camera/operator. It throttles
// repeated marks per student locally; the ledger's uniqueness constraint is
// the real idempotency guarantee.
type Recognizer struct {
	detector *faceapi.Client
	liveness *faceapi.LivenessClient // nil disables the liveness gate
	matcher  *recognition.Matcher
	ledger   *ledger.Ledger
	cfg      Config

	mu       sync.Mutex
	lastMark map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewRecognizer wires the attendance flow. liveness may be nil when no
// classifier is configured.
func NewRecognizer(detector *faceapi.Client, liveness *faceapi.LivenessClient, matcher *recognition.Matcher, ldg *ledger.Ledger, cfg Config) *Recognizer {
	return &Recognizer{
		detector: detector,
		liveness: liveness,
		matcher:  matcher,
		ledger:   ldg,
		cfg:      cfg,
		lastMark: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Recognize detects all faces in the frame and attempts to mark each
// matched identity present in the session. One result is returned per
// detected face; a frame with no faces yields an empty slice.
func (r *Recognizer) Recognize(ctx context.Context, sessionID int64, frame []byte) ([]Result, error) {
	detections, err := r.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	results := make([]Result, 0, len(detections))
	for _, det := range detections {
		results = append(results, r.processFace(ctx, sessionID, frame, det))
	}
	return results, nil
}

func (r *Recognizer) processFace(ctx context.Context, sessionID int64, frame []byte, det faceapi.Detection) Result {
	if len(det.Embedding) == 0 {
		return Result{Reason: ReasonNoEmbedding}
	}

	if r.liveness != nil {
		if !r.isLive(ctx, frame, det) {
			return Result{Reason: ReasonSpoofSuspected}
		}
	}

	match := r.matcher.Match(det.Embedding, r.cfg.MatchThreshold)
	if !match.Matched {
		return Result{Similarity: match.Similarity, Reason: ReasonBelowThreshold}
	}

	result := Result{
		StudentID:  match.StudentID,
		Name:       match.Name,
		Similarity: match.Similarity,
		Matched:    true,
	}

	if r.onCooldown(match.StudentID) {
		result.Reason = ReasonCooldown
		return result
	}

	marked, err := r.ledger.MarkAttendance(ctx, sessionID, match.StudentID, "present")
	if err != nil {
		log.Printf("attendance: marking %s failed: %v", match.StudentID, err)
		result.Reason = err.Error()
		return result
	}
	if !marked {
		result.Reason = ReasonSessionInactive
		return result
	}

	result.Marked = true
	r.rememberMark(match.StudentID)
	return result
}

// isLive crops the face region and asks the classifier. Classifier errors
// degrade to letting the face through; spoofing defense must not take the
// whole attendance flow down with it.
func (r *Recognizer) isLive(ctx context.Context, frame []byte, det faceapi.Detection) bool {
	region, err := faceapi.CropFace(frame, det.BBox)
	if err != nil {
		log.Printf("attendance: face crop failed: %v (skipping liveness check)", err)
		return true
	}

	verdict, err := r.liveness.Classify(ctx, region)
	if err != nil {
		log.Printf("attendance: liveness classify failed: %v (skipping liveness check)", err)
		return true
	}

	return !(verdict.Label == faceapi.LabelFake && verdict.Confidence >= r.cfg.LivenessMinConfidence)
}

func (r *Recognizer) onCooldown(studentID string) bool {
	if r.cfg.MarkCooldown <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastMark[studentID]
	return ok && r.now().Sub(last) < r.cfg.MarkCooldown
}

func (r *Recognizer) rememberMark(studentID string) {
	if r.cfg.MarkCooldown <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastMark[studentID] = r.now()
}
