package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Thresholds: config.Thresholds{
			Enrollment: config.EnrollmentThresholds{
				MaxSamples:          3,
				MinConfidence:       0.60,
				MinSampleSimilarity: 0.90,
				MaxOutlierDistance:  0.40,
				QualityReference:    0.20,
			},
			Matching: config.MatchingThresholds{Threshold: 0.45},
		},
	}
}

// testStore creates an empty file-backed template store
func testStore(t *testing.T) templatestore.Store {
	t.Helper()
	store, err := templatestore.NewFileStore(filepath.Join(t.TempDir(), "templates.json"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

// testLedger creates an empty attendance ledger
func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// enrollStudent puts one template directly into the store
func enrollStudent(t *testing.T, store templatestore.Store, id, name string, embedding []float32) {
	t.Helper()
	err := store.Upsert(context.Background(), templatestore.Template{
		ID:        id,
		Name:      name,
		Embedding: embedding,
	})
	if err != nil {
		t.Fatalf("failed to enroll %s: %v", id, err)
	}
}

// detectServer creates a mock embedding service returning fixed detections
func detectServer(t *testing.T, faces []faceapi.Detection) *faceapi.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Faces []faceapi.Detection `json:"faces"`
		}{Faces: faces})
	}))
	t.Cleanup(server.Close)
	return faceapi.NewClient(server.URL)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// frameRequest creates a multipart request carrying an image frame
func frameRequest(t *testing.T, method, path string, frame []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(frame); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response %q: %v", recorder.Body.String(), err)
	}
}

// testMatcher builds a matcher over the store
func testMatcher(store templatestore.Store) *recognition.Matcher {
	return recognition.NewMatcher(store)
}
