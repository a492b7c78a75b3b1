package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/faceapi"
)

func startEnrollment(t *testing.T, h *EnrollHandler, studentID, name string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(t, http.MethodPost, "/enroll", map[string]string{
		"student_id": studentID,
		"name":       name,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("start failed with %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		EnrollmentID string `json:"enrollment_id"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.EnrollmentID == "" {
		t.Fatal("expected an enrollment id")
	}
	return resp.EnrollmentID
}

func addSample(t *testing.T, h *EnrollHandler, enrollmentID string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := frameRequest(t, http.MethodPost, "/enroll/"+enrollmentID+"/samples", []byte("frame"))
	h.AddSample(rec, requestWithChiParams(req, map[string]string{"id": enrollmentID}))
	return rec
}

func TestEnrollStartValidation(t *testing.T) {
	store := testStore(t)
	h := NewEnrollHandler(testConfig(), detectServer(t, nil), store, testMatcher(store))

	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(t, http.MethodPost, "/enroll", map[string]string{"name": "Alice"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing student_id, got %d", rec.Code)
	}
}

func TestEnrollAddSampleUnknownSession(t *testing.T) {
	store := testStore(t)
	h := NewEnrollHandler(testConfig(), detectServer(t, nil), store, testMatcher(store))

	rec := addSample(t, h, "no-such-id")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown enrollment, got %d", rec.Code)
	}
}

func TestEnrollAddSampleAccepted(t *testing.T) {
	store := testStore(t)
	detector := detectServer(t, []faceapi.Detection{
		{BBox: []float64{0, 0, 100, 100}, DetScore: 0.95, Embedding: []float32{1, 0, 0}},
	})
	h := NewEnrollHandler(testConfig(), detector, store, testMatcher(store))
	id := startEnrollment(t, h, "S1", "Alice")

	rec := addSample(t, h, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accepted bool    `json:"accepted"`
		Count    int     `json:"count"`
		Progress float64 `json:"progress"`
		Complete bool    `json:"complete"`
	}
	parseJSONResponse(t, rec, &resp)
	if !resp.Accepted || resp.Count != 1 || resp.Complete {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestEnrollAddSampleRejectsMultipleFaces(t *testing.T) {
	store := testStore(t)
	detector := detectServer(t, []faceapi.Detection{
		{DetScore: 0.95, Embedding: []float32{1, 0, 0}},
		{DetScore: 0.90, Embedding: []float32{0, 1, 0}},
	})
	h := NewEnrollHandler(testConfig(), detector, store, testMatcher(store))
	id := startEnrollment(t, h, "S1", "Alice")

	rec := addSample(t, h, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("gate rejections are not HTTP errors, got %d", rec.Code)
	}

	var resp struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Accepted || resp.Reason == "" {
		t.Errorf("expected rejection with reason, got %+v", resp)
	}
}

func TestEnrollSaveWithoutSamples(t *testing.T) {
	store := testStore(t)
	h := NewEnrollHandler(testConfig(), detectServer(t, nil), store, testMatcher(store))
	id := startEnrollment(t, h, "S1", "Alice")

	rec := httptest.NewRecorder()
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPost, "/enroll/"+id+"/save", nil),
		map[string]string{"id": id},
	)
	h.Save(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty enrollment, got %d", rec.Code)
	}
}

func TestEnrollFullFlow(t *testing.T) {
	store := testStore(t)
	matcher := testMatcher(store)
	detector := detectServer(t, []faceapi.Detection{
		{BBox: []float64{0, 0, 100, 100}, DetScore: 0.95, Embedding: []float32{1, 0, 0}},
	})
	h := NewEnrollHandler(testConfig(), detector, store, matcher)
	id := startEnrollment(t, h, "S1", "Alice")

	if rec := addSample(t, h, id); rec.Code != http.StatusOK {
		t.Fatalf("add sample failed: %s", rec.Body.String())
	}

	rec := httptest.NewRecorder()
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPost, "/enroll/"+id+"/save", nil),
		map[string]string{"id": id},
	)
	h.Save(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save failed with %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		StudentID  string `json:"student_id"`
		Name       string `json:"name"`
		NumSamples int    `json:"num_samples"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.StudentID != "S1" || resp.Name != "Alice" || resp.NumSamples != 1 {
		t.Errorf("unexpected saved template %+v", resp)
	}

	if store.Get("S1") == nil {
		t.Error("template must be persisted")
	}
	if matcher.Count() != 1 {
		t.Error("matcher must be reloaded after save")
	}

	// The enrollment session is gone after a successful save.
	statusRec := httptest.NewRecorder()
	statusReq := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/enroll/"+id, nil),
		map[string]string{"id": id},
	)
	h.Status(statusRec, statusReq)
	if statusRec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after save, got %d", statusRec.Code)
	}
}

func TestEnrollCancel(t *testing.T) {
	store := testStore(t)
	h := NewEnrollHandler(testConfig(), detectServer(t, nil), store, testMatcher(store))
	id := startEnrollment(t, h, "S1", "Alice")

	rec := httptest.NewRecorder()
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/enroll/"+id, nil),
		map[string]string{"id": id},
	)
	h.Cancel(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel failed with %d", rec.Code)
	}

	// Cancelling twice reports not found.
	rec = httptest.NewRecorder()
	h.Cancel(rec, requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/enroll/"+id, nil),
		map[string]string{"id": id},
	))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for cancelled enrollment, got %d", rec.Code)
	}
}
