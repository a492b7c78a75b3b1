package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func testAttendanceHandler(t *testing.T, faces []faceapi.Detection) (*AttendanceHandler, int64) {
	t.Helper()
	store := testStore(t)
	enrollStudent(t, store, "S1", "Alice", []float32{1, 0, 0})

	l := testLedger(t)
	sessionID, err := l.CreateSession(context.Background(), "Math101", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	recognizer := attendance.NewRecognizer(
		detectServer(t, faces), nil, testMatcher(store), l,
		attendance.Config{MatchThreshold: 0.45},
	)
	return NewAttendanceHandler(recognizer, l), sessionID
}

func TestAttendanceRecognize(t *testing.T) {
	faces := []faceapi.Detection{
		{BBox: []float64{0, 0, 100, 100}, DetScore: 0.95, Embedding: []float32{1, 0, 0}},
	}
	h, sessionID := testAttendanceHandler(t, faces)

	rec := httptest.NewRecorder()
	req := frameRequest(t, http.MethodPost, "/sessions/1/recognize", []byte("frame"))
	h.Recognize(rec, requestWithChiParams(req, map[string]string{
		"id": strconv.FormatInt(sessionID, 10),
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("recognize failed with %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Faces   int                 `json:"faces"`
		Results []attendance.Result `json:"results"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Faces != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected 1 face, got %+v", resp)
	}
	if !resp.Results[0].Marked || resp.Results[0].StudentID != "S1" {
		t.Errorf("expected S1 marked, got %+v", resp.Results[0])
	}
}

func TestAttendanceRecognizeInvalidSession(t *testing.T) {
	h, _ := testAttendanceHandler(t, nil)

	rec := httptest.NewRecorder()
	req := frameRequest(t, http.MethodPost, "/sessions/abc/recognize", []byte("frame"))
	h.Recognize(rec, requestWithChiParams(req, map[string]string{"id": "abc"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric session id, got %d", rec.Code)
	}
}

func TestAttendanceBySession(t *testing.T) {
	faces := []faceapi.Detection{
		{BBox: []float64{0, 0, 100, 100}, DetScore: 0.95, Embedding: []float32{1, 0, 0}},
	}
	h, sessionID := testAttendanceHandler(t, faces)

	rec := httptest.NewRecorder()
	req := frameRequest(t, http.MethodPost, "/sessions/1/recognize", []byte("frame"))
	h.Recognize(rec, requestWithChiParams(req, map[string]string{
		"id": strconv.FormatInt(sessionID, 10),
	}))
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.BySession(rec, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/sessions/1/attendance", nil),
		map[string]string{"id": strconv.FormatInt(sessionID, 10)},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("by-session failed with %d", rec.Code)
	}

	var resp struct {
		Session ledger.Session  `json:"session"`
		Records []ledger.Record `json:"records"`
		Count   int             `json:"count"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 1 || resp.Records[0].StudentID != "S1" {
		t.Errorf("unexpected records %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.BySession(rec, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/sessions/404/attendance", nil),
		map[string]string{"id": "404"},
	))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing session, got %d", rec.Code)
	}
}

func TestAttendanceListDateValidation(t *testing.T) {
	h, _ := testAttendanceHandler(t, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/attendance?date=01-01-2024", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed date, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/attendance", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("full history listing failed with %d", rec.Code)
	}
}
