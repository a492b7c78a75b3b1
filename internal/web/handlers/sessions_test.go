package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func createSession(t *testing.T, h *SessionsHandler, course, start string) int64 {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, jsonRequest(t, http.MethodPost, "/sessions", map[string]string{
		"course":     course,
		"start_time": start,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", rec.Code, rec.Body.String())
	}

	var session ledger.Session
	parseJSONResponse(t, rec, &session)
	if session.ID == 0 {
		t.Fatal("expected a session id")
	}
	return session.ID
}

func TestSessionsCreate(t *testing.T) {
	h := NewSessionsHandler(testLedger(t))

	rec := httptest.NewRecorder()
	h.Create(rec, jsonRequest(t, http.MethodPost, "/sessions", map[string]string{
		"course": "Math101",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", rec.Code, rec.Body.String())
	}

	var session ledger.Session
	parseJSONResponse(t, rec, &session)
	if session.Course != "Math101" || session.Status != ledger.StatusOpen {
		t.Errorf("unexpected session %+v", session)
	}
	if session.StartTime == "" {
		t.Error("start time must default to now")
	}
}

func TestSessionsCreateValidation(t *testing.T) {
	h := NewSessionsHandler(testLedger(t))

	rec := httptest.NewRecorder()
	h.Create(rec, jsonRequest(t, http.MethodPost, "/sessions", map[string]string{}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing course, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Create(rec, jsonRequest(t, http.MethodPost, "/sessions", map[string]string{
		"course":     "Math101",
		"start_time": "not-a-time",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad start_time, got %d", rec.Code)
	}
}

func TestSessionsGet(t *testing.T) {
	h := NewSessionsHandler(testLedger(t))
	id := createSession(t, h, "Math101", "2024-01-01T09:00:00")

	rec := httptest.NewRecorder()
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/sessions/1", nil),
		map[string]string{"id": strconv.FormatInt(id, 10)},
	)
	h.Get(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get failed with %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/sessions/404", nil),
		map[string]string{"id": "404"},
	))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing session, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/sessions/abc", nil),
		map[string]string{"id": "abc"},
	))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestSessionsClose(t *testing.T) {
	h := NewSessionsHandler(testLedger(t))
	id := createSession(t, h, "Math101", "2024-01-01T09:00:00")

	rec := httptest.NewRecorder()
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPost, "/sessions/1/close", nil),
		map[string]string{"id": strconv.FormatInt(id, 10)},
	)
	h.Close(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("close failed with %d: %s", rec.Code, rec.Body.String())
	}

	var session ledger.Session
	parseJSONResponse(t, rec, &session)
	if session.Status != ledger.StatusClosed {
		t.Errorf("expected closed status, got %+v", session)
	}

	rec = httptest.NewRecorder()
	h.Close(rec, requestWithChiParams(
		httptest.NewRequest(http.MethodPost, "/sessions/404/close", nil),
		map[string]string{"id": "404"},
	))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing session, got %d", rec.Code)
	}
}

func TestSessionsListAndActive(t *testing.T) {
	h := NewSessionsHandler(testLedger(t))

	rec := httptest.NewRecorder()
	h.Active(rec, httptest.NewRequest(http.MethodGet, "/sessions/active", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no sessions, got %d", rec.Code)
	}

	createSession(t, h, "Math101", "2024-01-01T09:00:00")
	second := createSession(t, h, "Physics", "2024-01-01T11:00:00")

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/sessions?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed with %d", rec.Code)
	}
	var listResp struct {
		Sessions []ledger.Session `json:"sessions"`
		Count    int              `json:"count"`
	}
	parseJSONResponse(t, rec, &listResp)
	if listResp.Count != 2 {
		t.Errorf("expected 2 sessions, got %+v", listResp)
	}

	rec = httptest.NewRecorder()
	h.Active(rec, httptest.NewRequest(http.MethodGet, "/sessions/active", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("active failed with %d", rec.Code)
	}
	var active ledger.Session
	parseJSONResponse(t, rec, &active)
	if active.ID != second {
		t.Errorf("expected most recent open session %d, got %+v", second, active)
	}
}
