package incidentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/incident"
	"github.com/linnemanlabs/sift/internal/planner"
)

// mockService implements TriageService for testing.
type mockService struct {
	submitResult *planner.SubmitResult
	submitErr    error
	runs         map[string]*planner.Run
	getErr       error
	submitted    []*incident.Incident
}

func newMockService() *mockService {
	return &mockService{
		submitResult: &planner.SubmitResult{ID: "run-1"},
		runs:         make(map[string]*planner.Run),
	}
}

func (m *mockService) Submit(_ context.Context, in *incident.Incident) (*planner.SubmitResult, error) {
	m.submitted = append(m.submitted, in)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.submitResult, nil
}

func (m *mockService) Get(_ context.Context, id string) (*planner.Run, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.runs[id]
	return r, ok, nil
}

func (m *mockService) Status() planner.SystemStatus {
	return planner.SystemStatus{Analyzers: []string{"logscan", "alarmscan", "summary"}}
}

func newTestRouter(t *testing.T, svc TriageService, limits Limits) chi.Router {
	t.Helper()
	api := New(nil, svc, limits)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, newMockService(), Limits{})
	if api == nil {
		t.Fatal("New returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), newMockService(), Limits{})
	if api == nil || api.logger == nil {
		t.Fatal("New with logger produced a broken API")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil, Limits{})
}

func TestSubmitIncident(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"POST valid incident", http.MethodPost, `{"incident_id":"inc-1","description":"checkout down","logs":["ERROR timeout"]}`, http.StatusAccepted},
		{"POST invalid JSON", http.MethodPost, `{bad`, http.StatusBadRequest},
		{"GET not allowed", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"PUT not allowed", http.MethodPut, "", http.StatusMethodNotAllowed},
		{"DELETE not allowed", http.MethodDelete, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(t, newMockService(), Limits{})
			req := httptest.NewRequest(tt.method, "/api/v1/incidents", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s /api/v1/incidents = %d, want %d", tt.method, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSubmitIncident_ReturnsRunID(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	r := newTestRouter(t, svc, Limits{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents",
		strings.NewReader(`{"incident_id":"inc-7","logs":["ERROR x"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "run-1" {
		t.Errorf("id = %v, want run-1", resp["id"])
	}
	if len(svc.submitted) != 1 || svc.submitted[0].ID != "inc-7" {
		t.Errorf("submitted = %+v, want the decoded incident", svc.submitted)
	}
}

func TestSubmitIncident_PayloadLimits(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(), Limits{MaxLogLines: 2, MaxAlarms: 1})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"within limits", `{"logs":["a","b"],"alarms":[{"alarm_id":"a1"}]}`, http.StatusAccepted},
		{"too many logs", `{"logs":["a","b","c"]}`, http.StatusRequestEntityTooLarge},
		{"too many alarms", `{"alarms":[{"alarm_id":"a1"},{"alarm_id":"a2"}]}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSubmitIncident_ServiceError(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	svc.submitErr = errors.New("store down")
	r := newTestRouter(t, svc, Limits{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	svc.runs["run-9"] = &planner.Run{
		ID:         "run-9",
		IncidentID: "inc-9",
		Status:     planner.StatusComplete,
		Report:     &planner.Report{Success: true, IncidentID: "inc-9"},
	}
	r := newTestRouter(t, svc, Limits{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/run-9", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var run planner.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != "run-9" || run.Status != planner.StatusComplete {
		t.Errorf("run = %+v, want run-9/complete", run)
	}
	if run.Report == nil || !run.Report.Success {
		t.Error("expected the run's report in the response")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(), Limits{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/ghost", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetRun_ServiceError(t *testing.T) {
	t.Parallel()

	svc := newMockService()
	svc.getErr = errors.New("db down")
	r := newTestRouter(t, svc, Limits{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/run-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, newMockService(), Limits{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st planner.SystemStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(st.Analyzers) != 3 {
		t.Errorf("analyzers = %v, want 3 entries", st.Analyzers)
	}
}
