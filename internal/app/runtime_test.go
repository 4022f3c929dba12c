package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crucible-sim/crucible/internal/engine/domain"
	"github.com/crucible-sim/crucible/internal/notify"
	"github.com/crucible-sim/crucible/internal/storage"
)

type fakeDispatcher struct {
	released int
	err      error
	calls    []string
}

func (f *fakeDispatcher) DispatchDecision(_ context.Context, decisionID string) (int, error) {
	f.calls = append(f.calls, decisionID)
	if f.err != nil {
		return 0, f.err
	}
	return f.released, nil
}

type fakeSessionStore struct {
	sessions map[string]domain.Session
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) ListSessionsByStatus(_ context.Context, _ domain.SessionStatus) ([]domain.Session, error) {
	return nil, nil
}

type fakeSnapshotStore struct {
	escalation *domain.EscalationSnapshot
	impact     *domain.ImpactMatrixSnapshot
	series     int
}

func (f *fakeSnapshotStore) SaveEscalationSnapshot(_ context.Context, _ domain.EscalationSnapshot) error {
	return nil
}

func (f *fakeSnapshotStore) LatestEscalationSnapshot(_ context.Context, _ string) (domain.EscalationSnapshot, bool, error) {
	if f.escalation == nil {
		return domain.EscalationSnapshot{}, false, nil
	}
	return *f.escalation, true, nil
}

func (f *fakeSnapshotStore) SaveImpactSnapshot(_ context.Context, _ domain.ImpactMatrixSnapshot) error {
	return nil
}

func (f *fakeSnapshotStore) LatestImpactSnapshot(_ context.Context, _ string) (domain.ImpactMatrixSnapshot, bool, error) {
	if f.impact == nil {
		return domain.ImpactMatrixSnapshot{}, false, nil
	}
	return *f.impact, true, nil
}

func (f *fakeSnapshotStore) CountImpactSnapshots(_ context.Context, _ string) (int, error) {
	return f.series, nil
}

func TestHandlerDispatchesExecutedDecision(t *testing.T) {
	dispatcher := &fakeDispatcher{released: 2}
	handler := NewHandler(notify.NewHub(), dispatcher, &fakeSessionStore{}, &fakeSnapshotStore{})

	request := httptest.NewRequest(http.MethodPost, "/internal/decisions/dec-1/executed", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	if len(dispatcher.calls) != 1 || dispatcher.calls[0] != "dec-1" {
		t.Errorf("dispatch calls = %v", dispatcher.calls)
	}
	var body map[string]int
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["released"] != 2 {
		t.Errorf("released = %d, want 2", body["released"])
	}
}

func TestHandlerReportsUnknownDecision(t *testing.T) {
	dispatcher := &fakeDispatcher{err: storage.ErrNotFound}
	handler := NewHandler(notify.NewHub(), dispatcher, &fakeSessionStore{}, &fakeSnapshotStore{})

	request := httptest.NewRequest(http.MethodPost, "/internal/decisions/missing/executed", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestHandlerReportsUnexecutedDecision(t *testing.T) {
	dispatcher := &fakeDispatcher{err: domain.ErrDecisionNotExecuted}
	handler := NewHandler(notify.NewHub(), dispatcher, &fakeSessionStore{}, &fakeSnapshotStore{})

	request := httptest.NewRequest(http.MethodPost, "/internal/decisions/dec-1/executed", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusConflict)
	}
}

func TestHandlerReportsDispatchFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("boom")}
	handler := NewHandler(notify.NewHub(), dispatcher, &fakeSessionStore{}, &fakeSnapshotStore{})

	request := httptest.NewRequest(http.MethodPost, "/internal/decisions/dec-1/executed", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusInternalServerError)
	}
}

func TestHandlerRejectsWebSocketForUnknownSession(t *testing.T) {
	handler := NewHandler(notify.NewHub(), &fakeDispatcher{}, &fakeSessionStore{}, &fakeSnapshotStore{})

	request := httptest.NewRequest(http.MethodGet, "/ws/sessions/missing", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestHandlerServesLatestEscalationSnapshot(t *testing.T) {
	snapshots := &fakeSnapshotStore{
		escalation: &domain.EscalationSnapshot{
			SessionID: "sess-1",
			Factors: []domain.EscalationFactor{
				{ID: "f1", Name: "Hospital overload", Severity: domain.SeverityHigh},
			},
		},
	}
	handler := NewHandler(notify.NewHub(), &fakeDispatcher{}, &fakeSessionStore{}, snapshots)

	request := httptest.NewRequest(http.MethodGet, "/sessions/sess-1/escalation", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	var body domain.EscalationSnapshot
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Factors) != 1 || body.Factors[0].Name != "Hospital overload" {
		t.Errorf("snapshot = %+v", body)
	}
}

func TestHandlerServesImpactSnapshotWithSeriesLength(t *testing.T) {
	snapshots := &fakeSnapshotStore{
		impact: &domain.ImpactMatrixSnapshot{
			SessionID: "sess-1",
			Taxonomy:  map[string]domain.ResponseKind{"fire": domain.ResponseTextual},
		},
		series: 7,
	}
	handler := NewHandler(notify.NewHub(), &fakeDispatcher{}, &fakeSessionStore{}, snapshots)

	request := httptest.NewRequest(http.MethodGet, "/sessions/sess-1/impact", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	var body impactResponse
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Series != 7 {
		t.Errorf("series = %d, want 7", body.Series)
	}
	if body.Snapshot.Taxonomy["fire"] != domain.ResponseTextual {
		t.Errorf("snapshot = %+v", body.Snapshot)
	}
}

func TestHandlerReportsMissingSnapshots(t *testing.T) {
	handler := NewHandler(notify.NewHub(), &fakeDispatcher{}, &fakeSessionStore{}, &fakeSnapshotStore{})

	for _, path := range []string{"/sessions/sess-1/escalation", "/sessions/sess-1/impact"} {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, recorder.Code, http.StatusNotFound)
		}
	}
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	handler := NewHandler(notify.NewHub(), &fakeDispatcher{}, &fakeSessionStore{}, &fakeSnapshotStore{})

	for _, path := range []string{"/metrics", "/healthz"} {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, recorder.Code)
		}
	}
}
