package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/types"
)

func TestReadyTasksDecodesProjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/demo/ready" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tasks": []map[string]interface{}{
				{"id": "aaaa1111", "title": "first", "classification": "ready"},
				{"id": "bbbb2222", "title": "second", "classification": "ready"},
			},
			"total": 2,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	tasks, err := c.ReadyTasks(context.Background(), "demo")
	if err != nil {
		t.Fatalf("ReadyTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "aaaa1111" || tasks[0].Classification != types.ClassReady {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string][]string{"projects": {"alpha", "beta"}})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	projects, err := c.Projects(context.Background())
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 2 || projects[0] != "alpha" {
		t.Errorf("projects = %v", projects)
	}
}

func TestUpdateStatusSendsPatchWithNote(t *testing.T) {
	var got map[string]string
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.UpdateStatus(context.Background(), "aaaa1111", types.StatusCompleted, "done by runner")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if method != http.MethodPatch {
		t.Errorf("method = %s", method)
	}
	if got["status"] != "completed" || got["note"] != "done by runner" {
		t.Errorf("body = %v", got)
	}
}

func TestConflictCarriesClaim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":     "task already claimed",
			"kind":      "conflict",
			"claimedBy": "runner-beef0001",
			"claimedAt": int64(1724580000000),
			"isStale":   false,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.Claim(context.Background(), "demo", "aaaa1111", "runner-cafe0002")
	if !brainerr.IsKind(err, brainerr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	be := brainerr.AsError(err)
	if be.Claim == nil || be.Claim.ClaimedBy != "runner-beef0001" {
		t.Errorf("claim = %+v", be.Claim)
	}
	if be.Claim.ClaimedAt != 1724580000000 || be.Claim.IsStale {
		t.Errorf("claim = %+v", be.Claim)
	}
}

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   brainerr.Kind
	}{
		{http.StatusNotFound, brainerr.KindNotFound},
		{http.StatusBadRequest, brainerr.KindValidation},
		{http.StatusServiceUnavailable, brainerr.KindBackendUnavailable},
		{http.StatusBadGateway, brainerr.KindBackendUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
		}))
		c := New(srv.URL, time.Second)
		_, err := c.GetEntry(context.Background(), "aaaa1111")
		if brainerr.KindOf(err) != tc.kind {
			t.Errorf("status %d: kind = %s, want %s", tc.status, brainerr.KindOf(err), tc.kind)
		}
		srv.Close()
	}
}

func TestValidationDetailsSurvivesWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "invalid request",
			"kind":  "validation",
			"details": []map[string]string{
				{"field": "type", "message": "unknown entry type"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.GetEntry(context.Background(), "aaaa1111")
	be := brainerr.AsError(err)
	if be == nil || len(be.Details) != 1 || be.Details[0].Field != "type" {
		t.Errorf("details = %+v", be)
	}
}

func TestTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, time.Second)
	_, err := c.CheckHealth(context.Background())
	if !brainerr.IsKind(err, brainerr.KindBackendUnavailable) {
		t.Errorf("expected retryable unavailable, got %v", err)
	}
}

func TestInProgressFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tasks": []map[string]interface{}{
				{"id": "aaaa1111", "status": "in_progress", "classification": "not_pending"},
				{"id": "bbbb2222", "status": "pending", "classification": "ready"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	tasks, err := c.InProgressTasks(context.Background(), "demo")
	if err != nil {
		t.Fatalf("InProgressTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "aaaa1111" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestReleaseTolerantOfEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"released": false})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if err := c.Release(context.Background(), "demo", "aaaa1111"); err != nil {
		t.Errorf("Release: %v", err)
	}
}
