package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/taskgraph/coordinator"
	"github.com/kbukum/taskgraph/observability"
	"github.com/kbukum/taskgraph/server/middleware"
	"github.com/kbukum/taskgraph/sse"
)

type fakeRun struct {
	summary coordinator.RunSummary
	state   coordinator.StateSnapshot
	events  []coordinator.Event
}

func (f *fakeRun) RunID() string                    { return f.summary.RunID }
func (f *fakeRun) Summary() coordinator.RunSummary  { return f.summary }
func (f *fakeRun) State() coordinator.StateSnapshot { return f.state }
func (f *fakeRun) Events() []coordinator.Event      { return f.events }

type staticChecker observability.Health

func (s staticChecker) CheckHealth(context.Context) observability.Health {
	return observability.Health(s)
}

func newTestServer(t *testing.T, r Routes) *Server {
	t.Helper()
	cfg := Config{}
	cfg.ApplyDefaults()
	s := New(cfg, nil)
	s.Register(r)
	return s
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rr
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name     string
		checkers []observability.HealthChecker
		code     int
		status   observability.HealthStatus
	}{
		{"no checkers", nil, http.StatusOK, observability.HealthStatusUp},
		{"degraded", []observability.HealthChecker{staticChecker{Name: "runner", Status: observability.HealthStatusDegraded}}, http.StatusOK, observability.HealthStatusDegraded},
		{"down", []observability.HealthChecker{staticChecker{Name: "runner", Status: observability.HealthStatusDown}}, http.StatusServiceUnavailable, observability.HealthStatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Routes{Service: "taskgraph", Version: "test", Checkers: tt.checkers})
			rr := do(t, s, "/health")
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
			var body observability.ServiceHealth
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.status || body.Service != "taskgraph" {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestServer_Version(t *testing.T) {
	s := newTestServer(t, Routes{})
	rr := do(t, s, "/version")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"version"`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
}

func TestServer_RunEndpoints(t *testing.T) {
	run := &fakeRun{
		summary: coordinator.RunSummary{RunID: "run-1", SpeedupRatio: 1.5, Children: coordinator.ChildCounts{Total: 2, Succeeded: 2}},
		state:   coordinator.StateSnapshot{Succeeded: []coordinator.TaskEntry{{ID: "A"}, {ID: "B"}}},
	}
	s := newTestServer(t, Routes{Run: run})

	rr := do(t, s, "/api/run/summary")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rr.Code)
	}
	var summary struct {
		Data coordinator.RunSummary `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Data.RunID != "run-1" || summary.Data.SpeedupRatio != 1.5 || summary.Data.Children.Succeeded != 2 {
		t.Errorf("unexpected summary %+v", summary.Data)
	}
	if !strings.Contains(rr.Body.String(), `"speedupRatio"`) {
		t.Errorf("expected camelCase fields, got %s", rr.Body.String())
	}

	rr = do(t, s, "/api/run/state")
	var state struct {
		Data coordinator.StateSnapshot `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(state.Data.Succeeded) != 2 {
		t.Errorf("unexpected state %+v", state.Data)
	}
}

func TestServer_NoRun(t *testing.T) {
	s := newTestServer(t, Routes{})
	for _, path := range []string{"/api/run/summary", "/api/run/state", "/api/run/events"} {
		rr := do(t, s, path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "NOT_FOUND") {
			t.Errorf("%s: expected NOT_FOUND body, got %s", path, rr.Body.String())
		}
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	s := newTestServer(t, Routes{})

	rr := do(t, s, "/version")
	if rr.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/version", http.NoBody)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get(middleware.HeaderRequestID); got != "req-42" {
		t.Errorf("expected propagated request id, got %q", got)
	}
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer(t, Routes{})
	s.Engine().GET("/boom", func(*gin.Context) { panic("boom") })

	rr := do(t, s, "/boom")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected INTERNAL_ERROR body, got %s", rr.Body.String())
	}
}

func TestServer_EventStream(t *testing.T) {
	hub := sse.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	run := &fakeRun{
		summary: coordinator.RunSummary{RunID: "run-s"},
		events:  []coordinator.Event{{Type: coordinator.EventChildStarted, RunID: "run-s", TaskID: "A"}},
	}
	s := newTestServer(t, Routes{Run: run, Hub: hub})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/run/events", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	var events []string
	for len(events) < 2 && sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	if len(events) != 2 || events[0] != "connected" || events[1] != "child_started" {
		t.Fatalf("expected connected then replayed child_started, got %v", events)
	}

	ids := hub.ClientIDs()
	if len(ids) != 1 || !strings.HasPrefix(ids[0], "run:run-s:") {
		t.Errorf("unexpected client ids %v", ids)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := Config{Port: 0}
	cfg.ApplyDefaults()
	if err := cfg.SetAddr("127.0.0.1:0"); err != nil {
		t.Fatalf("SetAddr: %v", err)
	}
	s := New(cfg, nil)
	s.Register(Routes{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Port: 70000}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port out of range")
	}
	cfg = Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("unexpected addr %s", cfg.Addr())
	}
}
