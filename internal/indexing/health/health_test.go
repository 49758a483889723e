package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/ledgersync/internal/core/checkpoint"
	"github.com/vietddude/ledgersync/internal/indexing/poller"
	"github.com/vietddude/ledgersync/internal/infra/storage/memory"
)

type stubPoller struct {
	state poller.State
}

func (s *stubPoller) State() poller.State { return s.state }

func (s *stubPoller) Start() poller.Status {
	s.state = s.state.Start()
	return s.state.Status()
}

func (s *stubPoller) Stop() poller.Status {
	s.state = s.state.Stop()
	return s.state.Status()
}

func (s *stubPoller) Status() poller.Status { return s.state.Status() }

func newMonitor(p *stubPoller) *Monitor {
	store := memory.NewMemoryStorage()
	cp := checkpoint.NewManager(memory.NewCheckpointRepo(store), memory.NewMarkerRepo(store), 0)
	_ = cp.Advance(context.Background(), "CADDR", 42)
	m := NewMonitor(p, cp, "CADDR")
	m.cacheTTL = 0
	return m
}

func TestMonitor_Healthy(t *testing.T) {
	now := time.Now()
	p := &stubPoller{state: poller.State{Enabled: true, Interval: time.Second, LastRunAt: now}}
	m := newMonitor(p)
	m.now = func() time.Time { return now }
	m.AddCheck("postgres", CheckerFunc(func(context.Context) error { return nil }))

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.Poller.Checkpoint != 42 || !report.Poller.Running {
		t.Errorf("poller = %+v", report.Poller)
	}
}

func TestMonitor_DegradedWhenPollerStale(t *testing.T) {
	now := time.Now()
	p := &stubPoller{state: poller.State{Enabled: true, Interval: time.Second, LastRunAt: now.Add(-10 * time.Second)}}
	m := newMonitor(p)
	m.now = func() time.Time { return now }

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}

	// A stopped poller is not stale
	p.state = p.state.Stop()
	if got := m.CheckHealth(context.Background()).SystemStatus; got != StatusHealthy {
		t.Errorf("stopped poller: expected healthy, got %s", got)
	}
}

func TestMonitor_CriticalWhenDependencyDown(t *testing.T) {
	m := newMonitor(&stubPoller{state: poller.State{Interval: time.Second}})
	m.AddCheck("redis", CheckerFunc(func(context.Context) error { return errors.New("connection refused") }))

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if c := report.Components["redis"]; c.Error != "connection refused" {
		t.Errorf("redis = %+v", c)
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	m := newMonitor(&stubPoller{state: poller.State{Interval: time.Second}})
	m.cacheTTL = time.Minute
	var calls int
	m.AddCheck("db", CheckerFunc(func(context.Context) error { calls++; return nil }))

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestServer_PollerControl(t *testing.T) {
	p := &stubPoller{state: poller.State{Interval: 15 * time.Second}}
	srv := httptest.NewServer(NewServer(newMonitor(p), p, 0).Handler())
	defer srv.Close()

	tests := []struct {
		method  string
		path    string
		running bool
	}{
		{http.MethodGet, "/poller/status", false},
		{http.MethodPost, "/poller/start", true},
		{http.MethodPost, "/poller/start", true},
		{http.MethodGet, "/poller/status", true},
		{http.MethodPost, "/poller/stop", false},
		{http.MethodPost, "/poller/stop", false},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		var st poller.Status
		err = json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s %s: decode: %v", tt.method, tt.path, err)
		}
		if st.Running != tt.running || st.PollIntervalMs != 15000 {
			t.Errorf("%s %s = %+v, want running=%v", tt.method, tt.path, st, tt.running)
		}
	}
}

func TestServer_Health(t *testing.T) {
	p := &stubPoller{state: poller.State{Interval: time.Second}}
	m := newMonitor(p)
	down := false
	m.AddCheck("db", CheckerFunc(func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	}))
	srv := httptest.NewServer(NewServer(m, p, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	down = true
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("metrics content type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestServer_RejectsWrongMethod(t *testing.T) {
	p := &stubPoller{state: poller.State{Interval: time.Second}}
	srv := httptest.NewServer(NewServer(newMonitor(p), p, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/poller/start")
	if err != nil {
		t.Fatalf("GET /poller/start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
	if p.state.Enabled {
		t.Error("GET must not start the poller")
	}
}
