package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ledgersync/internal/core/checkpoint"
	"github.com/vietddude/ledgersync/internal/indexing/poller"
)

// Checker is a dependency that can report its health.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// PollerState exposes the poller control state.
type PollerState interface {
	State() poller.State
}

// staleCycles is how many missed intervals mark an enabled poller degraded.
const staleCycles = 3

// Monitor aggregates health status from various system components.
type Monitor struct {
	poller      PollerState
	checkpoints checkpoint.Manager
	contract    string
	names       []string
	checks      map[string]Checker
	cacheTTL    time.Duration
	lastCheck   time.Time
	lastReport  *HealthReport
	now         func() time.Time
	mu          sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(p PollerState, checkpoints checkpoint.Manager, contract string) *Monitor {
	return &Monitor{
		poller:      p,
		checkpoints: checkpoints,
		contract:    contract,
		checks:      make(map[string]Checker),
		cacheTTL:    10 * time.Second,
		now:         time.Now,
	}
}

// AddCheck registers a named dependency check.
func (m *Monitor) AddCheck(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[name]; !ok {
		m.names = append(m.names, name)
	}
	m.checks[name] = c
}

// CheckHealth runs all checks. Results are cached briefly to keep probes cheap.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.names)),
	}

	for _, name := range m.names {
		c := ComponentHealth{Status: StatusHealthy}
		if err := m.checks[name].Health(ctx); err != nil {
			c.Status = StatusCritical
			c.Error = err.Error()
		}
		report.Components[name] = c
		report.SystemStatus = worst(report.SystemStatus, c.Status)
	}

	report.Poller = m.pollerHealth(ctx, now)
	report.SystemStatus = worst(report.SystemStatus, report.Poller.Status)

	m.lastCheck = now
	m.lastReport = &report
	return report
}

func (m *Monitor) pollerHealth(ctx context.Context, now time.Time) PollerHealth {
	h := PollerHealth{Status: StatusHealthy, ContractAddress: m.contract}
	if m.poller == nil {
		return h
	}

	st := m.poller.State()
	h.Running = st.Enabled
	h.PollIntervalMs = st.Interval.Milliseconds()
	if !st.LastRunAt.IsZero() {
		last := st.LastRunAt
		h.LastRunAt = &last
		if st.Enabled && now.Sub(last) > staleCycles*st.Interval {
			h.Status = StatusDegraded
		}
	}

	if m.checkpoints != nil && m.contract != "" {
		seq, err := m.checkpoints.Current(ctx, m.contract)
		if err != nil {
			h.Status = worst(h.Status, StatusDegraded)
		}
		h.Checkpoint = seq
	}
	return h
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
