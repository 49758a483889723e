// Package health provides system health monitoring and the control HTTP surface.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of one dependency check.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// PollerHealth describes the ingestion loop.
type PollerHealth struct {
	Status          SystemStatus `json:"status"`
	Running         bool         `json:"running"`
	PollIntervalMs  int64        `json:"poll_interval_ms"`
	LastRunAt       *time.Time   `json:"last_run_at,omitempty"`
	ContractAddress string       `json:"contract_address,omitempty"`
	Checkpoint      uint64       `json:"checkpoint"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Poller       PollerHealth               `json:"poller"`
	Components   map[string]ComponentHealth `json:"components"`
}
