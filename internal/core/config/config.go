package config

import (
	"time"

	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Database    postgres.Config    `yaml:"database"`
	Redis       redisclient.Config `yaml:"redis"`
	Ledger      LedgerConfig       `yaml:"ledger"`
	Poller      PollerConfig       `yaml:"poller"`
	Checkpoint  CheckpointConfig   `yaml:"checkpoint"`
	Maintenance MaintenanceConfig  `yaml:"maintenance"`
	Queue       QueueConfig        `yaml:"queue"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LedgerConfig points at the remote ledger indexer.
type LedgerConfig struct {
	BaseURL         string        `yaml:"base_url"`
	ContractAddress string        `yaml:"contract_address"` // empty = poller no-op
	ChainID         string        `yaml:"chain_id"`
	Timeout         time.Duration `yaml:"timeout"`
	PageLimit       int           `yaml:"page_limit"`
}

// PollerConfig holds polling settings.
type PollerConfig struct {
	IntervalMs int  `yaml:"interval_ms"`
	Enabled    bool `yaml:"enabled"`
}

// Interval returns the poll interval as a duration.
func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Checkpoint store backends
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// DefaultMarkerTTL applies when checkpoint.marker_ttl is absent.
const DefaultMarkerTTL = 30 * 24 * time.Hour

// CheckpointConfig selects where checkpoints and processed markers live.
type CheckpointConfig struct {
	Backend   string        `yaml:"backend"`
	MarkerTTL time.Duration `yaml:"marker_ttl"` // explicit 0 = keep forever
}

// MaintenanceConfig holds periodic job settings.
type MaintenanceConfig struct {
	Enabled          bool          `yaml:"enabled"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	ArchiveInterval  time.Duration `yaml:"archive_interval"`
	ArchiveRetention time.Duration `yaml:"archive_retention"`
	StatusInterval   time.Duration `yaml:"status_interval"`
	SummaryInterval  time.Duration `yaml:"summary_interval"`
	MarkerInterval   time.Duration `yaml:"marker_interval"`
}

// QueueConfig holds alternate ingestion path settings.
type QueueConfig struct {
	Enabled     bool          `yaml:"enabled"`
	TransferKey string        `yaml:"transfer_key"`
	ApprovalKey string        `yaml:"approval_key"`
	MaxAttempts int           `yaml:"max_attempts"`
	PopTimeout  time.Duration `yaml:"pop_timeout"`
}
