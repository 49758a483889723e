package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/ledgersync/internal/core/worker"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables and
// applying defaults.
func Parse(data []byte) (*AppConfig, error) {
	// Seeded before decoding so an explicit zero survives
	cfg := AppConfig{Checkpoint: CheckpointConfig{MarkerTTL: DefaultMarkerTTL}}
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Ledger.Timeout == 0 {
		cfg.Ledger.Timeout = 10 * time.Second
	}
	if cfg.Ledger.PageLimit == 0 {
		cfg.Ledger.PageLimit = 200
	}
	if cfg.Poller.IntervalMs == 0 {
		cfg.Poller.IntervalMs = 15000
	}

	if cfg.Checkpoint.Backend == "" {
		switch {
		case cfg.Database.URL != "":
			cfg.Checkpoint.Backend = BackendPostgres
		case cfg.Redis.URL != "":
			cfg.Checkpoint.Backend = BackendRedis
		default:
			cfg.Checkpoint.Backend = BackendMemory
		}
	}

	m := &cfg.Maintenance
	if m.LockTTL == 0 {
		m.LockTTL = 5 * time.Minute
	}
	if m.MaxAttempts == 0 {
		m.MaxAttempts = 3
	}
	if m.InitialBackoff == 0 {
		m.InitialBackoff = time.Second
	}
	if m.MaxBackoff == 0 {
		m.MaxBackoff = 30 * time.Second
	}
	if m.ArchiveInterval == 0 {
		m.ArchiveInterval = time.Hour
	}
	if m.ArchiveRetention == 0 {
		m.ArchiveRetention = 30 * 24 * time.Hour
	}
	if m.StatusInterval == 0 {
		m.StatusInterval = 5 * time.Minute
	}
	if m.SummaryInterval == 0 {
		m.SummaryInterval = 15 * time.Minute
	}
	if m.MarkerInterval == 0 {
		m.MarkerInterval = time.Hour
	}

	q := &cfg.Queue
	if q.TransferKey == "" {
		q.TransferKey = "transfers"
	}
	if q.ApprovalKey == "" {
		q.ApprovalKey = "approvals"
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = 3
	}
	if q.PopTimeout == 0 {
		q.PopTimeout = 5 * time.Second
	}
}

// Validate reports configuration errors that prevent startup. A missing
// contract address is not one of them; the poller logs and idles instead.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Checkpoint.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("checkpoint backend postgres requires database.url"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("checkpoint backend redis requires redis.url"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend))
	}

	if c.Checkpoint.MarkerTTL < 0 {
		errs = append(errs, fmt.Errorf("checkpoint.marker_ttl must not be negative, got %v", c.Checkpoint.MarkerTTL))
	}
	if c.Poller.IntervalMs < 0 {
		errs = append(errs, fmt.Errorf("poller.interval_ms must be positive, got %d", c.Poller.IntervalMs))
	}
	if c.Ledger.PageLimit < 0 || c.Ledger.PageLimit > 200 {
		errs = append(errs, fmt.Errorf("ledger.page_limit must be within 1..200, got %d", c.Ledger.PageLimit))
	}
	if m := c.Maintenance; m.Enabled {
		if w := worker.RetryWindow(m.MaxAttempts, m.InitialBackoff, m.MaxBackoff); w >= m.LockTTL {
			errs = append(errs, fmt.Errorf("maintenance.lock_ttl %v must exceed the worst-case retry window %v", m.LockTTL, w))
		}
	}
	if c.Queue.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("queue ingestion requires redis.url"))
	}

	return errors.Join(errs...)
}
