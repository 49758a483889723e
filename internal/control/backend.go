package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ledgersync/internal/core/config"
	"github.com/vietddude/ledgersync/internal/core/lock"
	"github.com/vietddude/ledgersync/internal/indexing/health"
	"github.com/vietddude/ledgersync/internal/indexing/queue"
	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
	"github.com/vietddude/ledgersync/internal/infra/storage"
	"github.com/vietddude/ledgersync/internal/infra/storage/memory"
	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

// Backend is the set of stores the application runs against.
type Backend struct {
	Checkpoints storage.CheckpointRepository
	Markers     storage.MarkerRepository
	Projection  storage.Projection
	Ingestion   storage.IngestionLogRepository
	Maintenance storage.MaintenanceRepository
	Locker      lock.Locker
	Queue       queue.Queue

	// SweepMarkers is false when markers expire on their own
	SweepMarkers bool

	DB     *postgres.DB
	Redis  *redisclient.Client
	Memory *memory.MemoryStorage
	checks map[string]health.Checker
}

// OpenBackend connects the configured stores. Projection tables live in
// PostgreSQL when a database is configured and in memory otherwise.
func OpenBackend(ctx context.Context, cfg *config.AppConfig, migrate bool) (*Backend, error) {
	b := &Backend{checks: make(map[string]health.Checker)}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		b.DB = db
		b.checks["postgres"] = db
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		b.Projection = postgres.NewProjection(db)
		b.Ingestion = postgres.NewIngestionLogRepo(db)
		b.Maintenance = postgres.NewMaintenanceRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		b.Memory = memory.NewMemoryStorage()
		b.Projection = b.Memory.Projection()
		b.Ingestion = memory.NewIngestionLogRepo(b.Memory)
		b.Maintenance = memory.NewMaintenanceRepo(b.Memory)
		slog.Info("Using Memory storage")
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.Redis = client
		b.checks["redis"] = client
		b.Locker = redisclient.NewLocker(client)
		b.Queue = redisclient.NewJobQueue(client)
	} else {
		slog.Warn("Redis not configured, maintenance locks are process-local")
		b.Locker = lock.NewMemoryLocker()
		b.Queue = queue.NewMemoryQueue()
	}

	switch cfg.Checkpoint.Backend {
	case config.BackendPostgres:
		if b.DB == nil {
			b.Close()
			return nil, fmt.Errorf("checkpoint backend %q requires database.url", cfg.Checkpoint.Backend)
		}
		b.Checkpoints = postgres.NewCheckpointRepo(b.DB)
		b.Markers = postgres.NewMarkerRepo(b.DB)
		b.SweepMarkers = true
	case config.BackendRedis:
		if b.Redis == nil {
			b.Close()
			return nil, fmt.Errorf("checkpoint backend %q requires redis.url", cfg.Checkpoint.Backend)
		}
		b.Checkpoints = redisclient.NewCheckpointRepo(b.Redis)
		b.Markers = redisclient.NewMarkerRepo(b.Redis)
	default:
		if b.Memory == nil {
			b.Memory = memory.NewMemoryStorage()
		}
		b.Checkpoints = memory.NewCheckpointRepo(b.Memory)
		b.Markers = memory.NewMarkerRepo(b.Memory)
		b.SweepMarkers = true
	}
	slog.Info("Checkpoint store selected", "backend", cfg.Checkpoint.Backend)

	return b, nil
}

// Close releases connections.
func (b *Backend) Close() {
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			slog.Warn("Failed to close Redis", "error", err)
		}
	}
	if b.DB != nil {
		if err := b.DB.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}
