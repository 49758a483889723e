package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Maintenance job names, also used as lock names.
const (
	JobLogArchival       = "log_archival"
	JobStatusTransitions = "status_transitions"
	JobRoundSummaries    = "round_summaries"
	JobMarkerExpiry      = "marker_expiry"
)

const defaultRetention = 30 * 24 * time.Hour

// JobsConfig carries per-job intervals.
type JobsConfig struct {
	ArchiveInterval  time.Duration
	ArchiveRetention time.Duration
	StatusInterval   time.Duration
	SummaryInterval  time.Duration
	MarkerInterval   time.Duration

	Now func() time.Time // defaults to time.Now
}

// Maintenance builds the periodic jobs. markers may be nil when dedup markers
// expire on their own.
func Maintenance(
	cfg JobsConfig,
	repo storage.MaintenanceRepository,
	markers storage.MarkerRepository,
	log *slog.Logger,
) []Job {
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	retention := cfg.ArchiveRetention
	if retention <= 0 {
		retention = defaultRetention
	}

	jobs := []Job{
		{
			Name:     JobLogArchival,
			Interval: cfg.ArchiveInterval,
			Run: func(ctx context.Context) error {
				n, err := repo.ArchiveIngestionLog(ctx, now().Add(-retention))
				if err != nil {
					return fmt.Errorf("archive ingestion log: %w", err)
				}
				log.Info("Archived ingestion log", "rows", n)
				return nil
			},
		},
		{
			Name:     JobStatusTransitions,
			Interval: cfg.StatusInterval,
			Run: func(ctx context.Context) error {
				activated, completed, err := repo.TransitionGroupStatuses(ctx)
				if err != nil {
					return fmt.Errorf("transition group statuses: %w", err)
				}
				if activated > 0 || completed > 0 {
					log.Info("Group statuses updated", "activated", activated, "completed", completed)
				}
				return nil
			},
		},
		{
			Name:     JobRoundSummaries,
			Interval: cfg.SummaryInterval,
			Run: func(ctx context.Context) error {
				n, err := repo.SummarizeRounds(ctx, now())
				if err != nil {
					return fmt.Errorf("summarize rounds: %w", err)
				}
				log.Debug("Round summaries refreshed", "groups", n)
				return nil
			},
		},
	}

	if markers != nil {
		jobs = append(jobs, Job{
			Name:     JobMarkerExpiry,
			Interval: cfg.MarkerInterval,
			Run: func(ctx context.Context) error {
				n, err := markers.DeleteExpired(ctx, now())
				if err != nil {
					return fmt.Errorf("delete expired markers: %w", err)
				}
				if n > 0 {
					log.Info("Expired processed markers removed", "rows", n)
				}
				return nil
			},
		})
	}
	return jobs
}
