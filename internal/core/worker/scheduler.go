// Package worker runs periodic maintenance jobs under a distributed lock.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vietddude/ledgersync/internal/core/lock"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// SchedulerConfig configures lock and retry behavior shared by all jobs.
type SchedulerConfig struct {
	LockTTL        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Scheduler runs each job on its own ticker. A tick runs the job at most
// once across all instances sharing the locker.
type Scheduler struct {
	cfg    SchedulerConfig
	locker lock.Locker
	jobs   []Job
	log    *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig, locker lock.Locker, log *slog.Logger) *Scheduler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 30 * cfg.InitialBackoff
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")
	if w := RetryWindow(cfg.MaxAttempts, cfg.InitialBackoff, cfg.MaxBackoff); w >= cfg.LockTTL {
		log.Warn("Lock TTL shorter than worst-case retry window, jobs may overlap",
			"lock_ttl", cfg.LockTTL, "retry_window", w)
	}
	return &Scheduler{cfg: cfg, locker: locker, log: log}
}

// RetryWindow is the longest total wait between attempts the retry policy
// can produce, excluding the time spent running the job itself.
func RetryWindow(maxAttempts int, initial, maxInterval time.Duration) time.Duration {
	var total time.Duration
	interval := float64(initial)
	for i := 1; i < maxAttempts; i++ {
		capped := min(interval, float64(maxInterval))
		total += time.Duration(capped * (1 + backoff.DefaultRandomizationFactor))
		interval *= backoff.DefaultMultiplier
	}
	return total
}

// Add registers a job. Jobs without an interval are ignored.
func (s *Scheduler) Add(jobs ...Job) {
	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			s.log.Warn("Maintenance job disabled", "job", j.Name)
			continue
		}
		s.jobs = append(s.jobs, j)
	}
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

// Start runs every job until ctx is cancelled and waits for them to return.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	s.log.Info("Maintenance job scheduled", "job", j.Name, "interval", j.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx, j)
		}
	}
}

// RunOnce runs one tick of j: acquire the lock, run with retries, release.
// ran is false when another instance holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context, j Job) (ran bool, err error) {
	start := time.Now()
	lockName := "maintenance:" + j.Name

	ran, err = lock.WithLock(ctx, s.locker, lockName, s.cfg.LockTTL, func(ctx context.Context) error {
		return s.retry(ctx, j)
	})

	switch {
	case err != nil:
		s.log.Error("Maintenance job failed", "job", j.Name, "error", err)
		metrics.MaintenanceRuns.WithLabelValues(j.Name, "error").Inc()
	case !ran:
		s.log.Debug("Maintenance job held elsewhere, skipping", "job", j.Name)
		metrics.MaintenanceRuns.WithLabelValues(j.Name, "skipped").Inc()
		return false, nil
	default:
		metrics.MaintenanceRuns.WithLabelValues(j.Name, "ok").Inc()
	}
	metrics.MaintenanceDuration.WithLabelValues(j.Name).Observe(time.Since(start).Seconds())
	return ran, err
}

// retry runs j up to MaxAttempts times. When every attempt fails all attempt
// errors are returned joined.
func (s *Scheduler) retry(ctx context.Context, j Job) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.Multiplier = backoff.DefaultMultiplier
	b.RandomizationFactor = backoff.DefaultRandomizationFactor
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx)

	var attempts []error
	op := func() error {
		err := j.Run(ctx)
		if err != nil {
			attempts = append(attempts, fmt.Errorf("attempt %d: %w", len(attempts)+1, err))
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		s.log.Warn("Maintenance job attempt failed, retrying",
			"job", j.Name,
			"attempt", len(attempts),
			"next_retry_in", next,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if len(attempts) == 0 {
			return err
		}
		return errors.Join(attempts...)
	}
	if len(attempts) > 0 {
		s.log.Info("Maintenance job succeeded after retries", "job", j.Name, "attempts", len(attempts)+1)
	}
	return nil
}
