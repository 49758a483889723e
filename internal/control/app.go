package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vietddude/ledgersync/internal/core/checkpoint"
	"github.com/vietddude/ledgersync/internal/core/config"
	"github.com/vietddude/ledgersync/internal/core/worker"
	"github.com/vietddude/ledgersync/internal/indexing/handler"
	"github.com/vietddude/ledgersync/internal/indexing/health"
	"github.com/vietddude/ledgersync/internal/indexing/poller"
	"github.com/vietddude/ledgersync/internal/indexing/queue"
	"github.com/vietddude/ledgersync/internal/infra/ledger"
)

// App is the main application struct that manages the ingestion lifecycle.
type App struct {
	cfg          *config.AppConfig
	backend      *Backend
	checkpoints  *checkpoint.DefaultManager
	poller       *poller.Poller
	consumers    []*queue.Consumer
	scheduler    *worker.Scheduler
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
	wg           sync.WaitGroup
}

// NewApp wires every component over an opened backend.
func NewApp(cfg *config.AppConfig, b *Backend) *App {
	log := slog.Default()

	cpMgr := checkpoint.NewManager(b.Checkpoints, b.Markers, cfg.Checkpoint.MarkerTTL)
	registry := handler.NewRegistry(b.Projection, log)

	p := poller.New(poller.Config{
		ContractAddress: cfg.Ledger.ContractAddress,
		Interval:        cfg.Poller.Interval(),
		Enabled:         cfg.Poller.Enabled,
		Source:          ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout, cfg.Ledger.PageLimit),
		Checkpoints:     cpMgr,
		Dispatcher:      registry,
		IngestionLog:    b.Ingestion,
		Logger:          log,
	})

	a := &App{
		cfg:         cfg,
		backend:     b,
		checkpoints: cpMgr,
		poller:      p,
		log:         log,
	}

	if cfg.Queue.Enabled {
		jobs := queue.NewHandlers(b.Projection, log)
		for _, name := range []string{cfg.Queue.TransferKey, cfg.Queue.ApprovalKey} {
			a.consumers = append(a.consumers, queue.NewConsumer(queue.ConsumerConfig{
				Name:        name,
				MaxAttempts: cfg.Queue.MaxAttempts,
				PopTimeout:  cfg.Queue.PopTimeout,
			}, b.Queue, jobs, log))
		}
	}

	if cfg.Maintenance.Enabled {
		m := cfg.Maintenance
		a.scheduler = worker.NewScheduler(worker.SchedulerConfig{
			LockTTL:        m.LockTTL,
			MaxAttempts:    m.MaxAttempts,
			InitialBackoff: m.InitialBackoff,
			MaxBackoff:     m.MaxBackoff,
		}, b.Locker, log)

		markers := b.Markers
		if !b.SweepMarkers {
			markers = nil
		}
		a.scheduler.Add(worker.Maintenance(worker.JobsConfig{
			ArchiveInterval:  m.ArchiveInterval,
			ArchiveRetention: m.ArchiveRetention,
			StatusInterval:   m.StatusInterval,
			SummaryInterval:  m.SummaryInterval,
			MarkerInterval:   m.MarkerInterval,
		}, b.Maintenance, markers, log)...)
	}

	a.healthMon = health.NewMonitor(p, cpMgr, cfg.Ledger.ContractAddress)
	for name, c := range b.checks {
		a.healthMon.AddCheck(name, c)
	}
	a.healthServer = health.NewServer(a.healthMon, p, cfg.Server.Port)

	return a
}

// Poller returns the ingestion poller.
func (a *App) Poller() *poller.Poller { return a.poller }

// Checkpoints returns the checkpoint manager.
func (a *App) Checkpoints() checkpoint.Manager { return a.checkpoints }

// Handler returns the control HTTP routes.
func (a *App) Handler() http.Handler { return a.healthServer.Handler() }

// Start starts the app and all its components. It returns immediately.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.backend.DB != nil {
		a.backend.DB.StartMetricsCollector(ctx)
	}

	a.goRun(func() {
		if err := a.poller.Run(ctx); err != nil {
			a.log.Error("Poller failed", "error", err)
		}
	})

	for _, c := range a.consumers {
		a.goRun(func() {
			if err := c.Run(ctx); err != nil {
				a.log.Error("Queue consumer failed", "error", err)
			}
		})
	}

	if a.scheduler != nil {
		a.log.Info("Starting maintenance scheduler", "jobs", a.scheduler.Jobs())
		a.goRun(func() { a.scheduler.Start(ctx) })
	}

	a.log.Info("Ledgersync started",
		"contract", a.cfg.Ledger.ContractAddress,
		"poll_interval", a.cfg.Poller.Interval(),
		"polling", a.poller.Status().Running,
		"port", a.cfg.Server.Port,
	)
	return nil
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Stop shuts the HTTP server down, waits for workers cancelled through the
// Start context, then closes the backend.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping Ledgersync...")
	a.poller.Stop()

	err := a.healthServer.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("workers did not stop: %w", ctx.Err()))
	}

	a.backend.Close()
	return err
}
