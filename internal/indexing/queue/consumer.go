// Package queue consumes transfer and approval jobs pushed by an upstream
// watcher and applies them with the same hash-keyed idempotency as the poller.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// Queue is the job transport.
type Queue interface {
	Push(ctx context.Context, name string, env *domain.JobEnvelope) error
	Pop(ctx context.Context, name string, timeout time.Duration) (*domain.JobEnvelope, error)
	DeadLetter(ctx context.Context, name string, env *domain.JobEnvelope) error
}

// Handler applies one job.
type Handler interface {
	Handle(ctx context.Context, env *domain.JobEnvelope) error
}

// ConsumerConfig configures one queue consumer.
type ConsumerConfig struct {
	Name        string
	MaxAttempts int
	PopTimeout  time.Duration
}

// Consumer drains one named queue.
type Consumer struct {
	cfg     ConsumerConfig
	queue   Queue
	handler Handler
	log     *slog.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(cfg ConsumerConfig, q Queue, h Handler, log *slog.Logger) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg:     cfg,
		queue:   q,
		handler: h,
		log:     log.With("component", "queue", "queue", cfg.Name),
	}
}

// Run consumes jobs until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Queue consumer started")
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("Queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne waits for one job and handles it. It reports whether a job was
// received. Handler failures are requeued or dead lettered, not returned.
func (c *Consumer) ProcessOne(ctx context.Context) (bool, error) {
	env, err := c.queue.Pop(ctx, c.cfg.Name, c.cfg.PopTimeout)
	if err != nil {
		return false, err
	}
	if env == nil {
		return false, nil
	}

	// Once popped the job is ours to finish
	ctx = context.WithoutCancel(ctx)
	env.Attempts++

	herr := c.handler.Handle(ctx, env)
	if herr == nil {
		metrics.QueueJobs.WithLabelValues(string(env.Type), "ok").Inc()
		return true, nil
	}

	env.Error = herr.Error()
	if errors.Is(herr, ErrUnprocessable) || env.Attempts >= c.cfg.MaxAttempts {
		c.log.Error("Job dead lettered", "type", env.Type, "attempts", env.Attempts, "error", herr)
		metrics.QueueJobs.WithLabelValues(string(env.Type), "dead").Inc()
		if err := c.queue.DeadLetter(ctx, c.cfg.Name, env); err != nil {
			return true, fmt.Errorf("dead letter: %w", err)
		}
		return true, nil
	}

	c.log.Warn("Job failed, requeueing", "type", env.Type, "attempts", env.Attempts, "error", herr)
	metrics.QueueJobs.WithLabelValues(string(env.Type), "retry").Inc()
	if err := c.queue.Push(ctx, c.cfg.Name, env); err != nil {
		return true, fmt.Errorf("requeue: %w", err)
	}
	return true, nil
}
