// Package checkpoint tracks ingestion progress per monitored contract and the
// set of transactions already handled.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Manager is the checkpoint and dedup store used by the poller.
type Manager interface {
	// Current returns the checkpointed ledger sequence, 0 when none exists.
	Current(ctx context.Context, contractAddress string) (uint64, error)

	// Advance raises the checkpoint. Lower values are ignored.
	Advance(ctx context.Context, contractAddress string, ledgerSeq uint64) error

	// Reset overwrites the checkpoint (administrative).
	Reset(ctx context.Context, contractAddress string, ledgerSeq uint64) error

	// List returns every stored checkpoint.
	List(ctx context.Context) ([]*domain.Checkpoint, error)

	// IsProcessed reports whether txHash carries a processed marker.
	IsProcessed(ctx context.Context, txHash string) (bool, error)

	// MarkProcessed records a processed marker for txHash.
	MarkProcessed(ctx context.Context, txHash string) error

	// GetMetrics returns advance statistics for a contract.
	GetMetrics(contractAddress string) Metrics
}

// DefaultManager implements Manager over checkpoint and marker repositories.
type DefaultManager struct {
	repo       storage.CheckpointRepository
	markers    storage.MarkerRepository
	markerTTL  time.Duration
	mu         sync.RWMutex
	collectors map[string]*MetricsCollector
}

// NewManager creates a new checkpoint manager. markerTTL <= 0 keeps markers forever.
func NewManager(
	repo storage.CheckpointRepository,
	markers storage.MarkerRepository,
	markerTTL time.Duration,
) *DefaultManager {
	return &DefaultManager{
		repo:       repo,
		markers:    markers,
		markerTTL:  markerTTL,
		collectors: make(map[string]*MetricsCollector),
	}
}

// Current returns the checkpointed ledger sequence.
func (m *DefaultManager) Current(ctx context.Context, contractAddress string) (uint64, error) {
	cp, err := m.repo.Get(ctx, contractAddress)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp.LedgerSeq, nil
}

// Advance raises the checkpoint to ledgerSeq.
func (m *DefaultManager) Advance(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	if err := m.repo.Advance(ctx, contractAddress, ledgerSeq); err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	m.mu.Lock()
	collector, ok := m.collectors[contractAddress]
	if !ok {
		collector = NewMetricsCollector(100)
		m.collectors[contractAddress] = collector
	}
	collector.RecordLedger(ledgerSeq, time.Now())
	high := collector.HighWater()
	m.mu.Unlock()

	metrics.CheckpointLedger.WithLabelValues(contractAddress).Set(float64(high))
	return nil
}

// Reset overwrites the checkpoint and clears collected metrics.
func (m *DefaultManager) Reset(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	if err := m.repo.Reset(ctx, contractAddress, ledgerSeq); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}

	m.mu.Lock()
	if collector, ok := m.collectors[contractAddress]; ok {
		collector.Reset()
	}
	m.mu.Unlock()

	metrics.CheckpointLedger.WithLabelValues(contractAddress).Set(float64(ledgerSeq))
	return nil
}

// List returns every stored checkpoint.
func (m *DefaultManager) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	return m.repo.List(ctx)
}

// IsProcessed reports whether txHash carries a processed marker.
func (m *DefaultManager) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	ok, err := m.markers.IsProcessed(ctx, txHash)
	if err != nil {
		return false, fmt.Errorf("failed to check marker: %w", err)
	}
	return ok, nil
}

// MarkProcessed records a processed marker with the configured TTL.
func (m *DefaultManager) MarkProcessed(ctx context.Context, txHash string) error {
	if err := m.markers.MarkProcessed(ctx, txHash, m.markerTTL); err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

// GetMetrics returns advance statistics for a contract.
func (m *DefaultManager) GetMetrics(contractAddress string) Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if collector, ok := m.collectors[contractAddress]; ok {
		return collector.GetMetrics()
	}
	return Metrics{}
}
