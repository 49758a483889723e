// Package poller pulls contract transactions from the ledger on a fixed
// interval and applies their events in ledger order.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/ledgersync/internal/core/checkpoint"
	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/decoder"
	"github.com/vietddude/ledgersync/internal/indexing/handler"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// Source returns transactions after cursor in ascending ledger order.
type Source interface {
	Transactions(ctx context.Context, address string, cursor uint64) ([]domain.LedgerTransaction, error)
}

// Dispatcher applies one decoded event.
type Dispatcher interface {
	Dispatch(ctx context.Context, tx *domain.LedgerTransaction, ev domain.ContractEvent) error
}

// DecodeFunc extracts recognized events from a metadata blob.
type DecodeFunc func(metaXDR string) ([]domain.ContractEvent, error)

// Config holds poller dependencies.
type Config struct {
	ContractAddress string
	Interval        time.Duration
	Enabled         bool // initial state

	Source       Source
	Checkpoints  checkpoint.Manager
	Dispatcher   Dispatcher
	Decode       DecodeFunc                     // defaults to decoder.Decode
	IngestionLog storage.IngestionLogRepository // optional
	Logger       *slog.Logger
}

// CycleResult summarizes one polling cycle.
type CycleResult struct {
	Fetched    int
	Applied    int
	Failed     int
	Skipped    int
	Checkpoint uint64
}

// Poller runs polling cycles one at a time from a single goroutine.
type Poller struct {
	cfg     Config
	log     *slog.Logger
	mu      sync.Mutex
	state   State
	looping atomic.Bool
	kick    chan struct{}
	now     func() time.Time
}

// New creates a poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Decode == nil {
		cfg.Decode = decoder.Decode
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Poller{
		cfg:  cfg,
		log:  log.With("component", "poller", "contract", cfg.ContractAddress),
		kick: make(chan struct{}, 1),
		now:  time.Now,
	}
	p.state = State{Enabled: cfg.Enabled, Interval: cfg.Interval}
	p.publish(p.state)
	return p
}

// Start enables polling and requests an immediate cycle.
func (p *Poller) Start() Status {
	st := p.transition(State.Start)
	select {
	case p.kick <- struct{}{}:
	default:
	}
	return st
}

// Stop disables polling from the next tick on.
func (p *Poller) Stop() Status {
	return p.transition(State.Stop)
}

// Status returns the current control state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Status()
}

// State returns a snapshot of the control state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) transition(fn func(State) State) Status {
	p.mu.Lock()
	p.state = fn(p.state)
	st := p.state
	p.mu.Unlock()

	p.publish(st)
	return st.Status()
}

func (p *Poller) publish(st State) {
	if st.Enabled {
		metrics.PollerRunning.Set(1)
	} else {
		metrics.PollerRunning.Set(0)
	}
}

// Run drives cycles until ctx is cancelled. A cycle in progress when ctx is
// cancelled finishes processing its batch first.
func (p *Poller) Run(ctx context.Context) error {
	if !p.looping.CompareAndSwap(false, true) {
		return fmt.Errorf("poller already running")
	}
	defer p.looping.Store(false)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx)
		case <-p.kick:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	if !p.state.Enabled {
		p.mu.Unlock()
		return
	}
	p.state = p.state.Ran(p.now())
	p.mu.Unlock()

	_, _ = p.RunCycle(ctx)
}

// RunCycle fetches one batch and processes it. A fetch error aborts the
// cycle and leaves the checkpoint untouched.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	addr := p.cfg.ContractAddress
	if addr == "" {
		p.log.Warn("No contract address configured, skipping poll cycle")
		metrics.PollCycles.WithLabelValues("skipped").Inc()
		return CycleResult{}, nil
	}

	current, err := p.cfg.Checkpoints.Current(ctx, addr)
	if err != nil {
		p.log.Error("Failed to load checkpoint", "error", err)
		metrics.PollCycles.WithLabelValues("error").Inc()
		return CycleResult{}, err
	}

	txs, err := p.cfg.Source.Transactions(ctx, addr, current)
	if err != nil {
		p.log.Error("Failed to fetch transactions", "cursor", current, "error", err)
		metrics.PollCycles.WithLabelValues("error").Inc()
		return CycleResult{Checkpoint: current}, fmt.Errorf("fetch transactions: %w", err)
	}

	res := CycleResult{Fetched: len(txs), Checkpoint: current}
	if len(txs) == 0 {
		metrics.PollCycles.WithLabelValues("empty").Inc()
		return res, nil
	}

	// Processing is not cut short by cancellation
	procCtx := context.WithoutCancel(ctx)
	for i := range txs {
		tx := &txs[i]
		switch outcome := p.processTx(procCtx, addr, tx, current); outcome {
		case domain.TxOutcomeApplied, domain.TxOutcomeIgnored:
			res.Applied++
		case domain.TxOutcomeFailed:
			res.Failed++
		default:
			res.Skipped++
		}
		if tx.LedgerSeq > res.Checkpoint {
			res.Checkpoint = tx.LedgerSeq
		}
	}

	p.log.Info("Poll cycle complete",
		"fetched", res.Fetched,
		"applied", res.Applied,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"checkpoint", res.Checkpoint,
	)
	metrics.PollCycles.WithLabelValues("ok").Inc()
	return res, nil
}

// processTx handles one transaction. cursor is the checkpoint loaded at the
// start of the cycle; transactions sharing a ledger within one batch are told
// apart by their processed markers. Every path leaves the checkpoint at or
// above tx.LedgerSeq.
func (p *Poller) processTx(ctx context.Context, addr string, tx *domain.LedgerTransaction, cursor uint64) domain.TxOutcome {
	if tx.LedgerSeq <= cursor {
		p.advance(ctx, addr, tx)
		p.count(addr, domain.TxOutcomeSeen)
		return domain.TxOutcomeSeen
	}

	seen, err := p.cfg.Checkpoints.IsProcessed(ctx, tx.Hash)
	if err != nil {
		// Fall through; handlers are idempotent
		p.log.Warn("Failed to check processed marker", "tx", tx.Hash, "error", err)
	}
	if seen {
		p.advance(ctx, addr, tx)
		p.count(addr, domain.TxOutcomeSeen)
		return domain.TxOutcomeSeen
	}

	if !tx.Successful {
		p.markProcessed(ctx, tx)
		p.advance(ctx, addr, tx)
		p.record(ctx, addr, tx, domain.TxOutcomeSkipped, 0, nil)
		return domain.TxOutcomeSkipped
	}

	return p.apply(ctx, addr, tx)
}

// apply decodes and dispatches tx. The transaction is marked processed and
// the checkpoint advanced whatever happens, including panics.
func (p *Poller) apply(ctx context.Context, addr string, tx *domain.LedgerTransaction) (outcome domain.TxOutcome) {
	var (
		events int
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			outcome = domain.TxOutcomeFailed
			p.log.Error("Failed to apply transaction", "tx", tx.Hash, "ledger", tx.LedgerSeq, "error", err)
		}
		p.markProcessed(ctx, tx)
		p.advance(ctx, addr, tx)
		p.record(ctx, addr, tx, outcome, events, err)
	}()

	decoded, err := p.cfg.Decode(tx.ResultMetaXDR)
	if err != nil {
		return domain.TxOutcomeFailed
	}
	events = len(decoded)
	if events == 0 {
		return domain.TxOutcomeIgnored
	}

	for _, ev := range decoded {
		dErr := p.cfg.Dispatcher.Dispatch(ctx, tx, ev)
		if errors.Is(dErr, handler.ErrInvalidEvent) {
			p.log.Warn("Dropped invalid event", "tx", tx.Hash, "event", ev.Name, "error", dErr)
			continue
		}
		if dErr != nil {
			err = fmt.Errorf("%s: %w", ev.Name, dErr)
			return domain.TxOutcomeFailed
		}
	}
	return domain.TxOutcomeApplied
}

func (p *Poller) markProcessed(ctx context.Context, tx *domain.LedgerTransaction) {
	if err := p.cfg.Checkpoints.MarkProcessed(ctx, tx.Hash); err != nil {
		p.log.Error("Failed to mark transaction processed", "tx", tx.Hash, "error", err)
	}
}

func (p *Poller) advance(ctx context.Context, addr string, tx *domain.LedgerTransaction) {
	if err := p.cfg.Checkpoints.Advance(ctx, addr, tx.LedgerSeq); err != nil {
		p.log.Error("Failed to advance checkpoint", "tx", tx.Hash, "ledger", tx.LedgerSeq, "error", err)
	}
}

func (p *Poller) count(addr string, outcome domain.TxOutcome) {
	metrics.TransactionsProcessed.WithLabelValues(addr, string(outcome)).Inc()
}

func (p *Poller) record(
	ctx context.Context,
	addr string,
	tx *domain.LedgerTransaction,
	outcome domain.TxOutcome,
	events int,
	cause error,
) {
	p.count(addr, outcome)
	if p.cfg.IngestionLog == nil {
		return
	}

	rec := &domain.IngestionRecord{
		ContractAddress: addr,
		TxHash:          tx.Hash,
		LedgerSeq:       tx.LedgerSeq,
		Outcome:         outcome,
		Events:          events,
		CreatedAt:       p.now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := p.cfg.IngestionLog.Append(ctx, rec); err != nil {
		p.log.Warn("Failed to append ingestion log", "tx", tx.Hash, "error", err)
	}
}
