package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Get retrieves the checkpoint of a contract.
func (r *CheckpointRepo) Get(ctx context.Context, contractAddress string) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := r.db.GetContext(ctx, &cp, `
		SELECT contract_address, ledger_seq, updated_at
		FROM ledger_checkpoints
		WHERE contract_address = $1`, contractAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

// Advance raises the checkpoint; GREATEST keeps it monotonic under races.
func (r *CheckpointRepo) Advance(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_checkpoints (contract_address, ledger_seq, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_address) DO UPDATE
		SET ledger_seq = GREATEST(ledger_checkpoints.ledger_seq, EXCLUDED.ledger_seq),
		    updated_at = EXCLUDED.updated_at`,
		contractAddress, int64(ledgerSeq), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return nil
}

// Reset overwrites the checkpoint.
func (r *CheckpointRepo) Reset(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_checkpoints (contract_address, ledger_seq, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_address) DO UPDATE
		SET ledger_seq = EXCLUDED.ledger_seq, updated_at = EXCLUDED.updated_at`,
		contractAddress, int64(ledgerSeq), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}

// List retrieves all checkpoints.
func (r *CheckpointRepo) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	var out []*domain.Checkpoint
	err := r.db.SelectContext(ctx, &out, `
		SELECT contract_address, ledger_seq, updated_at
		FROM ledger_checkpoints
		ORDER BY contract_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return out, nil
}

// MarkerRepo implements storage.MarkerRepository using PostgreSQL.
type MarkerRepo struct {
	db *DB
}

// NewMarkerRepo creates a new PostgreSQL marker repository.
func NewMarkerRepo(db *DB) *MarkerRepo {
	return &MarkerRepo{db: db}
}

func (r *MarkerRepo) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM processed_transactions
			WHERE transaction_hash = $1 AND (expires_at IS NULL OR expires_at > NOW())
		)`, txHash)
	if err != nil {
		return false, fmt.Errorf("failed to check marker: %w", err)
	}
	return exists, nil
}

func (r *MarkerRepo) MarkProcessed(ctx context.Context, txHash string, ttl time.Duration) error {
	var expires sql.NullTime
	now := time.Now().UTC()
	if ttl > 0 {
		expires = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_transactions (transaction_hash, processed_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_hash) DO UPDATE
		SET processed_at = EXCLUDED.processed_at, expires_at = EXCLUDED.expires_at`,
		txHash, now, expires)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

func (r *MarkerRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM processed_transactions
		WHERE expires_at IS NOT NULL AND expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired markers: %w", err)
	}
	return res.RowsAffected()
}
