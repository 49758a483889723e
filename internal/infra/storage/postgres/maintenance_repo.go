package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// IngestionLogRepo implements storage.IngestionLogRepository using PostgreSQL.
type IngestionLogRepo struct {
	db *DB
}

// NewIngestionLogRepo creates a new PostgreSQL ingestion log repository.
func NewIngestionLogRepo(db *DB) *IngestionLogRepo {
	return &IngestionLogRepo{db: db}
}

func (r *IngestionLogRepo) Append(ctx context.Context, rec *domain.IngestionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_log (contract_address, tx_hash, ledger_seq, outcome, events, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ContractAddress, rec.TxHash, int64(rec.LedgerSeq), string(rec.Outcome),
		rec.Events, rec.Error, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append ingestion log: %w", err)
	}
	return nil
}

// MaintenanceRepo implements storage.MaintenanceRepository using PostgreSQL.
type MaintenanceRepo struct {
	db *DB
}

// NewMaintenanceRepo creates a new PostgreSQL maintenance repository.
func NewMaintenanceRepo(db *DB) *MaintenanceRepo {
	return &MaintenanceRepo{db: db}
}

// ArchiveIngestionLog copies old rows to the archive and deletes them in one transaction.
func (r *MaintenanceRepo) ArchiveIngestionLog(ctx context.Context, cutoff time.Time) (int64, error) {
	var moved int64
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ingestion_log_archive
				(id, contract_address, tx_hash, ledger_seq, outcome, events, error, created_at)
			SELECT id, contract_address, tx_hash, ledger_seq, outcome, events, error, created_at
			FROM ingestion_log WHERE created_at < $1
			ON CONFLICT (id) DO NOTHING`, cutoff.UTC()); err != nil {
			return fmt.Errorf("failed to copy ingestion log: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM ingestion_log WHERE created_at < $1`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete archived ingestion log: %w", err)
		}
		moved, err = res.RowsAffected()
		return err
	})
	return moved, err
}

// TransitionGroupStatuses moves pending groups with a contribution to active,
// and active groups past their last round to completed.
func (r *MaintenanceRepo) TransitionGroupStatuses(ctx context.Context) (int64, int64, error) {
	var activated, completed int64
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE groups g SET status = 'active'
			WHERE g.status = 'pending'
			  AND EXISTS (SELECT 1 FROM contributions c WHERE c.group_id = g.id)`)
		if err != nil {
			return fmt.Errorf("failed to activate groups: %w", err)
		}
		if activated, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE groups g SET status = 'completed'
			WHERE g.status = 'active'
			  AND g.current_round > (
				SELECT COUNT(*) FROM memberships m WHERE m.group_id = g.id
			  )
			  AND EXISTS (SELECT 1 FROM memberships m WHERE m.group_id = g.id)`)
		if err != nil {
			return fmt.Errorf("failed to complete groups: %w", err)
		}
		completed, err = res.RowsAffected()
		return err
	})
	return activated, completed, err
}

// SummarizeRounds upserts the current round summary of each active group.
func (r *MaintenanceRepo) SummarizeRounds(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO group_round_summaries
			(group_id, round_number, contribution_count, total_amount, paid_members, members, generated_at)
		SELECT g.id, g.current_round,
			(SELECT COUNT(*) FROM contributions c
			 WHERE c.group_id = g.id AND c.round_number = g.current_round),
			(SELECT COALESCE(SUM(c.amount), 0) FROM contributions c
			 WHERE c.group_id = g.id AND c.round_number = g.current_round),
			(SELECT COUNT(*) FROM memberships m
			 WHERE m.group_id = g.id AND m.has_paid_current_round),
			(SELECT COUNT(*) FROM memberships m WHERE m.group_id = g.id),
			$1
		FROM groups g
		WHERE g.status = 'active'
		ON CONFLICT (group_id, round_number) DO UPDATE
		SET contribution_count = EXCLUDED.contribution_count,
		    total_amount = EXCLUDED.total_amount,
		    paid_members = EXCLUDED.paid_members,
		    members = EXCLUDED.members,
		    generated_at = EXCLUDED.generated_at`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to summarize rounds: %w", err)
	}
	return res.RowsAffected()
}
