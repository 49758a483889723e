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

// NewProjection returns the projection repositories backed by db.
func NewProjection(db *DB) storage.Projection {
	return storage.Projection{
		Contributions: NewContributionRepo(db),
		Memberships:   NewMembershipRepo(db),
		Groups:        NewGroupRepo(db),
		Approvals:     NewApprovalRepo(db),
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// ContributionRepo implements storage.ContributionRepository using PostgreSQL.
type ContributionRepo struct {
	db *DB
}

// NewContributionRepo creates a new PostgreSQL contribution repository.
func NewContributionRepo(db *DB) *ContributionRepo {
	return &ContributionRepo{db: db}
}

const contributionColumns = `id, group_id, user_id, wallet_address, amount::TEXT AS amount,
	round_number, transaction_hash, timestamp, created_at, updated_at`

// Upsert writes c keyed by transaction hash. xmax = 0 only for freshly inserted rows.
func (r *ContributionRepo) Upsert(ctx context.Context, c *domain.Contribution) (bool, error) {
	now := time.Now().UTC()
	var created bool
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO contributions (id, group_id, user_id, wallet_address, amount, round_number,
			transaction_hash, timestamp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (transaction_hash) DO UPDATE
		SET group_id = EXCLUDED.group_id,
		    user_id = EXCLUDED.user_id,
		    wallet_address = EXCLUDED.wallet_address,
		    amount = EXCLUDED.amount,
		    round_number = EXCLUDED.round_number,
		    timestamp = EXCLUDED.timestamp,
		    updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)`,
		c.ID, c.GroupID, c.UserID, c.WalletAddress, c.Amount, c.RoundNumber,
		c.TransactionHash, c.Timestamp.UTC(), now)
	if err != nil {
		return false, fmt.Errorf("failed to upsert contribution: %w", err)
	}
	return created, nil
}

// CreateIfAbsent inserts c; a unique violation on the hash yields the existing row.
func (r *ContributionRepo) CreateIfAbsent(ctx context.Context, c *domain.Contribution) (*domain.Contribution, bool, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contributions (id, group_id, user_id, wallet_address, amount, round_number,
			transaction_hash, timestamp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		c.ID, c.GroupID, c.UserID, c.WalletAddress, c.Amount, c.RoundNumber,
		c.TransactionHash, c.Timestamp.UTC(), now)
	if err != nil {
		if IsUniqueViolation(err) {
			existing, getErr := r.GetByHash(ctx, c.TransactionHash)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create contribution: %w", err)
	}
	row := *c
	row.CreatedAt = now
	row.UpdatedAt = now
	return &row, true, nil
}

func (r *ContributionRepo) GetByHash(ctx context.Context, txHash string) (*domain.Contribution, error) {
	var c domain.Contribution
	err := r.db.GetContext(ctx, &c,
		`SELECT `+contributionColumns+` FROM contributions WHERE transaction_hash = $1`, txHash)
	if err != nil {
		return nil, notFound(err, "contribution")
	}
	return &c, nil
}

// MembershipRepo implements storage.MembershipRepository using PostgreSQL.
type MembershipRepo struct {
	db *DB
}

// NewMembershipRepo creates a new PostgreSQL membership repository.
func NewMembershipRepo(db *DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

const membershipColumns = `group_id, user_id, wallet_address, payout_order,
	has_paid_current_round, has_received_payout`

func (r *MembershipRepo) Save(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO memberships (`+membershipColumns+`)
		VALUES (:group_id, :user_id, :wallet_address, :payout_order,
			:has_paid_current_round, :has_received_payout)
		ON CONFLICT (group_id, user_id) DO UPDATE
		SET wallet_address = EXCLUDED.wallet_address,
		    payout_order = EXCLUDED.payout_order,
		    has_paid_current_round = EXCLUDED.has_paid_current_round,
		    has_received_payout = EXCLUDED.has_received_payout`, m)
	if err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) getOne(ctx context.Context, where string, args ...any) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.GetContext(ctx, &m,
		`SELECT `+membershipColumns+` FROM memberships WHERE `+where+` LIMIT 1`, args...)
	if err != nil {
		return nil, notFound(err, "membership")
	}
	return &m, nil
}

func (r *MembershipRepo) Get(ctx context.Context, groupID, userID string) (*domain.Membership, error) {
	return r.getOne(ctx, `group_id = $1 AND user_id = $2`, groupID, userID)
}

func (r *MembershipRepo) GetByWallet(ctx context.Context, groupID, walletAddress string) (*domain.Membership, error) {
	return r.getOne(ctx, `group_id = $1 AND wallet_address = $2`, groupID, walletAddress)
}

func (r *MembershipRepo) GetByPayoutOrder(ctx context.Context, groupID string, order int64) (*domain.Membership, error) {
	return r.getOne(ctx, `group_id = $1 AND payout_order = $2`, groupID, order)
}

func (r *MembershipRepo) ListByGroup(ctx context.Context, groupID string) ([]*domain.Membership, error) {
	var out []*domain.Membership
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+membershipColumns+` FROM memberships WHERE group_id = $1 ORDER BY payout_order`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return out, nil
}

func (r *MembershipRepo) SetPaidCurrentRound(ctx context.Context, groupID, userID string, paid bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET has_paid_current_round = $3
		WHERE group_id = $1 AND user_id = $2`, groupID, userID, paid)
	if err != nil {
		return false, fmt.Errorf("failed to set paid flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MembershipRepo) ResetPaidCurrentRound(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET has_paid_current_round = FALSE
		WHERE group_id = $1`, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset paid flags: %w", err)
	}
	return res.RowsAffected()
}

func (r *MembershipRepo) MarkPayoutReceived(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET has_received_payout = TRUE
		WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark payout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GroupRepo implements storage.GroupRepository using PostgreSQL.
type GroupRepo struct {
	db *DB
}

// NewGroupRepo creates a new PostgreSQL group repository.
func NewGroupRepo(db *DB) *GroupRepo {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) Save(ctx context.Context, g *domain.Group) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO groups (id, contract_address, chain_id, current_round, status)
		VALUES (:id, :contract_address, :chain_id, :current_round, :status)
		ON CONFLICT (id) DO UPDATE
		SET contract_address = EXCLUDED.contract_address,
		    chain_id = EXCLUDED.chain_id,
		    current_round = EXCLUDED.current_round,
		    status = EXCLUDED.status`, g)
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

func (r *GroupRepo) Get(ctx context.Context, id string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.GetContext(ctx, &g, `
		SELECT id, contract_address, chain_id, current_round, status
		FROM groups WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "group")
	}
	return &g, nil
}

func (r *GroupRepo) GetByContract(ctx context.Context, contractAddress, chainID string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.GetContext(ctx, &g, `
		SELECT id, contract_address, chain_id, current_round, status
		FROM groups WHERE contract_address = $1 AND chain_id = $2
		LIMIT 1`, contractAddress, chainID)
	if err != nil {
		return nil, notFound(err, "group")
	}
	return &g, nil
}

func (r *GroupRepo) IncrementRound(ctx context.Context, id string) (int64, error) {
	var round int64
	err := r.db.GetContext(ctx, &round, `
		UPDATE groups SET current_round = current_round + 1
		WHERE id = $1
		RETURNING current_round`, id)
	if err != nil {
		return 0, notFound(err, "group")
	}
	return round, nil
}

// ApprovalRepo implements storage.ApprovalRepository using PostgreSQL.
type ApprovalRepo struct {
	db *DB
}

// NewApprovalRepo creates a new PostgreSQL approval repository.
func NewApprovalRepo(db *DB) *ApprovalRepo {
	return &ApprovalRepo{db: db}
}

func (r *ApprovalRepo) CreateIfAbsent(ctx context.Context, a *domain.Approval) (*domain.Approval, bool, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO approvals (id, transaction_hash, owner, spender, amount, block_number,
			contract_address, chain_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TransactionHash, a.Owner, a.Spender, a.Amount, int64(a.BlockNumber),
		a.ContractAddress, a.ChainID, now)
	if err != nil {
		if IsUniqueViolation(err) {
			existing, getErr := r.GetByHash(ctx, a.TransactionHash)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create approval: %w", err)
	}
	row := *a
	row.CreatedAt = now
	return &row, true, nil
}

func (r *ApprovalRepo) GetByHash(ctx context.Context, txHash string) (*domain.Approval, error) {
	var a domain.Approval
	err := r.db.GetContext(ctx, &a, `
		SELECT id, transaction_hash, owner, spender, amount::TEXT AS amount, block_number,
			contract_address, chain_id, created_at
		FROM approvals WHERE transaction_hash = $1`, txHash)
	if err != nil {
		return nil, notFound(err, "approval")
	}
	return &a, nil
}
