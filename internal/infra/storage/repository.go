package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")
)

// CheckpointRepository handles checkpoint storage operations
type CheckpointRepository interface {
	// Get retrieves the checkpoint for a contract, ErrNotFound if none was written
	Get(ctx context.Context, contractAddress string) (*domain.Checkpoint, error)

	// Advance raises the checkpoint to ledgerSeq; lower values are ignored
	Advance(ctx context.Context, contractAddress string, ledgerSeq uint64) error

	// Reset overwrites the checkpoint unconditionally (administrative)
	Reset(ctx context.Context, contractAddress string, ledgerSeq uint64) error

	// List retrieves all checkpoints
	List(ctx context.Context) ([]*domain.Checkpoint, error)
}

// MarkerRepository handles processed-transaction markers
type MarkerRepository interface {
	// IsProcessed reports whether an unexpired marker exists for txHash
	IsProcessed(ctx context.Context, txHash string) (bool, error)

	// MarkProcessed records txHash; ttl <= 0 keeps the marker forever
	MarkProcessed(ctx context.Context, txHash string, ttl time.Duration) error

	// DeleteExpired removes markers that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ContributionRepository handles contribution storage operations
type ContributionRepository interface {
	// Upsert inserts c, or overwrites every field of the row sharing its transaction hash
	Upsert(ctx context.Context, c *domain.Contribution) (created bool, err error)

	// CreateIfAbsent inserts c unless a row with its transaction hash exists,
	// in which case the existing row is returned untouched
	CreateIfAbsent(ctx context.Context, c *domain.Contribution) (*domain.Contribution, bool, error)

	// GetByHash retrieves a contribution by transaction hash
	GetByHash(ctx context.Context, txHash string) (*domain.Contribution, error)
}

// MembershipRepository handles membership storage operations
type MembershipRepository interface {
	// Save inserts or replaces a membership (group setup flows)
	Save(ctx context.Context, m *domain.Membership) error

	// Get retrieves a membership by its composite key
	Get(ctx context.Context, groupID, userID string) (*domain.Membership, error)

	// GetByWallet retrieves a membership by wallet address within a group
	GetByWallet(ctx context.Context, groupID, walletAddress string) (*domain.Membership, error)

	// GetByPayoutOrder retrieves the member holding a payout queue position
	GetByPayoutOrder(ctx context.Context, groupID string, order int64) (*domain.Membership, error)

	// ListByGroup retrieves all memberships of a group ordered by payout order
	ListByGroup(ctx context.Context, groupID string) ([]*domain.Membership, error)

	// SetPaidCurrentRound sets the paid flag, reporting whether a row matched
	SetPaidCurrentRound(ctx context.Context, groupID, userID string, paid bool) (bool, error)

	// ResetPaidCurrentRound clears the paid flag of every member in a group
	ResetPaidCurrentRound(ctx context.Context, groupID string) (int64, error)

	// MarkPayoutReceived sets the payout flag for one member
	MarkPayoutReceived(ctx context.Context, groupID, userID string) error
}

// GroupRepository handles group storage operations
type GroupRepository interface {
	// Save inserts or replaces a group (group setup flows)
	Save(ctx context.Context, g *domain.Group) error

	// Get retrieves a group by id
	Get(ctx context.Context, id string) (*domain.Group, error)

	// GetByContract retrieves a group by its contract address on a chain
	GetByContract(ctx context.Context, contractAddress, chainID string) (*domain.Group, error)

	// IncrementRound adds one to current_round and returns the new value
	IncrementRound(ctx context.Context, id string) (int64, error)
}

// ApprovalRepository handles approval storage operations
type ApprovalRepository interface {
	// CreateIfAbsent inserts a unless its transaction hash exists already
	CreateIfAbsent(ctx context.Context, a *domain.Approval) (*domain.Approval, bool, error)

	// GetByHash retrieves an approval by transaction hash
	GetByHash(ctx context.Context, txHash string) (*domain.Approval, error)
}

// IngestionLogRepository records per-transaction outcomes of the poller
type IngestionLogRepository interface {
	Append(ctx context.Context, rec *domain.IngestionRecord) error
}

// MaintenanceRepository holds the bulk statements run by periodic jobs
type MaintenanceRepository interface {
	// ArchiveIngestionLog moves log rows created before cutoff to the archive
	ArchiveIngestionLog(ctx context.Context, cutoff time.Time) (int64, error)

	// TransitionGroupStatuses activates and completes groups based on their rounds
	TransitionGroupStatuses(ctx context.Context) (activated, completed int64, err error)

	// SummarizeRounds upserts the summary of each active group's current round
	SummarizeRounds(ctx context.Context, now time.Time) (int64, error)
}

// Projection bundles the repositories event handlers write to.
type Projection struct {
	Contributions ContributionRepository
	Memberships   MembershipRepository
	Groups        GroupRepository
	Approvals     ApprovalRepository
}
