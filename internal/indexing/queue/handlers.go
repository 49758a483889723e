package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// ErrUnprocessable marks a job that can never succeed. Such jobs are dead
// lettered without retry.
var ErrUnprocessable = errors.New("unprocessable job")

func unprocessable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnprocessable, fmt.Sprintf(format, args...))
}

// Handlers applies queue jobs to the projection. Every handler is keyed on
// the transaction hash: an existing row is returned untouched.
type Handlers struct {
	proj storage.Projection
	log  *slog.Logger
	now  func() time.Time
}

// NewHandlers creates job handlers writing to proj.
func NewHandlers(proj storage.Projection, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{proj: proj, log: log.With("component", "queue"), now: time.Now}
}

// Handle decodes env by type and applies it.
func (h *Handlers) Handle(ctx context.Context, env *domain.JobEnvelope) error {
	switch env.Type {
	case domain.JobTypeTransfer:
		job, err := decode[domain.TransferJob](env)
		if err != nil {
			return err
		}
		_, _, err = h.Transfer(ctx, job)
		return err
	case domain.JobTypeApproval:
		job, err := decode[domain.ApprovalJob](env)
		if err != nil {
			return err
		}
		_, _, err = h.Approval(ctx, job)
		return err
	default:
		return unprocessable("unknown job type %q", env.Type)
	}
}

// Transfer records a contribution for a token transfer into a group contract.
func (h *Handlers) Transfer(ctx context.Context, job *domain.TransferJob) (*domain.Contribution, bool, error) {
	if job.TransactionHash == "" {
		return nil, false, unprocessable("transfer without transactionHash")
	}

	existing, err := h.proj.Contributions.GetByHash(ctx, job.TransactionHash)
	if err == nil {
		// A retry after a failed flag write lands here
		if err := h.reflagPaid(ctx, existing); err != nil {
			return existing, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup contribution %s: %w", job.TransactionHash, err)
	}

	amount, err := decimal.NewFromString(job.Amount)
	if err != nil {
		return nil, false, unprocessable("transfer %s amount %q", job.TransactionHash, job.Amount)
	}

	group, err := h.proj.Groups.GetByContract(ctx, job.ContractAddress, job.ChainID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, unprocessable("no group for contract %s on %s", job.ContractAddress, job.ChainID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup group: %w", err)
	}

	member, err := h.proj.Memberships.GetByWallet(ctx, group.ID, job.From)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, unprocessable("wallet %s is not a member of group %s", job.From, group.ID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup membership: %w", err)
	}

	id := job.ContributionID
	if id == "" {
		id = uuid.NewString()
	}
	c := &domain.Contribution{
		ID:              id,
		GroupID:         group.ID,
		UserID:          member.UserID,
		WalletAddress:   job.From,
		Amount:          amount.String(),
		RoundNumber:     group.CurrentRound,
		TransactionHash: job.TransactionHash,
		Timestamp:       h.now(),
	}

	// A concurrent insert from the poller wins; its row is returned
	saved, created, err := h.proj.Contributions.CreateIfAbsent(ctx, c)
	if err != nil {
		return nil, false, fmt.Errorf("save contribution %s: %w", job.TransactionHash, err)
	}
	if created {
		if _, err := h.proj.Memberships.SetPaidCurrentRound(ctx, group.ID, member.UserID, true); err != nil {
			return saved, created, fmt.Errorf("flag membership paid: %w", err)
		}
		h.log.Info("Transfer recorded",
			"group", group.ID, "user", member.UserID, "amount", saved.Amount, "tx", job.TransactionHash)
	}
	return saved, created, nil
}

// reflagPaid sets the paid flag for an already stored contribution while its
// round is still the group's current one.
func (h *Handlers) reflagPaid(ctx context.Context, c *domain.Contribution) error {
	group, err := h.proj.Groups.Get(ctx, c.GroupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup group %s: %w", c.GroupID, err)
	}
	if group.CurrentRound != c.RoundNumber {
		return nil
	}
	if _, err := h.proj.Memberships.SetPaidCurrentRound(ctx, c.GroupID, c.UserID, true); err != nil {
		return fmt.Errorf("flag membership paid: %w", err)
	}
	return nil
}

// Approval records a token allowance.
func (h *Handlers) Approval(ctx context.Context, job *domain.ApprovalJob) (*domain.Approval, bool, error) {
	if job.TransactionHash == "" {
		return nil, false, unprocessable("approval without transactionHash")
	}

	existing, err := h.proj.Approvals.GetByHash(ctx, job.TransactionHash)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup approval %s: %w", job.TransactionHash, err)
	}

	amount, err := decimal.NewFromString(job.Amount)
	if err != nil {
		return nil, false, unprocessable("approval %s amount %q", job.TransactionHash, job.Amount)
	}

	a := &domain.Approval{
		ID:              uuid.NewString(),
		TransactionHash: job.TransactionHash,
		Owner:           job.Owner,
		Spender:         job.Spender,
		Amount:          amount.String(),
		BlockNumber:     job.BlockNumber,
		ContractAddress: job.ContractAddress,
		ChainID:         job.ChainID,
		CreatedAt:       h.now(),
	}
	saved, created, err := h.proj.Approvals.CreateIfAbsent(ctx, a)
	if err != nil {
		return nil, false, fmt.Errorf("save approval %s: %w", job.TransactionHash, err)
	}
	if created {
		h.log.Info("Approval recorded", "owner", a.Owner, "spender", a.Spender, "tx", a.TransactionHash)
	}
	return saved, created, nil
}
