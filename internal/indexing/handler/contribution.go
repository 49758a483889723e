package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// Payload key aliases, camelCase first
var (
	keyGroupID     = []string{"groupId", "group_id"}
	keyUserID      = []string{"userId", "user_id"}
	keyWallet      = []string{"walletAddress", "wallet_address", "wallet"}
	keyAmount      = []string{"amount"}
	keyRoundNumber = []string{"roundNumber", "round_number", "round"}
)

const defaultRoundNumber = 1

// contributionReceived upserts the contribution keyed by transaction hash and
// flags the member as paid for the current round.
func (r *Registry) contributionReceived(ctx context.Context, tx *domain.LedgerTransaction, ev domain.ContractEvent) error {
	p := ev.Payload

	groupID := p.String(keyGroupID...)
	if groupID == "" {
		return invalid(ev.Name, "groupId")
	}
	userID := p.String(keyUserID...)
	if userID == "" {
		return invalid(ev.Name, "userId")
	}
	wallet := p.String(keyWallet...)
	if wallet == "" {
		return invalid(ev.Name, "walletAddress")
	}
	rawAmount := p.String(keyAmount...)
	if rawAmount == "" {
		return invalid(ev.Name, "amount")
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("%w: %s amount %q: %v", ErrInvalidEvent, ev.Name, rawAmount, err)
	}

	round, ok := p.Int(keyRoundNumber...)
	if !ok || round <= 0 {
		round = defaultRoundNumber
	}

	c := &domain.Contribution{
		ID:              uuid.NewString(),
		GroupID:         groupID,
		UserID:          userID,
		WalletAddress:   wallet,
		Amount:          amount.String(),
		RoundNumber:     round,
		TransactionHash: tx.Hash,
		Timestamp:       tx.Timestamp(r.now()),
	}

	created, err := r.proj.Contributions.Upsert(ctx, c)
	if err != nil {
		return fmt.Errorf("save contribution %s: %w", tx.Hash, err)
	}

	matched, err := r.proj.Memberships.SetPaidCurrentRound(ctx, groupID, userID, true)
	if err != nil {
		return fmt.Errorf("flag membership %s/%s paid: %w", groupID, userID, err)
	}
	if !matched {
		r.log.Warn("Contribution for unknown membership",
			"group", groupID, "user", userID, "tx", tx.Hash)
	}

	r.log.Info("Contribution applied",
		"group", groupID,
		"user", userID,
		"round", round,
		"amount", c.Amount,
		"tx", tx.Hash,
		"created", created,
	)
	return nil
}
