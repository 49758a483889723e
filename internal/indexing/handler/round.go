package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// errNoPayoutMatch ends payout resolution without attributing a recipient.
var errNoPayoutMatch = errors.New("no payout match")

var (
	keyPayoutUserID = []string{
		"payoutRecipientUserId", "recipientUserId", "payout_recipient_user_id", "recipient_user_id",
	}
	keyPayoutWallet = []string{
		"payoutRecipient", "payoutRecipientWallet", "recipientWallet", "recipient",
		"payout_recipient", "payout_recipient_wallet", "recipient_wallet",
	}
	keyPayoutOrder = []string{"payoutOrder", "payout_order", "recipientPayoutOrder"}
)

// roundCompleted advances the group round, clears every member's paid flag
// and attributes the payout when a recipient can be identified.
func (r *Registry) roundCompleted(ctx context.Context, tx *domain.LedgerTransaction, ev domain.ContractEvent) error {
	p := ev.Payload

	groupID := p.String(keyGroupID...)
	if groupID == "" {
		return invalid(ev.Name, "groupId")
	}

	round, err := r.proj.Groups.IncrementRound(ctx, groupID)
	if err != nil {
		return fmt.Errorf("advance round of group %s: %w", groupID, err)
	}

	reset, err := r.proj.Memberships.ResetPaidCurrentRound(ctx, groupID)
	if err != nil {
		return fmt.Errorf("reset paid flags of group %s: %w", groupID, err)
	}

	target := payoutTarget(p)
	recipient, err := r.resolvePayout(ctx, groupID, target)
	switch {
	case errors.Is(err, errNoPayoutMatch):
		r.log.Debug("Payout unattributed", "group", groupID, "tx", tx.Hash)
	case err != nil:
		return fmt.Errorf("resolve payout recipient of group %s: %w", groupID, err)
	default:
		if err := r.proj.Memberships.MarkPayoutReceived(ctx, groupID, recipient.UserID); err != nil {
			return fmt.Errorf("mark payout of %s/%s: %w", groupID, recipient.UserID, err)
		}
	}

	r.log.Info("Round completed",
		"group", groupID,
		"round", round,
		"members_reset", reset,
		"recipient", recipientID(recipient),
		"tx", tx.Hash,
	)
	return nil
}

func payoutTarget(p domain.Payload) domain.PayoutTarget {
	t := domain.PayoutTarget{
		UserID:        p.String(keyPayoutUserID...),
		WalletAddress: p.String(keyPayoutWallet...),
	}
	if order, ok := p.Int(keyPayoutOrder...); ok {
		t.PayoutOrder = &order
	}
	return t
}

// resolvePayout tries user id, then wallet, then payout order.
func (r *Registry) resolvePayout(ctx context.Context, groupID string, t domain.PayoutTarget) (*domain.Membership, error) {
	if t.Empty() {
		return nil, errNoPayoutMatch
	}

	lookups := []func() (*domain.Membership, error){}
	if t.UserID != "" {
		lookups = append(lookups, func() (*domain.Membership, error) {
			return r.proj.Memberships.Get(ctx, groupID, t.UserID)
		})
	}
	if t.WalletAddress != "" {
		lookups = append(lookups, func() (*domain.Membership, error) {
			return r.proj.Memberships.GetByWallet(ctx, groupID, t.WalletAddress)
		})
	}
	if t.PayoutOrder != nil {
		lookups = append(lookups, func() (*domain.Membership, error) {
			return r.proj.Memberships.GetByPayoutOrder(ctx, groupID, *t.PayoutOrder)
		})
	}

	for _, lookup := range lookups {
		m, err := lookup()
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, errNoPayoutMatch
}

func recipientID(m *domain.Membership) string {
	if m == nil {
		return ""
	}
	return m.UserID
}
