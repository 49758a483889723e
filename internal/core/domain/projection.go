package domain

import "time"

// Contribution is one member payment into a group round. TransactionHash is
// globally unique.
type Contribution struct {
	ID              string    `db:"id"               json:"id"`
	GroupID         string    `db:"group_id"         json:"group_id"`
	UserID          string    `db:"user_id"          json:"user_id"`
	WalletAddress   string    `db:"wallet_address"   json:"wallet_address"`
	Amount          string    `db:"amount"           json:"amount"`
	RoundNumber     int64     `db:"round_number"     json:"round_number"`
	TransactionHash string    `db:"transaction_hash" json:"transaction_hash"`
	Timestamp       time.Time `db:"timestamp"        json:"timestamp"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

// Membership links a user to a group with a fixed payout position.
type Membership struct {
	GroupID             string `db:"group_id"               json:"group_id"`
	UserID              string `db:"user_id"                json:"user_id"`
	WalletAddress       string `db:"wallet_address"         json:"wallet_address"`
	PayoutOrder         int64  `db:"payout_order"           json:"payout_order"`
	HasPaidCurrentRound bool   `db:"has_paid_current_round" json:"has_paid_current_round"`
	HasReceivedPayout   bool   `db:"has_received_payout"    json:"has_received_payout"`
}

// GroupStatus is the lifecycle state of a savings group.
type GroupStatus string

const (
	GroupStatusPending   GroupStatus = "pending"
	GroupStatusActive    GroupStatus = "active"
	GroupStatusCompleted GroupStatus = "completed"
)

// Group is a savings group backed by an on-ledger contract.
type Group struct {
	ID              string      `db:"id"               json:"id"`
	ContractAddress string      `db:"contract_address" json:"contract_address"`
	ChainID         string      `db:"chain_id"         json:"chain_id"`
	CurrentRound    int64       `db:"current_round"    json:"current_round"`
	Status          GroupStatus `db:"status"           json:"status"`
}

// Approval is a token allowance observed by the upstream watcher.
type Approval struct {
	ID              string    `db:"id"               json:"id"`
	TransactionHash string    `db:"transaction_hash" json:"transaction_hash"`
	Owner           string    `db:"owner"            json:"owner"`
	Spender         string    `db:"spender"          json:"spender"`
	Amount          string    `db:"amount"           json:"amount"`
	BlockNumber     uint64    `db:"block_number"     json:"block_number"`
	ContractAddress string    `db:"contract_address" json:"contract_address"`
	ChainID         string    `db:"chain_id"         json:"chain_id"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}

// PayoutTarget identifies the recipient of a round payout. Fields are tried
// in declaration order; empty fields are skipped.
type PayoutTarget struct {
	UserID        string
	WalletAddress string
	PayoutOrder   *int64
}

// Empty reports whether no identifier was supplied.
func (t PayoutTarget) Empty() bool {
	return t.UserID == "" && t.WalletAddress == "" && t.PayoutOrder == nil
}

// RoundSummary aggregates a group round for reporting.
type RoundSummary struct {
	GroupID           string    `db:"group_id"           json:"group_id"`
	RoundNumber       int64     `db:"round_number"       json:"round_number"`
	ContributionCount int64     `db:"contribution_count" json:"contribution_count"`
	TotalAmount       string    `db:"total_amount"       json:"total_amount"`
	PaidMembers       int64     `db:"paid_members"       json:"paid_members"`
	Members           int64     `db:"members"            json:"members"`
	GeneratedAt       time.Time `db:"generated_at"       json:"generated_at"`
}
