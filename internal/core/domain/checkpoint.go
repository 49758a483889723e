package domain

import "time"

// Checkpoint is the highest ledger sequence fully handled for a monitored
// contract or account.
type Checkpoint struct {
	ContractAddress string    `db:"contract_address" json:"contract_address"`
	LedgerSeq       uint64    `db:"ledger_seq"       json:"ledger_seq"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}
