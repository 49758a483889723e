package domain

import "time"

// LedgerTransaction is a transaction record returned by the ledger indexer.
// It is never persisted; the remote ledger is the source of truth.
type LedgerTransaction struct {
	Hash          string     `json:"hash"`
	LedgerSeq     uint64     `json:"ledger"`
	Successful    bool       `json:"successful"`
	ResultMetaXDR string     `json:"result_meta_xdr,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Timestamp returns the ledger close time of the transaction, or fallback
// when the indexer did not report one.
func (t *LedgerTransaction) Timestamp(fallback time.Time) time.Time {
	if t.CreatedAt == nil || t.CreatedAt.IsZero() {
		return fallback
	}
	return *t.CreatedAt
}

// TxOutcome records how the poller handled a transaction.
type TxOutcome string

const (
	TxOutcomeApplied TxOutcome = "applied"
	TxOutcomeFailed  TxOutcome = "failed"       // handler or decode error
	TxOutcomeSkipped TxOutcome = "skipped"      // failed on-ledger
	TxOutcomeIgnored TxOutcome = "no_events"    // decoded, nothing recognized
	TxOutcomeSeen    TxOutcome = "already_seen" // dedup marker present
)

// IngestionRecord is one row of the ingestion log.
type IngestionRecord struct {
	ID              int64     `db:"id"               json:"id"`
	ContractAddress string    `db:"contract_address" json:"contract_address"`
	TxHash          string    `db:"tx_hash"          json:"tx_hash"`
	LedgerSeq       uint64    `db:"ledger_seq"       json:"ledger_seq"`
	Outcome         TxOutcome `db:"outcome"          json:"outcome"`
	Events          int       `db:"events"           json:"events"`
	Error           string    `db:"error"            json:"error,omitempty"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}
