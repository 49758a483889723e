package domain

import "encoding/json"

// JobType names a queue the ingestion path consumes.
type JobType string

const (
	JobTypeTransfer JobType = "transfer"
	JobTypeApproval JobType = "approval"
)

// TransferJob is a token transfer into a group contract, pushed by the
// upstream watcher.
type TransferJob struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	ContractAddress string `json:"contractAddress"`
	ChainID         string `json:"chainId"`
	ContributionID  string `json:"contributionId,omitempty"`
}

// ApprovalJob is a token allowance granted to a group contract.
type ApprovalJob struct {
	Owner           string `json:"owner"`
	Spender         string `json:"spender"`
	Amount          string `json:"amount"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	ContractAddress string `json:"contractAddress"`
	ChainID         string `json:"chainId"`
}

// JobEnvelope wraps a job on the wire with its delivery attempt count.
type JobEnvelope struct {
	Type     JobType         `json:"type"`
	Attempts int             `json:"attempts"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error,omitempty"`
}
