package domain

import "time"

// TransactionRecordedEvent is published for every journal entry, success and
// fail alike, so downstream consumers see the full audit trail.
type TransactionRecordedEvent struct {
	TransactionID   string    `json:"transaction_id"`
	Type            string    `json:"type"`
	Result          string    `json:"result"`
	AccountID       string    `json:"account_id"`
	AccountNumber   string    `json:"account_number"`
	Amount          int64     `json:"amount"`
	BalanceSnapshot int64     `json:"balance_snapshot"`
	TransactedAt    time.Time `json:"transacted_at"`
}

// AccountEvent is published when an account is registered or closed.
type AccountEvent struct {
	AccountID     string    `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	OwnerID       int64     `json:"owner_id"`
	Status        string    `json:"status"`
	Balance       int64     `json:"balance"`
	Timestamp     time.Time `json:"timestamp"`
}
