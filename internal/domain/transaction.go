package domain

import "time"

type TransactionType string

const (
	TransactionTypeUse    TransactionType = "USE"
	TransactionTypeCancel TransactionType = "CANCEL"
)

type TransactionResult string

const (
	TransactionResultSuccess TransactionResult = "SUCCESS"
	TransactionResultFail    TransactionResult = "FAIL"
)

// Transaction is a single journal entry. Entries are append-only: once written
// they are never updated or deleted. TransactionID is the caller-facing token
// and is assigned at write time; a cancel entry always gets its own id,
// distinct from the id of the entry it reverses. BalanceSnapshot is the
// account balance after the entry, or the unchanged balance for FAIL entries.
type Transaction struct {
	ID              string
	TransactionID   string
	Type            TransactionType
	Result          TransactionResult
	AccountID       string
	Amount          int64
	BalanceSnapshot int64
	TransactedAt    time.Time
}
