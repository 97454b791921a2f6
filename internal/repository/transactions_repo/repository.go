package transactions_repo

import (
	"context"

	"ledger/internal/domain"
)

// TransactionRepository is the append-only journal. Entries are only ever
// inserted and read, never updated or deleted.
type TransactionRepository interface {
	CreateTransactionTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error
	GetByTransactionIDTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.Transaction, error)
}
