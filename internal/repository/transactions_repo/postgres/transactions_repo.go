package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ledger/internal/domain"

	"github.com/lib/pq"
)

type TransactionRepository struct{}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) CreateTransactionTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, transaction_id, type, result, account_id, amount, balance_snapshot, transacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		txn.ID, txn.TransactionID, txn.Type, txn.Result,
		txn.AccountID, txn.Amount, txn.BalanceSnapshot, txn.TransactedAt)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("transaction id collision for %s: %w", txn.TransactionID, err)
		}
		return fmt.Errorf("failed to append transaction %s: %w", txn.TransactionID, err)
	}
	return nil
}

func (r *TransactionRepository) GetByTransactionIDTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.Transaction, error) {
	query := `
		SELECT id, transaction_id, type, result, account_id, amount, balance_snapshot, transacted_at
		FROM transactions
		WHERE transaction_id = $1
	`
	txn := &domain.Transaction{}
	err := querier.QueryRowContext(ctx, query, transactionID).Scan(
		&txn.ID,
		&txn.TransactionID,
		&txn.Type,
		&txn.Result,
		&txn.AccountID,
		&txn.Amount,
		&txn.BalanceSnapshot,
		&txn.TransactedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
	}
	return txn, nil
}
