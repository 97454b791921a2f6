package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/outbox_repo"
	"ledger/internal/repository/transactions_repo"
	"ledger/internal/util"

	"go.uber.org/zap"
)

// failureRecorder journals rejected attempts. A post-resolution validation
// failure rolls back the engine's main transaction; the recorder then commits
// one FAIL entry in its own transaction, carrying the attempted type and
// amount and the account's unchanged balance. It never mutates account state.
type failureRecorder struct {
	tx          domain.TxManager
	accountRepo accounts_repo.AccountRepository
	txnRepo     transactions_repo.TransactionRepository
	outboxRepo  outbox_repo.OutboxRepository
	eventsTopic string
	logger      *zap.Logger
}

func newFailureRecorder(
	tx domain.TxManager,
	accountRepo accounts_repo.AccountRepository,
	txnRepo transactions_repo.TransactionRepository,
	outboxRepo outbox_repo.OutboxRepository,
	eventsTopic string,
	logger *zap.Logger,
) *failureRecorder {
	return &failureRecorder{
		tx:          tx,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		outboxRepo:  outboxRepo,
		eventsTopic: eventsTopic,
		logger:      logger,
	}
}

// RecordFailure appends a FAIL entry for an attempt that was rejected after
// the account had been resolved. The caller still returns the original error;
// a failure to journal here is logged, never propagated.
func (r *failureRecorder) RecordFailure(ctx context.Context, txType domain.TransactionType, accountNumber string, amount int64) {
	err := r.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		account, err := r.accountRepo.GetAccountByNumberTx(ctx, q, accountNumber)
		if err != nil {
			return err
		}

		entry := newEntry(txType, domain.TransactionResultFail, account.ID, amount, account.Balance)
		if err := r.txnRepo.CreateTransactionTx(ctx, q, entry); err != nil {
			return err
		}
		return r.writeTransactionEvent(ctx, q, entry, account.Number)
	})
	if err != nil {
		r.logger.Error("Failed to journal rejected attempt",
			zap.String("account_number", accountNumber),
			zap.String("type", string(txType)),
			zap.Int64("amount", amount),
			zap.Error(err))
	}
}

func (r *failureRecorder) writeTransactionEvent(ctx context.Context, q domain.Querier, entry *domain.Transaction, accountNumber string) error {
	payload, err := json.Marshal(domain.TransactionRecordedEvent{
		TransactionID:   entry.TransactionID,
		Type:            string(entry.Type),
		Result:          string(entry.Result),
		AccountID:       entry.AccountID,
		AccountNumber:   accountNumber,
		Amount:          entry.Amount,
		BalanceSnapshot: entry.BalanceSnapshot,
		TransactedAt:    entry.TransactedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	return r.outboxRepo.CreateMessageTx(ctx, q, &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   entry.AccountID,
		AggregateType: "transaction",
		MessageType:   "TransactionRecorded",
		Topic:         r.eventsTopic,
		Key:           entry.AccountID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     time.Now(),
	})
}
