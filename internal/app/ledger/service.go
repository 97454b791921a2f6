package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/locker"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/outbox_repo"
	"ledger/internal/repository/owners_repo"
	"ledger/internal/repository/transactions_repo"
	"ledger/internal/util"

	"go.uber.org/zap"
)

// cancelWindow is how long after the original transaction a cancel is still
// accepted.
const cancelWindow = 365 * 24 * time.Hour

// LedgerService validates and applies balance mutations and journals every
// attempt. UseBalance and CancelBalance run their whole validate-mutate-journal
// sequence under a per-account lock; the balance update and the journal append
// share one database transaction. The service keeps no state between calls.
type LedgerService interface {
	UseBalance(ctx context.Context, ownerID int64, accountNumber string, amount int64) (*domain.Transaction, error)
	CancelBalance(ctx context.Context, transactionID, accountNumber string, amount int64) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

type ledgerService struct {
	tx          domain.TxManager
	ownerRepo   owners_repo.OwnerRepository
	accountRepo accounts_repo.AccountRepository
	txnRepo     transactions_repo.TransactionRepository
	locks       locker.Locker
	lockTTL     time.Duration
	recorder    *failureRecorder
	logger      *zap.Logger
}

func NewLedgerService(
	tx domain.TxManager,
	ownerRepo owners_repo.OwnerRepository,
	accountRepo accounts_repo.AccountRepository,
	txnRepo transactions_repo.TransactionRepository,
	outboxRepo outbox_repo.OutboxRepository,
	locks locker.Locker,
	lockTTL time.Duration,
	eventsTopic string,
	logger *zap.Logger,
) LedgerService {
	return &ledgerService{
		tx:          tx,
		ownerRepo:   ownerRepo,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		locks:       locks,
		lockTTL:     lockTTL,
		recorder: newFailureRecorder(
			tx, accountRepo, txnRepo, outboxRepo, eventsTopic,
			logger.With(zap.String("component", "FailureRecorder")),
		),
		logger: logger,
	}
}

func accountLockKey(accountNumber string) string {
	return "lock:account:" + accountNumber
}

func (s *ledgerService) UseBalance(ctx context.Context, ownerID int64, accountNumber string, amount int64) (*domain.Transaction, error) {
	// amount is checked before the account is resolved, so no entry is journaled
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if _, err := s.ownerRepo.GetOwnerTx(ctx, s.tx.Querier(), ownerID); err != nil {
		return nil, err
	}

	token, err := s.acquireLock(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, accountNumber, token)

	var entry *domain.Transaction
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		account, err := s.accountRepo.GetAccountByNumberTx(ctx, q, accountNumber)
		if err != nil {
			return err
		}

		if account.OwnerID != ownerID {
			return domain.ErrOwnershipMismatch
		}
		if account.Status != domain.AccountStatusInUse {
			return domain.ErrAccountNotInUse
		}
		if amount > account.Balance {
			return domain.ErrInsufficientBalance
		}

		if err := s.accountRepo.UpdateBalanceTx(ctx, q, account.ID, -amount); err != nil {
			return err
		}

		entry = newEntry(domain.TransactionTypeUse, domain.TransactionResultSuccess, account.ID, amount, account.Balance-amount)
		if err := s.txnRepo.CreateTransactionTx(ctx, q, entry); err != nil {
			return err
		}
		return s.recorder.writeTransactionEvent(ctx, q, entry, account.Number)
	})
	if err != nil {
		if isJournaledUseFailure(err) {
			s.recorder.RecordFailure(ctx, domain.TransactionTypeUse, accountNumber, amount)
			s.logger.Warn("Use balance rejected",
				zap.Int64("owner_id", ownerID),
				zap.String("account_number", accountNumber),
				zap.Int64("amount", amount),
				zap.Error(err))
			return nil, err
		}
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to use balance",
			zap.String("account_number", accountNumber),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, fmt.Errorf("failed to use balance on account %s: %w", accountNumber, err)
	}

	s.logger.Info("Balance used",
		zap.String("account_number", accountNumber),
		zap.String("transaction_id", entry.TransactionID),
		zap.Int64("amount", amount),
		zap.Int64("balance_snapshot", entry.BalanceSnapshot))
	return entry, nil
}

func (s *ledgerService) CancelBalance(ctx context.Context, transactionID, accountNumber string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	token, err := s.acquireLock(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, accountNumber, token)

	var entry *domain.Transaction
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		original, err := s.txnRepo.GetByTransactionIDTx(ctx, q, transactionID)
		if err != nil {
			return err
		}
		account, err := s.accountRepo.GetAccountByNumberTx(ctx, q, accountNumber)
		if err != nil {
			return err
		}

		if original.AccountID != account.ID {
			return domain.ErrTransactionAccountMismatch
		}
		if original.Type != domain.TransactionTypeUse || original.Result != domain.TransactionResultSuccess {
			return domain.ErrTransactionNotCancellable
		}
		if original.Amount != amount {
			return domain.ErrCancelMustBeFull
		}
		if time.Since(original.TransactedAt) > cancelWindow {
			return domain.ErrCancelTooOld
		}

		if err := s.accountRepo.UpdateBalanceTx(ctx, q, account.ID, amount); err != nil {
			return err
		}

		// the cancel entry gets its own transaction id, never the original's
		entry = newEntry(domain.TransactionTypeCancel, domain.TransactionResultSuccess, account.ID, amount, account.Balance+amount)
		if err := s.txnRepo.CreateTransactionTx(ctx, q, entry); err != nil {
			return err
		}
		return s.recorder.writeTransactionEvent(ctx, q, entry, account.Number)
	})
	if err != nil {
		if isJournaledCancelFailure(err) {
			s.recorder.RecordFailure(ctx, domain.TransactionTypeCancel, accountNumber, amount)
			s.logger.Warn("Cancel balance rejected",
				zap.String("transaction_id", transactionID),
				zap.String("account_number", accountNumber),
				zap.Int64("amount", amount),
				zap.Error(err))
			return nil, err
		}
		if errors.Is(err, domain.ErrTransactionNotFound) || errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to cancel balance",
			zap.String("transaction_id", transactionID),
			zap.String("account_number", accountNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to cancel balance on account %s: %w", accountNumber, err)
	}

	s.logger.Info("Balance cancelled",
		zap.String("account_number", accountNumber),
		zap.String("original_transaction_id", transactionID),
		zap.String("transaction_id", entry.TransactionID),
		zap.Int64("amount", amount))
	return entry, nil
}

// GetTransaction is a pure read: journal entries are immutable once written,
// so no lock is taken.
func (s *ledgerService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.txnRepo.GetByTransactionIDTx(ctx, s.tx.Querier(), transactionID)
}

func (s *ledgerService) acquireLock(ctx context.Context, accountNumber string) (string, error) {
	token, err := s.locks.Acquire(ctx, accountLockKey(accountNumber), s.lockTTL)
	if err != nil {
		if errors.Is(err, locker.ErrLockBusy) {
			s.logger.Warn("Account lock busy", zap.String("account_number", accountNumber))
			return "", domain.ErrAccountBusy
		}
		return "", fmt.Errorf("failed to lock account %s: %w", accountNumber, err)
	}
	return token, nil
}

func (s *ledgerService) releaseLock(ctx context.Context, accountNumber, token string) {
	if err := s.locks.Release(ctx, accountLockKey(accountNumber), token); err != nil {
		s.logger.Warn("Failed to release account lock",
			zap.String("account_number", accountNumber),
			zap.Error(err))
	}
}

func newEntry(txType domain.TransactionType, result domain.TransactionResult, accountID string, amount, balanceSnapshot int64) *domain.Transaction {
	return &domain.Transaction{
		ID:              util.GenerateUUID(),
		TransactionID:   util.GenerateTransactionID(),
		Type:            txType,
		Result:          result,
		AccountID:       accountID,
		Amount:          amount,
		BalanceSnapshot: balanceSnapshot,
		TransactedAt:    time.Now(),
	}
}

// Failures after the account has been resolved are journaled as FAIL entries
// before the error goes back to the caller. Earlier failures (unknown owner,
// unknown account, unknown transaction) leave no trace in the journal.
func isJournaledUseFailure(err error) bool {
	return errors.Is(err, domain.ErrOwnershipMismatch) ||
		errors.Is(err, domain.ErrAccountNotInUse) ||
		errors.Is(err, domain.ErrInsufficientBalance)
}

func isJournaledCancelFailure(err error) bool {
	return errors.Is(err, domain.ErrTransactionAccountMismatch) ||
		errors.Is(err, domain.ErrTransactionNotCancellable) ||
		errors.Is(err, domain.ErrCancelMustBeFull) ||
		errors.Is(err, domain.ErrCancelTooOld)
}
