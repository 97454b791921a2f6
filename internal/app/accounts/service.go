package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/outbox_repo"
	"ledger/internal/repository/owners_repo"
	"ledger/internal/util"

	"go.uber.org/zap"
)

// AccountService owns the account lifecycle: owners register accounts, close
// them once the balance is empty, and list what they hold. Balance mutation
// is the ledger engine's job, not this service's.
type AccountService interface {
	CreateOwner(ctx context.Context, name string) (*domain.Owner, error)
	RegisterAccount(ctx context.Context, ownerID int64, initialBalance int64) (*domain.Account, error)
	CloseAccount(ctx context.Context, ownerID int64, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID int64) ([]*domain.Account, error)
}

type accountService struct {
	tx          domain.TxManager
	ownerRepo   owners_repo.OwnerRepository
	accountRepo accounts_repo.AccountRepository
	outboxRepo  outbox_repo.OutboxRepository
	eventsTopic string
	logger      *zap.Logger
}

func NewAccountService(
	tx domain.TxManager,
	ownerRepo owners_repo.OwnerRepository,
	accountRepo accounts_repo.AccountRepository,
	outboxRepo outbox_repo.OutboxRepository,
	eventsTopic string,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		tx:          tx,
		ownerRepo:   ownerRepo,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		eventsTopic: eventsTopic,
		logger:      logger,
	}
}

func (s *accountService) CreateOwner(ctx context.Context, name string) (*domain.Owner, error) {
	var owner *domain.Owner
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		owner, err = s.ownerRepo.CreateOwnerTx(ctx, q, &domain.Owner{
			Name:      name,
			CreatedAt: time.Now(),
		})
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create owner", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to create owner: %w", err)
	}

	s.logger.Info("Owner created", zap.Int64("owner_id", owner.ID))
	return owner, nil
}

func (s *accountService) RegisterAccount(ctx context.Context, ownerID int64, initialBalance int64) (*domain.Account, error) {
	if initialBalance < 0 {
		return nil, domain.ErrInvalidAmount
	}

	var account *domain.Account
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		if _, err := s.ownerRepo.GetOwnerTx(ctx, q, ownerID); err != nil {
			return err
		}

		count, err := s.accountRepo.CountAccountsByOwnerTx(ctx, q, ownerID)
		if err != nil {
			return err
		}
		if count >= domain.MaxAccountsPerOwner {
			return domain.ErrMaxAccountsPerOwner
		}

		number, err := s.accountRepo.NextAccountNumberTx(ctx, q)
		if err != nil {
			return err
		}

		now := time.Now()
		account = &domain.Account{
			ID:           util.GenerateUUID(),
			OwnerID:      ownerID,
			Number:       number,
			Status:       domain.AccountStatusInUse,
			Balance:      initialBalance,
			RegisteredAt: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.accountRepo.CreateAccountTx(ctx, q, account); err != nil {
			return err
		}

		return s.writeAccountEvent(ctx, q, account, "AccountRegistered")
	})
	if err != nil {
		if isExpectedRegistrationError(err) {
			s.logger.Warn("Account registration rejected", zap.Int64("owner_id", ownerID), zap.Error(err))
			return nil, err
		}
		s.logger.Error("Failed to register account", zap.Int64("owner_id", ownerID), zap.Error(err))
		return nil, fmt.Errorf("failed to register account for owner %d: %w", ownerID, err)
	}

	s.logger.Info("Account registered",
		zap.Int64("owner_id", ownerID),
		zap.String("account_number", account.Number),
		zap.Int64("balance", account.Balance))
	return account, nil
}

func (s *accountService) CloseAccount(ctx context.Context, ownerID int64, accountNumber string) (*domain.Account, error) {
	var account *domain.Account
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		if _, err := s.ownerRepo.GetOwnerTx(ctx, q, ownerID); err != nil {
			return err
		}

		var err error
		account, err = s.accountRepo.GetAccountByNumberTx(ctx, q, accountNumber)
		if err != nil {
			return err
		}

		if account.OwnerID != ownerID {
			return domain.ErrOwnershipMismatch
		}
		if account.Status == domain.AccountStatusUnregistered {
			return domain.ErrAccountAlreadyClosed
		}
		if account.Balance > 0 {
			return domain.ErrBalanceNotEmpty
		}

		now := time.Now()
		account.Status = domain.AccountStatusUnregistered
		account.UnregisteredAt = &now
		if err := s.accountRepo.CloseAccountTx(ctx, q, account); err != nil {
			return err
		}

		return s.writeAccountEvent(ctx, q, account, "AccountUnregistered")
	})
	if err != nil {
		if isExpectedCloseError(err) {
			s.logger.Warn("Account close rejected",
				zap.Int64("owner_id", ownerID),
				zap.String("account_number", accountNumber),
				zap.Error(err))
			return nil, err
		}
		s.logger.Error("Failed to close account",
			zap.Int64("owner_id", ownerID),
			zap.String("account_number", accountNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to close account %s: %w", accountNumber, err)
	}

	s.logger.Info("Account closed", zap.Int64("owner_id", ownerID), zap.String("account_number", accountNumber))
	return account, nil
}

func (s *accountService) ListAccounts(ctx context.Context, ownerID int64) ([]*domain.Account, error) {
	q := s.tx.Querier()
	if _, err := s.ownerRepo.GetOwnerTx(ctx, q, ownerID); err != nil {
		return nil, err
	}
	accounts, err := s.accountRepo.ListAccountsByOwnerTx(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for owner %d: %w", ownerID, err)
	}
	return accounts, nil
}

func (s *accountService) writeAccountEvent(ctx context.Context, q domain.Querier, account *domain.Account, messageType string) error {
	payload, err := json.Marshal(domain.AccountEvent{
		AccountID:     account.ID,
		AccountNumber: account.Number,
		OwnerID:       account.OwnerID,
		Status:        string(account.Status),
		Balance:       account.Balance,
		Timestamp:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal account event: %w", err)
	}

	return s.outboxRepo.CreateMessageTx(ctx, q, &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   account.ID,
		AggregateType: "account",
		MessageType:   messageType,
		Topic:         s.eventsTopic,
		Key:           account.ID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     time.Now(),
	})
}

func isExpectedRegistrationError(err error) bool {
	return errors.Is(err, domain.ErrOwnerNotFound) ||
		errors.Is(err, domain.ErrMaxAccountsPerOwner) ||
		errors.Is(err, domain.ErrDuplicateAccountNumber)
}

func isExpectedCloseError(err error) bool {
	return errors.Is(err, domain.ErrOwnerNotFound) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrOwnershipMismatch) ||
		errors.Is(err, domain.ErrAccountAlreadyClosed) ||
		errors.Is(err, domain.ErrBalanceNotEmpty)
}
